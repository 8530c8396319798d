// internal/app/features/webhooks/engine.go

// Package webhooks is the billing reconciliation engine. Verified gateway
// events are the only thing that moves an enrollment out of incomplete,
// appends to the charge ledger, credits teachers, or seats students. Every
// mutation is an atomic conditional store update, so redelivered and
// out-of-order events converge on the same state.
package webhooks

import (
	"context"
	"errors"
	"time"

	enrollmentstore "github.com/tutorhub/tutorhub/internal/app/store/enrollments"
	"github.com/tutorhub/tutorhub/internal/app/system/money"
	"github.com/tutorhub/tutorhub/internal/app/system/notify"
	"github.com/tutorhub/tutorhub/internal/app/system/payment"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// fallbackPeriod stands in for a billing period the gateway reported as
// empty or inverted.
const fallbackPeriod = 30 * 24 * time.Hour

// Store contracts the engine depends on. Satisfied by the Mongo stores;
// tests substitute in-memory fakes.
type UserStore interface {
	CreditTeacher(ctx context.Context, teacherID primitive.ObjectID, amount int64) error
}

type GroupStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	AddStudentIfAbsent(ctx context.Context, groupID, studentID primitive.ObjectID) (bool, error)
	RemoveStudent(ctx context.Context, groupID, studentID primitive.ObjectID) (bool, error)
}

type EnrollmentStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Enrollment, error)
	GetByCheckoutSessionID(ctx context.Context, sessionID string) (models.Enrollment, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (models.Enrollment, error)
	LinkSubscription(ctx context.Context, id primitive.ObjectID, subscriptionID string) error
	ApplySubscriptionState(ctx context.Context, id primitive.ObjectID, st enrollmentstore.SubscriptionState) (bool, error)
	MarkCanceled(ctx context.Context, id primitive.ObjectID, canceledAt time.Time) (bool, error)
	ExpireIfIncomplete(ctx context.Context, id primitive.ObjectID) (bool, error)
	AppendChargeIfAbsent(ctx context.Context, id primitive.ObjectID, charge models.Charge) (bool, error)
}

// Engine applies verified gateway events to the domain.
type Engine struct {
	gateway     payment.Gateway
	users       UserStore
	groups      GroupStore
	enrollments EnrollmentStore
	feeRate     float64
	notifier    notify.Sink
	log         *zap.Logger
}

func NewEngine(gw payment.Gateway, users UserStore, groups GroupStore, enrollments EnrollmentStore, feeRate float64, notifier notify.Sink, log *zap.Logger) *Engine {
	return &Engine{
		gateway:     gw,
		users:       users,
		groups:      groups,
		enrollments: enrollments,
		feeRate:     feeRate,
		notifier:    notifier,
		log:         log,
	}
}

// Process dispatches one verified event. An error here is an internal
// failure worth logging; the HTTP layer still acks the delivery either way,
// since redelivery of an already-applied event is a no-op.
func (e *Engine) Process(ctx context.Context, ev payment.Event) error {
	switch ev.Type {
	case payment.EventCheckoutCompleted:
		return e.checkoutCompleted(ctx, ev.CheckoutSession)
	case payment.EventCheckoutExpired, payment.EventCheckoutAsyncPaymentFailed:
		return e.checkoutFailed(ctx, ev.CheckoutSession)
	case payment.EventInvoicePaymentSucceeded:
		return e.invoicePaid(ctx, ev.Invoice)
	case payment.EventSubscriptionUpdated:
		return e.subscriptionUpdated(ctx, ev.Subscription)
	case payment.EventSubscriptionDeleted:
		return e.subscriptionDeleted(ctx, ev.Subscription)
	default:
		e.log.Debug("ignoring webhook event", zap.String("event_id", ev.ID), zap.String("type", string(ev.Type)))
		return nil
	}
}

// checkoutCompleted links the gateway subscription to its enrollment, then
// mirrors the subscription state the gateway reports right now rather than
// the state baked into the (possibly stale) event.
func (e *Engine) checkoutCompleted(ctx context.Context, cs *payment.CheckoutSessionSnapshot) error {
	if cs.SubscriptionID == "" {
		e.log.Warn("checkout completed without a subscription", zap.String("session_id", cs.ID))
		return nil
	}

	enrollment, err := e.findBySession(ctx, cs)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			e.log.Warn("no enrollment for checkout session", zap.String("session_id", cs.ID))
			return nil
		}
		return err
	}

	if err := e.enrollments.LinkSubscription(ctx, enrollment.ID, cs.SubscriptionID); err != nil {
		// A redelivery linking the same subscription is fine; a different
		// enrollment claiming it is not.
		if !errors.Is(err, enrollmentstore.ErrDuplicateSubscription) || enrollment.SubscriptionID != cs.SubscriptionID {
			return err
		}
	}

	snap, err := e.gateway.RetrieveSubscription(ctx, cs.SubscriptionID, true)
	if err != nil {
		return err
	}
	if _, err := e.enrollments.ApplySubscriptionState(ctx, enrollment.ID, stateOf(snap)); err != nil {
		return err
	}

	// The initial invoice often races its own invoice.payment_succeeded
	// delivery; applying it here is safe because the ledger dedups by
	// invoice id.
	if inv := snap.LatestInvoice; inv != nil {
		if err := e.applyPaidInvoice(ctx, enrollment, *inv); err != nil {
			return err
		}
	}

	e.log.Info("checkout completed",
		zap.String("enrollment_id", enrollment.ID.Hex()),
		zap.String("subscription_id", cs.SubscriptionID),
		zap.String("status", snap.Status))
	return nil
}

// checkoutFailed expires the enrollment the session was opened for. The
// conditional update makes the race against a concurrent activation a no-op.
func (e *Engine) checkoutFailed(ctx context.Context, cs *payment.CheckoutSessionSnapshot) error {
	enrollment, err := e.findBySession(ctx, cs)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}

	expired, err := e.enrollments.ExpireIfIncomplete(ctx, enrollment.ID)
	if err != nil {
		return err
	}
	if expired {
		e.log.Info("checkout abandoned", zap.String("enrollment_id", enrollment.ID.Hex()))
	}
	return nil
}

func (e *Engine) invoicePaid(ctx context.Context, inv *payment.InvoiceSnapshot) error {
	if inv.SubscriptionID == "" {
		return nil
	}

	enrollment, err := e.enrollments.GetBySubscriptionID(ctx, inv.SubscriptionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The invoice can arrive before checkout.session.completed has
			// linked the subscription; that handler applies the latest
			// invoice itself, so this delivery can be dropped.
			e.log.Warn("invoice for unknown subscription", zap.String("subscription_id", inv.SubscriptionID), zap.String("invoice_id", inv.ID))
			return nil
		}
		return err
	}

	return e.applyPaidInvoice(ctx, enrollment, *inv)
}

// applyPaidInvoice appends a charge to the enrollment ledger and, when the
// append actually happened, performs the once-per-invoice side effects:
// teacher credit, group seating, notifications. The append is the dedup
// gate, so a redelivered invoice does none of it twice.
func (e *Engine) applyPaidInvoice(ctx context.Context, enrollment models.Enrollment, inv payment.InvoiceSnapshot) error {
	if inv.Status != payment.InvoiceStatusPaid || inv.AmountPaid <= 0 {
		return nil
	}

	split := money.SplitFee(inv.AmountPaid, e.feeRate)
	added, err := e.enrollments.AppendChargeIfAbsent(ctx, enrollment.ID, models.Charge{
		InvoiceID:    inv.ID,
		Amount:       split.Amount,
		Currency:     inv.Currency,
		TeacherShare: split.TeacherShare,
		PlatformFee:  split.PlatformFee,
		PaidAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !added {
		e.log.Info("duplicate invoice ignored",
			zap.String("enrollment_id", enrollment.ID.Hex()),
			zap.String("invoice_id", inv.ID))
		return nil
	}

	// A paid invoice is proof the subscription is live: the enrollment goes
	// active and its period extends from the invoice line, without waiting
	// for a separate subscription.updated delivery.
	if _, err := e.enrollments.ApplySubscriptionState(ctx, enrollment.ID, invoiceStateOf(enrollment, inv)); err != nil {
		return err
	}

	if err := e.users.CreditTeacher(ctx, enrollment.TeacherID, split.TeacherShare); err != nil {
		return err
	}

	seated, err := e.groups.AddStudentIfAbsent(ctx, enrollment.GroupID, enrollment.StudentID)
	if err != nil {
		return err
	}

	e.notifier.PaymentRecorded(ctx, enrollment.ID, enrollment.TeacherID, split.Amount, inv.Currency)
	if seated && inv.BillingReason == payment.BillingReasonSubscriptionCreate {
		groupName := ""
		if group, err := e.groups.GetByID(ctx, enrollment.GroupID); err == nil {
			groupName = group.Name
		}
		e.notifier.EnrollmentActivated(ctx, enrollment.ID, enrollment.ParentID, enrollment.TeacherID, groupName)
	}

	e.log.Info("invoice applied",
		zap.String("enrollment_id", enrollment.ID.Hex()),
		zap.String("invoice_id", inv.ID),
		zap.Int64("amount", split.Amount),
		zap.Int64("teacher_share", split.TeacherShare),
		zap.Int64("platform_fee", split.PlatformFee))
	return nil
}

func (e *Engine) subscriptionUpdated(ctx context.Context, snap *payment.SubscriptionSnapshot) error {
	enrollment, err := e.enrollments.GetBySubscriptionID(ctx, snap.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}

	changed, err := e.enrollments.ApplySubscriptionState(ctx, enrollment.ID, stateOf(*snap))
	if err != nil {
		return err
	}
	if changed {
		e.log.Info("subscription state mirrored",
			zap.String("enrollment_id", enrollment.ID.Hex()),
			zap.String("status", snap.Status))
	}
	return nil
}

func (e *Engine) subscriptionDeleted(ctx context.Context, snap *payment.SubscriptionSnapshot) error {
	enrollment, err := e.enrollments.GetBySubscriptionID(ctx, snap.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}

	canceledAt := time.Now().UTC()
	if snap.CanceledAt != nil {
		canceledAt = *snap.CanceledAt
	}
	changed, err := e.enrollments.MarkCanceled(ctx, enrollment.ID, canceledAt)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if _, err := e.groups.RemoveStudent(ctx, enrollment.GroupID, enrollment.StudentID); err != nil {
		return err
	}
	e.notifier.EnrollmentCanceled(ctx, enrollment.ID, enrollment.ParentID)

	e.log.Info("enrollment canceled",
		zap.String("enrollment_id", enrollment.ID.Hex()),
		zap.String("subscription_id", snap.ID))
	return nil
}

// findBySession resolves a checkout session to its enrollment, preferring
// the enrollment id the checkout stamped into session metadata and falling
// back to the recorded session id.
func (e *Engine) findBySession(ctx context.Context, cs *payment.CheckoutSessionSnapshot) (models.Enrollment, error) {
	if hex, ok := cs.Metadata[payment.MetaEnrollmentID]; ok {
		if id, err := primitive.ObjectIDFromHex(hex); err == nil {
			return e.enrollments.GetByID(ctx, id)
		}
	}
	return e.enrollments.GetByCheckoutSessionID(ctx, cs.ID)
}

// stateOf maps a gateway snapshot onto a store update. A missing or
// inverted billing period gets a 30-day fallback so an enrollment is never
// activated with an unusable period.
func stateOf(snap payment.SubscriptionSnapshot) enrollmentstore.SubscriptionState {
	start := snap.CurrentPeriodStart
	if start.IsZero() {
		start = time.Now().UTC()
	}
	end := snap.CurrentPeriodEnd
	if !end.After(start) {
		end = start.Add(fallbackPeriod)
	}
	return enrollmentstore.SubscriptionState{
		Status:             snap.Status,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  snap.CancelAtPeriodEnd,
		CanceledAt:         snap.CanceledAt,
	}
}

// invoiceStateOf is the post-payment state: active, with the billing period
// taken from the invoice line under the same fallback as stateOf. Invoices
// do not carry the scheduled-cancel flag, so the enrollment's current value
// carries over.
func invoiceStateOf(enrollment models.Enrollment, inv payment.InvoiceSnapshot) enrollmentstore.SubscriptionState {
	start := inv.PeriodStart
	if start.IsZero() {
		start = time.Now().UTC()
	}
	end := inv.PeriodEnd
	if !end.After(start) {
		end = start.Add(fallbackPeriod)
	}
	return enrollmentstore.SubscriptionState{
		Status:             models.EnrollmentActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  enrollment.CancelAtPeriodEnd,
	}
}
