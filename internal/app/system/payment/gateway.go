// internal/app/system/payment/gateway.go

// Package payment wraps the external subscription-billing provider behind a
// Gateway interface. The webhook side parses provider events into a closed
// set of typed snapshots keyed by event type; nothing downstream ever sees
// raw provider JSON.
package payment

import (
	"context"
	"time"
)

// Metadata keys carried on every checkout session. They are the only channel
// the reconciliation engine has to correlate a gateway session back to a
// domain enrollment.
const (
	MetaEnrollmentID = "enrollment_id"
	MetaGroupID      = "group_id"
	MetaStudentID    = "student_id"
	MetaTeacherID    = "teacher_id"
	MetaParentID     = "parent_id"
	MetaCourseID     = "course_id"
)

// Gateway is the payment-provider contract the enrollment service and the
// webhook engine depend on. It is constructed once at startup and injected;
// there is no package-global client.
type Gateway interface {
	// CreateCustomer registers a payer and returns the provider customer id.
	// Callers must reuse a customer id already cached on the parent profile
	// instead of calling this again.
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)

	// CreateRecurringPrice creates a monthly recurring price in minor
	// currency units and returns the provider price id.
	CreateRecurringPrice(ctx context.Context, productName string, amount int64, currency string) (string, error)

	// CreateCheckoutSession starts a hosted subscription checkout.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error)

	// RetrieveSubscription fetches the authoritative subscription snapshot,
	// with the latest invoice expanded when requested.
	RetrieveSubscription(ctx context.Context, subscriptionID string, expandLatestInvoice bool) (SubscriptionSnapshot, error)

	// UpdateSubscription flips cancel-at-period-end and returns the
	// provider's resulting snapshot. Callers mirror that snapshot rather
	// than assuming the update took the shape they asked for.
	UpdateSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (SubscriptionSnapshot, error)

	// VerifyAndParseEvent checks the webhook signature and decodes the
	// payload into a typed Event. A signature failure is the caller's cue
	// to respond 400; every verified event must be acked regardless of
	// what domain processing does with it.
	VerifyAndParseEvent(payload []byte, signatureHeader string) (Event, error)
}

// CheckoutParams carries everything needed to start a hosted checkout.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the created session the client is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// SubscriptionSnapshot is the provider's view of one subscription.
type SubscriptionSnapshot struct {
	ID                 string
	Status             string
	CustomerID         string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	LatestInvoice      *InvoiceSnapshot
}

// InvoiceSnapshot is the provider's view of one invoice. AmountPaid is in
// minor currency units. PeriodEnd is the invoice line's service period end
// and is zero when the provider omitted it.
type InvoiceSnapshot struct {
	ID             string
	Status         string
	BillingReason  string
	AmountPaid     int64
	Currency       string
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// Invoice statuses and billing reasons the engine dispatches on.
const (
	InvoiceStatusPaid               = "paid"
	BillingReasonSubscriptionCreate = "subscription_create"
)

// CheckoutSessionSnapshot is the provider's view of one checkout session as
// delivered in webhook events.
type CheckoutSessionSnapshot struct {
	ID             string
	Mode           string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// EventType is the provider event name. The engine handles the closed set
// below; anything else is logged and ignored.
type EventType string

const (
	EventCheckoutCompleted          EventType = "checkout.session.completed"
	EventCheckoutExpired            EventType = "checkout.session.expired"
	EventCheckoutAsyncPaymentFailed EventType = "checkout.session.async_payment_failed"
	EventInvoicePaymentSucceeded    EventType = "invoice.payment_succeeded"
	EventSubscriptionUpdated        EventType = "customer.subscription.updated"
	EventSubscriptionDeleted        EventType = "customer.subscription.deleted"
)

// Event is a verified webhook event. Exactly one of the payload fields is
// populated, matching the event type; all are nil for unknown types.
type Event struct {
	ID   string
	Type EventType

	CheckoutSession *CheckoutSessionSnapshot // checkout.session.*
	Invoice         *InvoiceSnapshot         // invoice.*
	Subscription    *SubscriptionSnapshot    // customer.subscription.*
}
