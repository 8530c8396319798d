// internal/app/features/enrollments/service.go
package enrollments

import (
	"context"
	"errors"
	"fmt"

	enrollmentstore "github.com/tutorhub/tutorhub/internal/app/store/enrollments"
	"github.com/tutorhub/tutorhub/internal/app/system/apierr"
	"github.com/tutorhub/tutorhub/internal/app/system/payment"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserStore, GroupStore, and EnrollmentStore are the store contracts the
// service depends on. Satisfied by the Mongo stores; tests substitute
// in-memory fakes.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetParentByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	HasStudent(ctx context.Context, parentID, studentID primitive.ObjectID) (bool, error)
	SetCustomerID(ctx context.Context, userID primitive.ObjectID, customerID string) error
}

type GroupStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	SetPriceID(ctx context.Context, groupID primitive.ObjectID, priceID string) error
}

type EnrollmentStore interface {
	Create(ctx context.Context, e models.Enrollment) (models.Enrollment, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Enrollment, error)
	FindIncomplete(ctx context.Context, studentID, courseID primitive.ObjectID) (models.Enrollment, error)
	HasActiveFamily(ctx context.Context, studentID, courseID primitive.ObjectID) (bool, error)
	ListByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID primitive.ObjectID) ([]models.Enrollment, error)
	SetCheckoutSession(ctx context.Context, id primitive.ObjectID, sessionID, customerID, priceID string) error
	ApplySubscriptionState(ctx context.Context, id primitive.ObjectID, st enrollmentstore.SubscriptionState) (bool, error)
}

// Service owns the checkout, cancel, and renew flows. Activation never
// happens here: only the webhook engine moves an enrollment out of
// incomplete, so a user bailing on the hosted checkout page leaves no
// half-activated state behind.
type Service struct {
	gateway     payment.Gateway
	users       UserStore
	groups      GroupStore
	enrollments EnrollmentStore
	baseURL     string
	log         *zap.Logger
}

func NewService(gw payment.Gateway, users UserStore, groups GroupStore, enrollments EnrollmentStore, clientBaseURL string, log *zap.Logger) *Service {
	return &Service{
		gateway:     gw,
		users:       users,
		groups:      groups,
		enrollments: enrollments,
		baseURL:     clientBaseURL,
		log:         log,
	}
}

// CheckoutResult is what the client needs to continue a subscription
// purchase: the enrollment being paid for and the hosted checkout URL.
type CheckoutResult struct {
	EnrollmentID primitive.ObjectID
	CheckoutURL  string
}

// Subscribe runs the guards and opens a hosted checkout session for a
// (parent, student, group) triple. The enrollment it returns is incomplete
// until the gateway confirms payment through a webhook.
func (s *Service) Subscribe(ctx context.Context, parentID, studentID, groupID primitive.ObjectID) (CheckoutResult, error) {
	parent, err := s.users.GetParentByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return CheckoutResult{}, apierr.Forbidden("only parents can purchase enrollments")
		}
		return CheckoutResult{}, apierr.Internal("load parent", err)
	}

	owns, err := s.users.HasStudent(ctx, parentID, studentID)
	if err != nil {
		return CheckoutResult{}, apierr.Internal("check student link", err)
	}
	if !owns {
		return CheckoutResult{}, apierr.Forbidden("student is not linked to this account")
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return CheckoutResult{}, apierr.NotFound("group not found")
		}
		return CheckoutResult{}, apierr.Internal("load group", err)
	}
	if group.Status != "active" {
		return CheckoutResult{}, apierr.Conflict("group is closed")
	}
	if group.IsFull() {
		return CheckoutResult{}, apierr.Conflict("group is full")
	}
	if group.Price <= 0 {
		return CheckoutResult{}, apierr.BadRequest("group has no subscription price")
	}

	exists, err := s.enrollments.HasActiveFamily(ctx, studentID, group.CourseID)
	if err != nil {
		return CheckoutResult{}, apierr.Internal("check existing enrollment", err)
	}
	if exists {
		return CheckoutResult{}, apierr.Conflict("student already has an active enrollment for this course")
	}

	// Reuse an abandoned incomplete enrollment when there is one.
	enrollment, err := s.enrollments.FindIncomplete(ctx, studentID, group.CourseID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		enrollment, err = s.enrollments.Create(ctx, models.Enrollment{
			ParentID:  parentID,
			StudentID: studentID,
			TeacherID: group.TeacherID,
			GroupID:   group.ID,
			CourseID:  group.CourseID,
		})
	}
	if err != nil {
		return CheckoutResult{}, apierr.Internal("prepare enrollment", err)
	}

	customerID, err := s.ensureCustomer(ctx, parent)
	if err != nil {
		return CheckoutResult{}, err
	}

	priceID, err := s.ensurePrice(ctx, group)
	if err != nil {
		return CheckoutResult{}, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.baseURL + "/enrollments/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/groups/" + group.ID.Hex(),
		Metadata: map[string]string{
			payment.MetaEnrollmentID: enrollment.ID.Hex(),
			payment.MetaParentID:     parentID.Hex(),
			payment.MetaStudentID:    studentID.Hex(),
			payment.MetaTeacherID:    group.TeacherID.Hex(),
			payment.MetaGroupID:      group.ID.Hex(),
			payment.MetaCourseID:     group.CourseID.Hex(),
		},
	})
	if err != nil {
		return CheckoutResult{}, apierr.Internal("create checkout session", err)
	}

	if err := s.enrollments.SetCheckoutSession(ctx, enrollment.ID, session.ID, customerID, priceID); err != nil {
		return CheckoutResult{}, apierr.Internal("record checkout session", err)
	}

	s.log.Info("checkout session opened",
		zap.String("enrollment_id", enrollment.ID.Hex()),
		zap.String("group_id", group.ID.Hex()),
		zap.String("session_id", session.ID))

	return CheckoutResult{EnrollmentID: enrollment.ID, CheckoutURL: session.URL}, nil
}

// ensureCustomer returns the parent's gateway customer id, creating one on
// first use. The store write is wins-once, so a concurrent checkout that got
// there first keeps its id; we re-read to pick up the canonical value.
func (s *Service) ensureCustomer(ctx context.Context, parent *models.User) (string, error) {
	if parent.CustomerID != "" {
		return parent.CustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, parent.Email, parent.FullName, map[string]string{
		payment.MetaParentID: parent.ID.Hex(),
	})
	if err != nil {
		return "", apierr.Internal("create gateway customer", err)
	}
	if err := s.users.SetCustomerID(ctx, parent.ID, customerID); err != nil {
		return "", apierr.Internal("cache customer id", err)
	}

	fresh, err := s.users.GetByID(ctx, parent.ID)
	if err != nil {
		return "", apierr.Internal("reload parent", err)
	}
	if fresh.CustomerID != "" {
		return fresh.CustomerID, nil
	}
	return customerID, nil
}

// ensurePrice returns the group's gateway recurring price id, creating one
// on first use. Same wins-once pattern as ensureCustomer.
func (s *Service) ensurePrice(ctx context.Context, group models.Group) (string, error) {
	if group.PriceID != "" {
		return group.PriceID, nil
	}

	productName := fmt.Sprintf("%s (monthly)", group.Name)
	priceID, err := s.gateway.CreateRecurringPrice(ctx, productName, group.Price, group.Currency)
	if err != nil {
		return "", apierr.Internal("create gateway price", err)
	}
	if err := s.groups.SetPriceID(ctx, group.ID, priceID); err != nil {
		return "", apierr.Internal("cache price id", err)
	}

	fresh, err := s.groups.GetByID(ctx, group.ID)
	if err != nil {
		return "", apierr.Internal("reload group", err)
	}
	if fresh.PriceID != "" {
		return fresh.PriceID, nil
	}
	return priceID, nil
}

// Get loads one enrollment.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.Enrollment, error) {
	e, err := s.enrollments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Enrollment{}, apierr.NotFound("enrollment not found")
		}
		return models.Enrollment{}, apierr.Internal("load enrollment", err)
	}
	return e, nil
}

// ListForParent returns a parent's enrollments, newest first.
func (s *Service) ListForParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Enrollment, error) {
	list, err := s.enrollments.ListByParent(ctx, parentID)
	if err != nil {
		return nil, apierr.Internal("list enrollments", err)
	}
	return list, nil
}

// ListForStudent returns the enrollments a student is the subject of,
// newest first.
func (s *Service) ListForStudent(ctx context.Context, studentID primitive.ObjectID) ([]models.Enrollment, error) {
	list, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, apierr.Internal("list enrollments", err)
	}
	return list, nil
}

// Cancel schedules the subscription to end at the close of the current
// billing period. The enrollment stays in the active family until the
// gateway reports the final deletion through a webhook.
func (s *Service) Cancel(ctx context.Context, e models.Enrollment) (models.Enrollment, error) {
	if models.IsTerminalEnrollmentStatus(e.Status) {
		return models.Enrollment{}, apierr.Conflict("enrollment is already closed")
	}
	if e.SubscriptionID == "" {
		return models.Enrollment{}, apierr.Conflict("enrollment has no active subscription")
	}
	return s.mirrorUpdate(ctx, e, true)
}

// Renew undoes a pending cancellation before the period ends. Once the
// enrollment has reached a terminal state there is nothing to renew and the
// parent has to start a fresh checkout.
func (s *Service) Renew(ctx context.Context, e models.Enrollment) (models.Enrollment, error) {
	if models.IsTerminalEnrollmentStatus(e.Status) {
		return models.Enrollment{}, apierr.Conflict("enrollment is closed; start a new checkout to re-enroll")
	}
	if e.SubscriptionID == "" {
		return models.Enrollment{}, apierr.Conflict("enrollment has no active subscription")
	}
	if !e.CancelAtPeriodEnd {
		return models.Enrollment{}, apierr.Conflict("enrollment is not scheduled for cancellation")
	}
	return s.mirrorUpdate(ctx, e, false)
}

// mirrorUpdate pushes the cancel flag to the gateway and mirrors whatever
// subscription state the gateway reports back onto the enrollment.
func (s *Service) mirrorUpdate(ctx context.Context, e models.Enrollment, cancelAtPeriodEnd bool) (models.Enrollment, error) {
	snap, err := s.gateway.UpdateSubscription(ctx, e.SubscriptionID, cancelAtPeriodEnd)
	if err != nil {
		return models.Enrollment{}, apierr.Internal("update gateway subscription", err)
	}

	st := enrollmentstore.SubscriptionState{
		Status:            snap.Status,
		CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
		CanceledAt:        snap.CanceledAt,
	}
	if !snap.CurrentPeriodStart.IsZero() {
		st.CurrentPeriodStart = &snap.CurrentPeriodStart
	}
	if !snap.CurrentPeriodEnd.IsZero() {
		st.CurrentPeriodEnd = &snap.CurrentPeriodEnd
	}
	if _, err := s.enrollments.ApplySubscriptionState(ctx, e.ID, st); err != nil {
		return models.Enrollment{}, apierr.Internal("mirror subscription state", err)
	}

	s.log.Info("subscription updated",
		zap.String("enrollment_id", e.ID.Hex()),
		zap.String("subscription_id", e.SubscriptionID),
		zap.Bool("cancel_at_period_end", snap.CancelAtPeriodEnd))

	return s.Get(ctx, e.ID)
}
