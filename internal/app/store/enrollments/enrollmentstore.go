// internal/app/store/enrollments/enrollmentstore.go
package enrollmentstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("enrollments")}
}

// ErrDuplicateSubscription is returned when a second enrollment tries to
// claim a subscription id already linked elsewhere (unique sparse index).
var ErrDuplicateSubscription = errors.New("subscription is already linked to another enrollment")

// Create inserts a new enrollment in the incomplete state.
func (s *Store) Create(ctx context.Context, e models.Enrollment) (models.Enrollment, error) {
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	if e.Status == "" {
		e.Status = models.EnrollmentIncomplete
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Enrollment{}, err
	}
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Enrollment, error) {
	var e models.Enrollment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return models.Enrollment{}, err
	}
	return e, nil
}

// GetBySubscriptionID resolves the enrollment a gateway subscription belongs
// to. Returns mongo.ErrNoDocuments for subscriptions this service never
// created (foreign events are acknowledged, not processed).
func (s *Store) GetBySubscriptionID(ctx context.Context, subscriptionID string) (models.Enrollment, error) {
	var e models.Enrollment
	if err := s.c.FindOne(ctx, bson.M{"subscription_id": subscriptionID}).Decode(&e); err != nil {
		return models.Enrollment{}, err
	}
	return e, nil
}

// GetByCheckoutSessionID resolves the enrollment that initiated a checkout
// session.
func (s *Store) GetByCheckoutSessionID(ctx context.Context, sessionID string) (models.Enrollment, error) {
	var e models.Enrollment
	if err := s.c.FindOne(ctx, bson.M{"checkout_session_id": sessionID}).Decode(&e); err != nil {
		return models.Enrollment{}, err
	}
	return e, nil
}

// FindIncomplete returns an abandoned incomplete enrollment for the same
// (student, course) pair, if one exists. The checkout flow reuses it instead
// of piling up duplicates. Returns mongo.ErrNoDocuments when there is none.
func (s *Store) FindIncomplete(ctx context.Context, studentID, courseID primitive.ObjectID) (models.Enrollment, error) {
	var e models.Enrollment
	err := s.c.FindOne(ctx, bson.M{
		"student_id": studentID,
		"course_id":  courseID,
		"status":     models.EnrollmentIncomplete,
	}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&e)
	if err != nil {
		return models.Enrollment{}, err
	}
	return e, nil
}

// HasActiveFamily reports whether the student already holds a live paid
// membership (trialing, active, or past_due) for the course.
func (s *Store) HasActiveFamily(ctx context.Context, studentID, courseID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"student_id": studentID,
		"course_id":  courseID,
		"status":     bson.M{"$in": models.ActiveFamilyStatuses},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByParent returns a parent's enrollments, newest first.
func (s *Store) ListByParent(ctx context.Context, parentID primitive.ObjectID) ([]models.Enrollment, error) {
	cur, err := s.c.Find(ctx, bson.M{"parent_id": parentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var enrollments []models.Enrollment
	if err := cur.All(ctx, &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// ListByStudent returns the enrollments a student is the subject of,
// newest first.
func (s *Store) ListByStudent(ctx context.Context, studentID primitive.ObjectID) ([]models.Enrollment, error) {
	cur, err := s.c.Find(ctx, bson.M{"student_id": studentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var enrollments []models.Enrollment
	if err := cur.All(ctx, &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

// SetCheckoutSession records the gateway linkage created when a checkout
// session is opened. The enrollment goes back to incomplete in case a
// reused document carried stale session state.
func (s *Store) SetCheckoutSession(ctx context.Context, id primitive.ObjectID, sessionID, customerID, priceID string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"checkout_session_id": sessionID,
		"customer_id":         customerID,
		"price_id":            priceID,
		"status":              models.EnrollmentIncomplete,
		"updated_at":          time.Now().UTC(),
	}})
	return err
}

// LinkSubscription attaches the gateway subscription reported for a
// completed checkout. The unique sparse index rejects a second enrollment
// claiming the same subscription.
func (s *Store) LinkSubscription(ctx context.Context, id primitive.ObjectID, subscriptionID string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"subscription_id": subscriptionID,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateSubscription
		}
		return err
	}
	return nil
}

// SubscriptionState is the slice of gateway subscription state the
// enrollment document mirrors.
type SubscriptionState struct {
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

// Terminal enrollments never change again.
var nonTerminalFilter = bson.M{"$nin": bson.A{
	models.EnrollmentCanceled,
	models.EnrollmentIncompleteExpired,
}}

// ApplySubscriptionState mirrors gateway subscription state onto the
// enrollment. Terminal enrollments are left alone: a late or out-of-order
// event cannot resurrect a canceled or expired enrollment. Returns true
// when the document changed.
func (s *Store) ApplySubscriptionState(ctx context.Context, id primitive.ObjectID, st SubscriptionState) (bool, error) {
	set := bson.M{
		"status":               st.Status,
		"cancel_at_period_end": st.CancelAtPeriodEnd,
		"updated_at":           time.Now().UTC(),
	}
	if st.CurrentPeriodStart != nil {
		set["current_period_start"] = st.CurrentPeriodStart
	}
	if st.CurrentPeriodEnd != nil {
		set["current_period_end"] = st.CurrentPeriodEnd
	}
	if st.CanceledAt != nil {
		set["canceled_at"] = st.CanceledAt
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": nonTerminalFilter},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkCanceled moves the enrollment to its terminal canceled state.
func (s *Store) MarkCanceled(ctx context.Context, id primitive.ObjectID, canceledAt time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": nonTerminalFilter},
		bson.M{"$set": bson.M{
			"status":      models.EnrollmentCanceled,
			"canceled_at": canceledAt,
			"updated_at":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ExpireIfIncomplete marks an enrollment incomplete_expired, but only while
// it is still incomplete. An expiry event racing a completion loses: the
// conditional filter makes the expiry a no-op once activation has happened.
func (s *Store) ExpireIfIncomplete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.EnrollmentIncomplete},
		bson.M{"$set": bson.M{
			"status":      models.EnrollmentIncompleteExpired,
			"canceled_at": now,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// AppendChargeIfAbsent pushes a settled charge onto the ledger unless a
// charge with the same invoice id is already there. The dedup condition
// lives in the update filter, so two concurrent deliveries of the same
// invoice cannot both append. Returns true when the charge was recorded.
func (s *Store) AppendChargeIfAbsent(ctx context.Context, id primitive.ObjectID, charge models.Charge) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "charges.invoice_id": bson.M{"$ne": charge.InvoiceID}},
		bson.M{
			"$push": bson.M{"charges": charge},
			"$set": bson.M{
				"paid_at":    charge.PaidAt,
				"updated_at": time.Now().UTC(),
			},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
