// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/tutorhub/tutorhub/internal/app/system/normalize"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "admin"|"parent"|"student"|"teacher"`)
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetParentByID loads a user by ObjectID, returning an error if the user
// does not exist or is not a parent role.
func (s *Store) GetParentByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "role": "parent"}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetTeacherByID loads a user by ObjectID, returning an error if the user
// does not exist or is not a teacher role.
func (s *Store) GetTeacherByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "role": "teacher"}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByCustomerID resolves the parent that owns a gateway customer.
// Returns mongo.ErrNoDocuments if no user carries the customer id.
func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"customer_id": customerID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Role = normalize.Role(u.Role)
	if u.Status == "" {
		u.Status = "active"
	}

	switch u.Role {
	case "admin", "parent", "student", "teacher":
		// ok
	default:
		return models.User{}, errBadRole
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// SetCustomerID caches the gateway customer id on a parent. Wins-once: a
// customer id already present is left alone so concurrent checkouts cannot
// orphan a gateway customer mid-flight.
func (s *Store) SetCustomerID(ctx context.Context, userID primitive.ObjectID, customerID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": userID, "customer_id": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{"customer_id": customerID, "updated_at": time.Now()}},
	)
	return err
}

// HasStudent reports whether the parent is linked to the given student.
func (s *Store) HasStudent(ctx context.Context, parentID, studentID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"_id":      parentID,
		"role":     "parent",
		"students": studentID,
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LinkStudent attaches a student to a parent. Idempotent.
func (s *Store) LinkStudent(ctx context.Context, parentID, studentID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": parentID, "role": "parent"},
		bson.M{
			"$addToSet": bson.M{"students": studentID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

// CreditTeacher adds a settled teacher share to the earnings ledger. Both
// counters move together so total_earnings always equals paid-out plus
// pending amounts.
func (s *Store) CreditTeacher(ctx context.Context, teacherID primitive.ObjectID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": teacherID, "role": "teacher"},
		bson.M{
			"$inc": bson.M{"total_earnings": amount, "pending_payouts": amount},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
