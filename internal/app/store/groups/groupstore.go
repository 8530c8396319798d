// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/tutorhub/tutorhub/internal/app/system/normalize"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	g.Currency = normalize.Currency(g.Currency)
	if g.Status == "" {
		g.Status = "active"
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// ListByTeacher returns the groups run by a teacher.
func (s *Store) ListByTeacher(ctx context.Context, teacherID primitive.ObjectID) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, bson.M{"teacher_id": teacherID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SetPriceID caches the gateway recurring price for a group. Wins-once: a
// cached price is never replaced, so two racing checkouts for the same group
// end up reusing a single gateway price.
func (s *Store) SetPriceID(ctx context.Context, groupID primitive.ObjectID, priceID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": groupID, "price_id": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{"price_id": priceID, "updated_at": time.Now().UTC()}},
	)
	return err
}

// AddStudentIfAbsent puts a student on the group roster and bumps the seat
// counter in one conditional update. The $ne guard makes the operation
// idempotent under concurrent webhook deliveries: only the delivery that
// actually adds the student increments the counter. Returns true when the
// roster changed.
func (s *Store) AddStudentIfAbsent(ctx context.Context, groupID, studentID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": groupID, "students": bson.M{"$ne": studentID}},
		bson.M{
			"$addToSet": bson.M{"students": studentID},
			"$inc":      bson.M{"students_count": 1},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// RemoveStudent takes a student off the roster, decrementing the counter
// only when the student was actually present.
func (s *Store) RemoveStudent(ctx context.Context, groupID, studentID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": groupID, "students": studentID},
		bson.M{
			"$pull": bson.M{"students": studentID},
			"$inc":  bson.M{"students_count": -1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
