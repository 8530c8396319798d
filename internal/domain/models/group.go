// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group represents a paid cohort (class) inside a course, run by one teacher.
//
// NOTE:
//   - The student list is embedded on the group document so that the
//     membership add and the counter increment happen in one atomic
//     update (concurrent webhook deliveries must not double-increment).
//   - Price is in minor currency units (cents). A group with price 0 is
//     free and cannot be subscribed to through the billing flow.
type Group struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	NameCI    string             `bson:"name_ci" json:"name_ci"`
	CourseID  primitive.ObjectID `bson:"course_id" json:"course_id"`
	TeacherID primitive.ObjectID `bson:"teacher_id" json:"teacher_id"`

	Price    int64  `bson:"price" json:"price"` // minor units, monthly
	Currency string `bson:"currency" json:"currency"`
	PriceID  string `bson:"price_id,omitempty" json:"-"` // cached gateway recurring price

	Capacity      int                  `bson:"capacity" json:"capacity"`
	StudentsCount int                  `bson:"students_count" json:"students_count"`
	Students      []primitive.ObjectID `bson:"students,omitempty" json:"students,omitempty"`

	Status string `bson:"status" json:"status"` // active | closed

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsFull reports whether the group has reached its seat capacity.
// A capacity of zero means unlimited.
func (g Group) IsFull() bool {
	return g.Capacity > 0 && g.StudentsCount >= g.Capacity
}
