// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents admins, parents, students, and teachers.
//
// NOTE:
//   - Parents link to their children through the Students field; the
//     enrollment flow checks that linkage before creating a checkout.
//   - Billing fields are role-specific: CustomerID is only ever set on
//     parents (the payer), the earnings fields only on teachers.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"` // admin | parent | student | teacher
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	// Parent fields
	Students   []primitive.ObjectID `bson:"students,omitempty" json:"students,omitempty"`
	CustomerID string               `bson:"customer_id,omitempty" json:"-"` // payment gateway customer

	// Teacher earnings ledger, minor currency units. Credited by the
	// webhook reconciliation engine only; decremented by the payout
	// subsystem, which lives outside this service.
	TotalEarnings  int64 `bson:"total_earnings,omitempty" json:"total_earnings,omitempty"`
	PendingPayouts int64 `bson:"pending_payouts,omitempty" json:"pending_payouts,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
