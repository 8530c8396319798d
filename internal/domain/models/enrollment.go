// internal/domain/models/enrollment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Enrollment statuses mirror the payment gateway's subscription states.
// An enrollment is created as incomplete when a parent starts checkout and
// only leaves that state through a verified webhook event.
const (
	EnrollmentIncomplete        = "incomplete"
	EnrollmentIncompleteExpired = "incomplete_expired"
	EnrollmentTrialing          = "trialing"
	EnrollmentActive            = "active"
	EnrollmentPastDue           = "past_due"
	EnrollmentCanceled          = "canceled"
	EnrollmentUnpaid            = "unpaid"
)

// ActiveFamilyStatuses are the statuses that count as an existing paid
// membership for the duplicate-subscription guard.
var ActiveFamilyStatuses = []string{EnrollmentTrialing, EnrollmentActive, EnrollmentPastDue}

// IsTerminalEnrollmentStatus reports whether the status can no longer change.
func IsTerminalEnrollmentStatus(status string) bool {
	return status == EnrollmentCanceled || status == EnrollmentIncompleteExpired
}

// Charge is one settled invoice on an enrollment. InvoiceID is the natural
// dedup key: the store refuses to append a second charge with the same id.
// All amounts are minor currency units, and TeacherShare + PlatformFee
// always equals Amount.
type Charge struct {
	InvoiceID    string    `bson:"invoice_id" json:"invoice_id"`
	Amount       int64     `bson:"amount" json:"amount"`
	Currency     string    `bson:"currency" json:"currency"`
	TeacherShare int64     `bson:"teacher_share" json:"teacher_share"`
	PlatformFee  int64     `bson:"platform_fee" json:"platform_fee"`
	PaidAt       time.Time `bson:"paid_at" json:"paid_at"`
}

// Enrollment is one student's paid membership in one group. It is the
// aggregate the webhook reconciliation engine mutates: status transitions,
// billing period, and the append-only charge ledger all live here.
type Enrollment struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	ParentID  primitive.ObjectID `bson:"parent_id" json:"parent_id"`
	StudentID primitive.ObjectID `bson:"student_id" json:"student_id"`
	TeacherID primitive.ObjectID `bson:"teacher_id" json:"teacher_id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	CourseID  primitive.ObjectID `bson:"course_id" json:"course_id"`

	// Gateway linkage. SubscriptionID is globally unique once set (unique
	// sparse index); CheckoutSessionID only correlates the initiating
	// session with the subscription the gateway eventually reports.
	CustomerID        string `bson:"customer_id,omitempty" json:"-"`
	SubscriptionID    string `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	CheckoutSessionID string `bson:"checkout_session_id,omitempty" json:"-"`
	PriceID           string `bson:"price_id,omitempty" json:"-"`

	Status string `bson:"status" json:"status"`

	CurrentPeriodStart *time.Time `bson:"current_period_start,omitempty" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `bson:"current_period_end,omitempty" json:"current_period_end,omitempty"`

	CancelAtPeriodEnd bool       `bson:"cancel_at_period_end" json:"cancel_at_period_end"`
	CanceledAt        *time.Time `bson:"canceled_at,omitempty" json:"canceled_at,omitempty"`
	PaidAt            *time.Time `bson:"paid_at,omitempty" json:"paid_at,omitempty"`

	Charges []Charge `bson:"charges,omitempty" json:"charges,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasCharge reports whether a charge with the given invoice id has already
// been applied. The store enforces this atomically as well; this helper is
// for in-memory checks on a loaded document.
func (e Enrollment) HasCharge(invoiceID string) bool {
	for _, c := range e.Charges {
		if c.InvoiceID == invoiceID {
			return true
		}
	}
	return false
}
