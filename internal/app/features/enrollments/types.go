// internal/app/features/enrollments/types.go
package enrollments

import (
	"time"

	"github.com/tutorhub/tutorhub/internal/domain/models"
)

// checkoutInput defines validation rules for starting a checkout.
type checkoutInput struct {
	StudentID string `json:"student_id" validate:"required,len=24,hexadecimal"`
}

// checkoutResponse is returned from POST /enrollments/checkout/{groupID}.
type checkoutResponse struct {
	Success      bool   `json:"success"`
	EnrollmentID string `json:"enrollment_id"`
	CheckoutURL  string `json:"checkout_url"`
}

// chargeView is one ledger entry on an enrollment, amounts in minor units.
type chargeView struct {
	InvoiceID    string    `json:"invoice_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	TeacherShare int64     `json:"teacher_share"`
	PlatformFee  int64     `json:"platform_fee"`
	PaidAt       time.Time `json:"paid_at"`
}

// enrollmentView is the wire shape for one enrollment.
type enrollmentView struct {
	ID                 string       `json:"id"`
	StudentID          string       `json:"student_id"`
	GroupID            string       `json:"group_id"`
	CourseID           string       `json:"course_id"`
	Status             string       `json:"status"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	CurrentPeriodStart *time.Time   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time   `json:"current_period_end,omitempty"`
	CanceledAt         *time.Time   `json:"canceled_at,omitempty"`
	PaidAt             *time.Time   `json:"paid_at,omitempty"`
	Charges            []chargeView `json:"charges"`
	CreatedAt          time.Time    `json:"created_at"`
}

// enrollmentResponse wraps a single enrollment.
type enrollmentResponse struct {
	Success    bool           `json:"success"`
	Enrollment enrollmentView `json:"enrollment"`
}

// listResponse wraps a parent's enrollments.
type listResponse struct {
	Success     bool             `json:"success"`
	Enrollments []enrollmentView `json:"enrollments"`
}

func toView(e models.Enrollment) enrollmentView {
	charges := make([]chargeView, 0, len(e.Charges))
	for _, c := range e.Charges {
		charges = append(charges, chargeView{
			InvoiceID:    c.InvoiceID,
			Amount:       c.Amount,
			Currency:     c.Currency,
			TeacherShare: c.TeacherShare,
			PlatformFee:  c.PlatformFee,
			PaidAt:       c.PaidAt,
		})
	}
	return enrollmentView{
		ID:                 e.ID.Hex(),
		StudentID:          e.StudentID.Hex(),
		GroupID:            e.GroupID.Hex(),
		CourseID:           e.CourseID.Hex(),
		Status:             e.Status,
		CancelAtPeriodEnd:  e.CancelAtPeriodEnd,
		CurrentPeriodStart: e.CurrentPeriodStart,
		CurrentPeriodEnd:   e.CurrentPeriodEnd,
		CanceledAt:         e.CanceledAt,
		PaidAt:             e.PaidAt,
		Charges:            charges,
		CreatedAt:          e.CreatedAt,
	}
}
