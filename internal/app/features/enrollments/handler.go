// internal/app/features/enrollments/handler.go
package enrollments

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tutorhub/tutorhub/internal/app/policy/enrollmentpolicy"
	enrollmentstore "github.com/tutorhub/tutorhub/internal/app/store/enrollments"
	groupstore "github.com/tutorhub/tutorhub/internal/app/store/groups"
	userstore "github.com/tutorhub/tutorhub/internal/app/store/users"
	"github.com/tutorhub/tutorhub/internal/app/system/apierr"
	"github.com/tutorhub/tutorhub/internal/app/system/authz"
	"github.com/tutorhub/tutorhub/internal/app/system/httpjson"
	"github.com/tutorhub/tutorhub/internal/app/system/payment"
	"github.com/tutorhub/tutorhub/internal/app/system/timeouts"
	"github.com/tutorhub/tutorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for Enrollments. It holds the DB
// handle, the service, and logger provided by WAFFLE DBDeps / Startup.
type Handler struct {
	DB       *mongo.Database
	Log      *zap.Logger
	Service  *Service
	validate *validator.Validate
}

func NewHandler(db *mongo.Database, gw payment.Gateway, clientBaseURL string, logger *zap.Logger) *Handler {
	svc := NewService(gw,
		userstore.New(db),
		groupstore.New(db),
		enrollmentstore.New(db),
		clientBaseURL,
		logger,
	)
	return &Handler{
		DB:       db,
		Log:      logger,
		Service:  svc,
		validate: validator.New(),
	}
}

// NewHandlerWithService wires a handler around a pre-built service. Used by
// tests that substitute fake stores and gateways.
func NewHandlerWithService(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		Service:  svc,
		validate: validator.New(),
	}
}

// HandleCheckout starts a hosted checkout for the signed-in parent.
// POST /enrollments/checkout/{groupID} with {"student_id": "..."}.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	role, _, parentID, ok := authz.UserCtx(r)
	if !ok || role != authz.RoleParent {
		httpjson.WriteError(w, h.Log, apierr.Forbidden("only parents can purchase enrollments"))
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.BadRequest("invalid group id"))
		return
	}

	var in checkoutInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpjson.WriteError(w, h.Log, apierr.BadRequest("student_id must be a 24-character hex id"))
		return
	}
	studentID, err := primitive.ObjectIDFromHex(in.StudentID)
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.BadRequest("invalid student id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Gateway())
	defer cancel()

	result, err := h.Service.Subscribe(ctx, parentID, studentID, groupID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	httpjson.Write(w, http.StatusCreated, checkoutResponse{
		Success:      true,
		EnrollmentID: result.EnrollmentID.Hex(),
		CheckoutURL:  result.CheckoutURL,
	})
}

// HandleListMine lists the signed-in user's enrollments: the ones a parent
// initiated, or the ones a student is the subject of.
// GET /enrollments/me
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.WriteError(w, h.Log, apierr.Forbidden("sign in to list enrollments"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var list []models.Enrollment
	var err error
	switch role {
	case authz.RoleParent:
		list, err = h.Service.ListForParent(ctx, uid)
	case authz.RoleStudent:
		list, err = h.Service.ListForStudent(ctx, uid)
	default:
		httpjson.WriteError(w, h.Log, apierr.Forbidden("only parents and students have enrollments"))
		return
	}
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	views := make([]enrollmentView, 0, len(list))
	for _, e := range list {
		views = append(views, toView(e))
	}
	httpjson.Write(w, http.StatusOK, listResponse{Success: true, Enrollments: views})
}

// HandleGet returns one enrollment the caller is allowed to see.
// GET /enrollments/{enrollmentID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "enrollmentID"))
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.BadRequest("invalid enrollment id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Service.Get(ctx, id)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !enrollmentpolicy.CanViewEnrollment(r, e) {
		httpjson.WriteError(w, h.Log, apierr.Forbidden("not allowed to view this enrollment"))
		return
	}

	httpjson.Write(w, http.StatusOK, enrollmentResponse{Success: true, Enrollment: toView(e)})
}

// HandleCancel schedules an enrollment's subscription to end at the close of
// the current billing period.
// DELETE /enrollments/{enrollmentID}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Service.Cancel)
}

// HandleRenew reverses a pending cancellation.
// POST /enrollments/{enrollmentID}/renew
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Service.Renew)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, e models.Enrollment) (models.Enrollment, error)) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "enrollmentID"))
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.BadRequest("invalid enrollment id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Gateway())
	defer cancel()

	e, err := h.Service.Get(ctx, id)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !enrollmentpolicy.CanManageEnrollment(r, e) {
		httpjson.WriteError(w, h.Log, apierr.Forbidden("not allowed to manage this enrollment"))
		return
	}

	updated, err := op(ctx, e)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	httpjson.Write(w, http.StatusOK, enrollmentResponse{Success: true, Enrollment: toView(updated)})
}
