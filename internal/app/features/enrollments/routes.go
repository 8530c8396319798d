// internal/app/features/enrollments/routes.go
package enrollments

import (
	"github.com/go-chi/chi/v5"
	"github.com/tutorhub/tutorhub/internal/app/system/auth"
)

// Routes mounts all enrollment routes under the path where the caller mounts
// it. Typically: r.Mount("/enrollments", enrollments.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Post("/checkout/{groupID}", h.HandleCheckout)
		pr.Get("/me", h.HandleListMine)

		pr.Get("/{enrollmentID}", h.HandleGet)
		pr.Delete("/{enrollmentID}", h.HandleCancel)
		pr.Post("/{enrollmentID}/renew", h.HandleRenew)
	})

	return r
}
