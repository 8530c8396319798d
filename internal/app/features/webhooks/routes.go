// internal/app/features/webhooks/routes.go
package webhooks

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the webhook receiver. Deliveries are authenticated by
// signature, not by session, so no auth middleware applies here.
// Typically: r.Mount("/webhooks", webhooks.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/enrollments", h.HandleEvent)
	return r
}
