// internal/app/features/webhooks/handler.go
package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/tutorhub/tutorhub/internal/app/system/apierr"
	"github.com/tutorhub/tutorhub/internal/app/system/httpjson"
	"github.com/tutorhub/tutorhub/internal/app/system/payment"
	"github.com/tutorhub/tutorhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// maxPayloadBytes bounds the webhook request body. Gateway events are a few
// KB; anything larger is not a legitimate delivery.
const maxPayloadBytes = 1 << 16

// Handler receives gateway webhook deliveries. The contract with the
// gateway is narrow: 400 only when the signature does not verify, 200 for
// every verified event. Domain processing failures are logged, not
// surfaced, because the gateway's redelivery would hit the same failure
// while the conditional store updates already make retries safe.
type Handler struct {
	Gateway payment.Gateway
	Engine  *Engine
	Log     *zap.Logger
}

func NewHandler(gw payment.Gateway, engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{Gateway: gw, Engine: engine, Log: logger}
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// HandleEvent verifies and applies one webhook delivery.
// POST /webhooks/enrollments
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.BadRequest("unreadable webhook payload"))
		return
	}

	ev, err := h.Gateway.VerifyAndParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Gateway())
	defer cancel()

	if err := h.Engine.Process(ctx, ev); err != nil {
		h.Log.Error("webhook processing failed",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}

	httpjson.Write(w, http.StatusOK, receivedResponse{Received: true})
}
