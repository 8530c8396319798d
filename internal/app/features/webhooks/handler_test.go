package webhooks

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tutorhub/tutorhub/internal/app/system/apierr"
	"github.com/tutorhub/tutorhub/internal/testutil"
	"go.uber.org/zap"
)

func deliver(t *testing.T, h *harness) *testutil.ResponseRecorder {
	t.Helper()
	handler := NewHandler(h.gateway, h.engine, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/enrollments", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := testutil.NewRecorder()
	handler.HandleEvent(rec, req)
	return rec
}

func TestHandleEvent_BadSignatureRejected(t *testing.T) {
	h := newHarness(t)
	h.gateway.verifyErr = apierr.SignatureInvalid(errors.New("no matching v1 signature"))

	rec := deliver(t, h)
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"success":false`)
}

func TestHandleEvent_VerifiedEventAcked(t *testing.T) {
	h := newHarness(t)
	h.gateway.event = checkoutCompletedEvent(h, "sub_1")

	rec := deliver(t, h)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"received":true`)
}

// A domain failure after verification must not turn into a non-2xx: the
// gateway would redeliver forever against the same failure.
func TestHandleEvent_ProcessingFailureStillAcked(t *testing.T) {
	h := newHarness(t)
	h.gateway.event = checkoutCompletedEvent(h, "sub_1")
	h.gateway.retrieveErr = errors.New("gateway unavailable")

	rec := deliver(t, h)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"received":true`)
}

func TestHandleEvent_UnknownTypeAcked(t *testing.T) {
	h := newHarness(t)
	h.gateway.event.ID = "evt_x"
	h.gateway.event.Type = "charge.refunded"

	rec := deliver(t, h)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"received":true`)
}
