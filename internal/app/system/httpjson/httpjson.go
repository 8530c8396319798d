// internal/app/system/httpjson/httpjson.go

// Package httpjson holds the JSON request/response helpers shared by all
// API features. Error responses always have the shape
// {"success":false,"message":"..."} so clients can surface them verbatim.
package httpjson

import (
	"encoding/json"
	"net/http"

	"github.com/tutorhub/tutorhub/internal/app/system/apierr"
	"go.uber.org/zap"
)

// Write encodes data as JSON with the given status code.
func Write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// errorBody is the wire shape for all error responses.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteError renders err using its typed status code when it is an
// apierr.Error; anything else becomes an opaque 500. Internal detail is
// logged, never sent to the client.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	if apiErr, ok := apierr.As(err); ok {
		if apiErr.Code >= http.StatusInternalServerError && log != nil {
			log.Error("request failed", zap.Error(err))
		}
		Write(w, apiErr.Code, errorBody{Success: false, Message: apiErr.Message})
		return
	}
	if log != nil {
		log.Error("unhandled error", zap.Error(err))
	}
	Write(w, http.StatusInternalServerError, errorBody{Success: false, Message: "internal server error"})
}

// Decode reads a JSON body into v. A malformed body maps to BadRequest.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierr.BadRequest("invalid JSON body")
	}
	return nil
}
