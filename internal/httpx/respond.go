package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"graph-control-plane/backend/internal/errs"
)

// errorBody is the JSON payload for every non-2xx response.
type errorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Status    int               `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId"`
	Timestamp string            `json:"timestamp"`
}

// statusFromKind maps the error taxonomy onto HTTP status codes.
func statusFromKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusUnprocessableEntity
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindQuotaExceeded:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindGraphNotReady:
		return http.StatusServiceUnavailable
	case errs.KindGraphTimeout:
		return http.StatusGatewayTimeout
	case errs.KindAdminUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the standard error payload. Non-taxonomy errors
// are reported as internal without leaking their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFromKind(kind)

	message := "internal server error"
	var details map[string]string
	var e *errs.Error
	if errors.As(err, &e) && kind != errs.KindInternal {
		message = e.Message
		details = e.Details
	}

	WriteJSON(w, status, errorBody{
		Error:     string(kind),
		Message:   message,
		Status:    status,
		Details:   details,
		RequestID: RequestIDFrom(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
