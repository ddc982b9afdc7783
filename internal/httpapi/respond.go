package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/karanmishra2003/HoloHire/internal/app"
	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/internal/questions"
	"github.com/karanmishra2003/HoloHire/internal/resilience"
	"github.com/karanmishra2003/HoloHire/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, store.ErrInvalid), errors.Is(err, questions.ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, app.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, app.ErrSessionActive), errors.Is(err, app.ErrNoAnswers):
		return http.StatusConflict
	case errors.Is(err, app.ErrUnavailable), errors.Is(err, app.ErrVoiceUnavailable),
		errors.Is(err, resilience.ErrAllFailed), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, questions.ErrNoQuestions):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError writes err as a JSON error body. Server faults are logged and
// their details withheld from the client. r may be nil.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		ctx := context.Background()
		if r != nil {
			ctx = r.Context()
		}
		observe.Logger(ctx).Error("request failed", "err", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}
