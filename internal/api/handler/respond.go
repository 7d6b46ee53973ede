package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

// errorCodes maps sentinel errors to a status and a stable code clients can
// switch on. Order matters: the first match wins.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrMissingMailID, http.StatusUnprocessableEntity, "missing_mail_id"},
	{domain.ErrJobEmpty, http.StatusUnprocessableEntity, "no_recipients"},
	{domain.ErrInvalidChunkSize, http.StatusUnprocessableEntity, "invalid_chunk_size"},
	{domain.ErrInvalidEmail, http.StatusUnprocessableEntity, "invalid_email"},
	{domain.ErrWrongContentKind, http.StatusUnprocessableEntity, "wrong_content_kind"},
	{domain.ErrInvalidItem, http.StatusUnprocessableEntity, "invalid_request"},
	{domain.ErrQueueFull, http.StatusServiceUnavailable, "queue_full"},
}

// mapError translates domain sentinel errors to HTTP responses.
// Anything unknown is reported as a 500 without leaking its message.
func mapError(w http.ResponseWriter, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			respondJSON(w, ec.status, errorBody{Error: err.Error(), Code: ec.code})
			return
		}
	}
	respondError(w, http.StatusInternalServerError, "internal server error")
}
