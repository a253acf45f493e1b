package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/storefront-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UsernameEnvelope wraps a completed username change.
type UsernameEnvelope struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

// EmailEnvelope wraps a completed email change.
type EmailEnvelope struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
}

// AuthEnvelope wraps login responses.
type AuthEnvelope struct {
	Success      bool            `json:"success"`
	Bearer       string          `json:"Bearer,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Success: false, Error: msg})
}

// httpError maps domain sentinel errors to HTTP status codes. Unrecognized
// errors are infrastructure failures and surface as a generic 500 so store
// details never leak to clients.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrWrongPassword),
		errors.Is(err, domain.ErrNoToken),
		errors.Is(err, domain.ErrTokenFormat),
		errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrWrongAction),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrNoVerification):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
