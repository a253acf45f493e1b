package handler

import (
	"encoding/json"
	"net/http"

	"github.com/storefront-api/internal/application/account"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/validate"
	"github.com/storefront-api/internal/transport/http/middleware"
)

// AccountHandler exposes the credential and deletion self-service workflows.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type requestUsernameChangeRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required"`
}

type changeUsernameRequest struct {
	Username         string `json:"username" validate:"required,min=3,max=30"`
	VerificationCode string `json:"verification_code" validate:"required,len=6,numeric"`
}

type requestEmailChangeRequest struct {
	NewEmail string `json:"new_email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailChangeRequest struct {
	VerificationCode string `json:"verification_code" validate:"required,len=6,numeric"`
}

type changePasswordRequest struct {
	CurrentPassword      string `json:"current_password" validate:"required"`
	NewPassword          string `json:"new_password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=NewPassword"`
}

type requestDeletionRequest struct {
	Password string `json:"password"` // omitted for federated accounts
}

type confirmDeletionRequest struct {
	VerificationCode string `json:"verification_code" validate:"required,len=6,numeric"`
	DeletionReason   string `json:"deletion_reason" validate:"omitempty,max=2000"`
}

type resendVerificationRequest struct {
	Action string `json:"action" validate:"required"`
}

func (h *AccountHandler) RequestUsernameChange(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req requestUsernameChangeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.RequestUsernameChange(r.Context(), claims.UserID, req.Username, req.Password); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "verification code sent"})
}

func (h *AccountHandler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req changeUsernameRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	username, err := h.svc.ChangeUsername(r.Context(), claims.UserID, req.Username, req.VerificationCode)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsernameEnvelope{Success: true, Username: username})
}

func (h *AccountHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req requestEmailChangeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.RequestEmailChange(r.Context(), claims.UserID, req.NewEmail, req.Password); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "verification code sent to new address"})
}

func (h *AccountHandler) VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req verifyEmailChangeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	email, err := h.svc.VerifyEmailChange(r.Context(), claims.UserID, req.VerificationCode)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EmailEnvelope{Success: true, Email: email})
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "password changed"})
}

func (h *AccountHandler) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req requestDeletionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.RequestDeletion(r.Context(), claims.UserID, req.Password); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "verification code sent"})
}

func (h *AccountHandler) ConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req confirmDeletionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.ConfirmDeletion(r.Context(), claims.UserID, req.VerificationCode, req.DeletionReason); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "account deleted"})
}

func (h *AccountHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req resendVerificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	action := domain.VerificationAction(req.Action)
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if err := h.svc.ResendVerification(r.Context(), claims.UserID, action); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "verification code resent"})
}

// decodeAndValidate parses the JSON body into dst and runs struct validation,
// writing the error response itself when either step fails.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
