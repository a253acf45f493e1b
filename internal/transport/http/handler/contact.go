package handler

import (
	"net/http"

	"github.com/storefront-api/internal/application/contact"
	"github.com/storefront-api/internal/domain"
)

type ContactHandler struct {
	svc contact.Service
}

func NewContactHandler(svc contact.Service) *ContactHandler {
	return &ContactHandler{svc: svc}
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.Submit(r.Context(), req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "message received"})
}
