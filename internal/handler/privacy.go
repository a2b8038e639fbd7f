package handler

import (
	"net/http"

	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/privacy"
)

type sanitizeRequest struct {
	Content model.AnswerContent `json:"content"`
	// Mask and PreserveContext default to true.
	Mask            *bool `json:"mask"`
	PreserveContext *bool `json:"preserveContext"`
}

func (h *Handler) handleSanitize(w http.ResponseWriter, r *http.Request) {
	var req sanitizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	opts := privacy.DefaultOptions()
	if req.Mask != nil {
		opts.Mask = *req.Mask
	}
	if req.PreserveContext != nil {
		opts.PreserveContext = *req.PreserveContext
	}

	clean, err := privacy.SanitizeAnswer(req.Content, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clean)
}

type validatePIIRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleValidatePII(w http.ResponseWriter, r *http.Request) {
	var req validatePIIRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, privacy.ValidateNoPII(req.Text))
}
