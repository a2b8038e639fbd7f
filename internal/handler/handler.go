// Package handler is the HTTP boundary of the assistant: a JSON API over
// the quiz and grading engines, the PII sanitizer and the quiz store.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/k5assist/internal/grading"
	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/quiz"
	"github.com/pavelanni/k5assist/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	gateway *llm.Client
	quiz    *quiz.Engine
	grader  *grading.Engine
	// store is nil when persistence is disabled.
	store *store.Store
}

// New creates a new Handler. s may be nil.
func New(gw *llm.Client, s *store.Store) *Handler {
	return &Handler{
		gateway: gw,
		quiz:    quiz.NewEngine(gw),
		grader:  grading.NewEngine(gw),
		store:   s,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Post("/generate-quiz", h.handleGenerateQuiz)
		r.Post("/generate-quiz/stream", h.handleGenerateQuizStream)
		r.Post("/grade", h.handleGrade)
		r.Post("/sanitize", h.handleSanitize)
		r.Post("/validate-pii", h.handleValidatePII)
		r.Get("/quizzes", h.handleListQuizzes)
		r.Get("/quizzes/{quizID}", h.handleGetQuiz)
	})
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Provider  llm.Provider `json:"provider"`
	Model     string       `json:"model"`
	Storage   bool         `json:"storage"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := h.gateway.Config()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Storage:   h.store != nil,
	})
}

func (h *Handler) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []model.QuizRecord{})
		return
	}
	quizzes, err := h.store.ListQuizzes(r.URL.Query().Get("teacherId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if quizzes == nil {
		quizzes = []model.QuizRecord{}
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quizID")
	if h.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "quiz storage is disabled"})
		return
	}
	rec, err := h.store.GetQuiz(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "quiz " + id + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorStatus maps an error to an HTTP status and a short machine-readable
// code.
func errorStatus(err error) (int, string) {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, model.ErrUnsupportedProvider):
		return http.StatusBadRequest, "unsupported_provider"
	case model.IsConfiguration(err):
		return http.StatusBadRequest, "configuration_error"
	case model.IsTransport(err):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	} else {
		slog.Warn("request rejected", "code", code, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeJSON reads a JSON request body into v and checks its validate
// tags. Every failure is a *model.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return model.Validate(v)
}

// llmOverride is the per-request gateway override a client may send. It
// cannot carry credentials or endpoints.
type llmOverride struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"maxTokens" validate:"gte=0"`
}

func (o *llmOverride) config() (*llm.Config, error) {
	if o == nil {
		return nil, nil
	}
	cfg := &llm.Config{Model: o.Model, Temperature: o.Temperature, MaxTokens: o.MaxTokens}
	if o.Provider != "" {
		p, err := llm.ParseProvider(o.Provider)
		if err != nil {
			return nil, err
		}
		cfg.Provider = p
	}
	return cfg, nil
}
