package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/quiz"
)

type generateQuizRequest struct {
	CurriculumText     string       `json:"curriculumText" validate:"notblank"`
	GradeLevel         string       `json:"gradeLevel" validate:"required"`
	Subject            string       `json:"subject" validate:"required"`
	CurriculumStandard string       `json:"curriculumStandard"`
	NumberOfQuestions  int          `json:"numberOfQuestions" validate:"omitempty,min=1,max=20"`
	Difficulty         string       `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Title              string       `json:"title"`
	TeacherID          string       `json:"teacherId"`
	LLM                *llmOverride `json:"llmConfig"`
}

func (req generateQuizRequest) options() (quiz.Options, error) {
	grade, err := model.ParseGradeLevel(req.GradeLevel)
	if err != nil {
		return quiz.Options{}, err
	}
	cfg, err := req.LLM.config()
	if err != nil {
		return quiz.Options{}, err
	}
	return quiz.Options{
		GradeLevel:         grade,
		Subject:            req.Subject,
		CurriculumStandard: req.CurriculumStandard,
		NumberOfQuestions:  req.NumberOfQuestions,
		Difficulty:         model.Difficulty(req.Difficulty),
		LLM:                cfg,
	}, nil
}

type quizMetadata struct {
	GeneratedAt        time.Time `json:"generatedAt"`
	CurriculumLength   int       `json:"curriculumLength"`
	QuestionsGenerated int       `json:"questionsGenerated"`
}

type generateQuizResponse struct {
	Success    bool                 `json:"success"`
	Quiz       *model.QuizGenResult `json:"quiz"`
	Assignment *model.QuizRecord    `json:"assignment,omitempty"`
	Metadata   quizMetadata         `json:"metadata"`
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateQuizRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.quiz.GenerateQuiz(r.Context(), req.CurriculumText, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.quizResponse(r.Context(), req, result))
}

// handleGenerateQuizStream streams model output as server-sent events.
// Each chunk is a "chunk" event carrying a JSON string; the call ends with
// one "result" event holding the same body as /api/generate-quiz, or one
// "error" event.
func (h *Handler) handleGenerateQuizStream(w http.ResponseWriter, r *http.Request) {
	var req generateQuizRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		h.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, fmt.Errorf("streaming is not supported by this connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.quiz.GenerateQuizStream(r.Context(), req.CurriculumText, opts, func(chunk string) error {
		return send("chunk", chunk)
	})
	if err != nil {
		status, code := errorStatus(err)
		slog.Warn("quiz stream failed", "status", status, "error", err)
		_ = send("error", errorResponse{Error: code, Message: err.Error()})
		return
	}
	if err := send("result", h.quizResponse(r.Context(), req, result)); err != nil {
		slog.Error("write stream result", "error", err)
	}
}

// quizResponse builds the response body and stores the quiz when
// persistence is enabled. A store failure is logged and leaves Assignment
// empty.
func (h *Handler) quizResponse(ctx context.Context, req generateQuizRequest, result *model.QuizGenResult) generateQuizResponse {
	resp := generateQuizResponse{
		Success: true,
		Quiz:    result,
		Metadata: quizMetadata{
			GeneratedAt:        result.Metadata.GeneratedAt,
			CurriculumLength:   len(req.CurriculumText),
			QuestionsGenerated: len(result.Questions),
		},
	}
	if h.store == nil {
		return resp
	}

	title := req.Title
	if title == "" {
		title = i18n.Td(ctx, "QuizTitle", map[string]any{
			"Subject": i18n.SubjectLabel(ctx, result.Metadata.Subject),
			"Grade":   i18n.GradeLabel(ctx, result.Metadata.GradeLevel),
		})
	}
	rec := &model.QuizRecord{TeacherID: req.TeacherID, Title: title, Quiz: *result}
	if err := h.store.SaveQuiz(rec); err != nil {
		slog.Error("failed to store quiz", "error", err)
		return resp
	}
	resp.Assignment = rec
	return resp
}
