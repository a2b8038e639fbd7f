package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/k5assist/internal/grading"
	"github.com/pavelanni/k5assist/internal/model"
)

type gradeRequest struct {
	StudentAnswer    model.AnswerContent `json:"studentAnswer"`
	Rubric           *model.Rubric       `json:"rubric" validate:"required"`
	GradeLevel       string              `json:"gradeLevel"`
	Subject          string              `json:"subject"`
	MaxScore         *float64            `json:"maxScore" validate:"omitempty,gt=0"`
	UseAIForFeedback *bool               `json:"useAIForFeedback"`
	AssignmentID     string              `json:"assignmentId"`
	QuestionID       string              `json:"questionId"`
	LLM              *llmOverride        `json:"llmConfig"`
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if !req.StudentAnswer.IsRecord() && strings.TrimSpace(req.StudentAnswer.Text) == "" {
		h.writeError(w, model.NewValidationError("studentAnswer", "studentAnswer is required"))
		return
	}
	cfg, err := req.LLM.config()
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.grader.Grade(r.Context(), req.StudentAnswer, grading.Options{
		Rubric:           req.Rubric,
		GradeLevel:       model.GradeLevel(req.GradeLevel),
		Subject:          req.Subject,
		MaxScore:         req.MaxScore,
		UseAIForFeedback: req.UseAIForFeedback,
		LLM:              cfg,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.store != nil {
		subject := req.Subject
		if strings.TrimSpace(subject) == "" {
			subject = grading.DefaultSubject
		}
		gradeLevel := model.GradeLevel(req.GradeLevel)
		if gradeLevel == "" {
			gradeLevel = grading.DefaultGradeLevel
		}
		rec := &model.GradingRecord{
			AssignmentID: req.AssignmentID,
			QuestionID:   req.QuestionID,
			GradeLevel:   gradeLevel,
			Subject:      subject,
			Result:       *result,
		}
		if err := h.store.SaveGrading(rec); err != nil {
			slog.Error("failed to store grading", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, result)
}
