// Package grading scores free-text answers against a rubric and writes
// feedback for the student and the teacher.
//
// Scoring is deterministic keyword coverage and never touches the language
// model. Feedback is requested from the model when enabled and falls back to
// canned, localized text whenever that call fails.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/privacy"
)

const DefaultSubject = "general"

// DefaultGradeLevel is used when Options.GradeLevel is empty.
const DefaultGradeLevel = model.Grade3

// Gateway is the part of the language-model client the engine needs.
type Gateway interface {
	GenerateCompletion(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Options configures one grading call.
type Options struct {
	Rubric     *model.Rubric
	GradeLevel model.GradeLevel
	Subject    string
	// MaxScore overrides Rubric.TotalPoints as the percentage denominator.
	MaxScore *float64
	// UseAIForFeedback defaults to true when nil.
	UseAIForFeedback *bool
	// LLM overrides the gateway configuration for this call.
	LLM *llm.Config
}

// Engine grades answers. It is safe for concurrent use.
type Engine struct {
	gateway Gateway
}

// NewEngine creates an Engine. gw may be nil when AI feedback is never
// requested.
func NewEngine(gw Gateway) *Engine {
	return &Engine{gateway: gw}
}

// Grade scores answer against opts.Rubric. Once the rubric is valid a
// result is always returned: feedback generation errors degrade to
// rule-based feedback and are reported as warnings.
func (e *Engine) Grade(ctx context.Context, answer model.AnswerContent, opts Options) (*model.GradingResult, error) {
	opts, err := withDefaults(opts)
	if err != nil {
		return nil, err
	}
	rubric := *opts.Rubric

	var warnings []model.Warning
	clean, err := privacy.SanitizeAnswer(answer, privacy.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("sanitizing answer: %w", err)
	}
	if len(clean.RemovedFields) > 0 {
		slog.Warn("PII removed from student answer", "categories", clean.RemovedFields)
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningPIIRedacted,
			Message: "PII removed from student answer: " + strings.Join(clean.RemovedFields, ", "),
		})
	}

	scores := scoreCriteria(ctx, rubric.Criteria, clean.Sanitized)
	total := aggregate(rubric, scores)
	maxScore := rubric.TotalPoints
	if opts.MaxScore != nil {
		maxScore = *opts.MaxScore
	}
	percentage := round2(100 * total / maxScore)

	var (
		fb     feedback
		source = model.FeedbackRuleBased
	)
	if *opts.UseAIForFeedback && e.gateway != nil {
		fb, err = e.aiFeedback(ctx, clean.Sanitized, rubric, scores, opts, total, maxScore, percentage)
		if err == nil {
			source = model.FeedbackAI
		} else {
			slog.Warn("AI feedback failed, using rule-based feedback", "error", err)
			warnings = append(warnings, model.Warning{
				Kind:    model.WarningFeedbackFallback,
				Message: "AI feedback unavailable, rule-based feedback used",
			})
		}
	}
	if source == model.FeedbackRuleBased {
		fb = ruleBasedFeedback(ctx, scores, percentage)
	}

	slog.Info("answer graded",
		"grade", opts.GradeLevel,
		"subject", opts.Subject,
		"score", total,
		"max_score", maxScore,
		"feedback", source)

	return &model.GradingResult{
		Score:                total,
		MaxScore:             maxScore,
		GradePercentage:      percentage,
		EncouragingFeedback:  fb.EncouragingFeedback,
		InstructionalInsight: fb.InstructionalInsight,
		Strengths:            fb.Strengths,
		AreasForImprovement:  fb.AreasForImprovement,
		RubricAlignment:      scores,
		FeedbackSource:       source,
		Warnings:             warnings,
	}, nil
}

func withDefaults(opts Options) (Options, error) {
	if opts.Rubric == nil {
		return opts, model.NewValidationError("rubric", "rubric is required")
	}
	if err := model.Validate(opts.Rubric); err != nil {
		return opts, err
	}
	if opts.GradeLevel == "" {
		opts.GradeLevel = DefaultGradeLevel
	}
	if _, err := model.ParseGradeLevel(string(opts.GradeLevel)); err != nil {
		return opts, err
	}
	if opts.Subject = strings.TrimSpace(opts.Subject); opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.MaxScore != nil && *opts.MaxScore <= 0 {
		return opts, model.NewValidationError("maxScore", "must be greater than 0")
	}
	if opts.UseAIForFeedback == nil {
		useAI := true
		opts.UseAIForFeedback = &useAI
	}
	return opts, nil
}
