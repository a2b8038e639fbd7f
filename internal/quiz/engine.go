// Package quiz turns curriculum text into a validated multiple-choice quiz
// by prompting a language model and repairing what comes back.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/llm/prompts"
	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/privacy"
)

const (
	DefaultNumberOfQuestions = 5
	MaxNumberOfQuestions     = 20
	DefaultSubject           = "general"
)

// Gateway is the part of the language-model client the engine needs.
type Gateway interface {
	GenerateCompletion(ctx context.Context, req llm.Request) (*llm.Response, error)
	StreamCompletion(ctx context.Context, req llm.Request) (*llm.Stream, error)
}

// Options configures one quiz generation.
type Options struct {
	GradeLevel         model.GradeLevel
	Subject            string
	CurriculumStandard string
	NumberOfQuestions  int
	Difficulty         model.Difficulty
	// LLM overrides the gateway configuration for this call.
	LLM *llm.Config
}

// Engine generates quizzes. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	gateway Gateway
	now     func() time.Time
}

// NewEngine creates an Engine that calls gw.
func NewEngine(gw Gateway) *Engine {
	return &Engine{gateway: gw, now: time.Now}
}

// GenerateQuiz generates a quiz from curriculumText. Gateway errors are
// returned unchanged; output that cannot be turned into at least one valid
// question is a *model.ValidationError.
func (e *Engine) GenerateQuiz(ctx context.Context, curriculumText string, opts Options) (*model.QuizGenResult, error) {
	job, err := e.prepare(curriculumText, opts)
	if err != nil {
		return nil, err
	}

	resp, err := e.gateway.GenerateCompletion(ctx, job.request)
	if err != nil {
		return nil, err
	}
	job.meta.Model = resp.Model
	return e.finish(job, resp.Content)
}

// GenerateQuizStream is GenerateQuiz over a streaming call. Every chunk of
// model output is passed to onChunk as it arrives; the accumulated text is
// parsed once the stream ends. A non-nil error from onChunk aborts the call.
func (e *Engine) GenerateQuizStream(ctx context.Context, curriculumText string, opts Options, onChunk func(string) error) (*model.QuizGenResult, error) {
	job, err := e.prepare(curriculumText, opts)
	if err != nil {
		return nil, err
	}

	stream, err := e.gateway.StreamCompletion(ctx, job.request)
	if err != nil {
		return nil, err
	}
	raw, err := stream.Collect(onChunk)
	if err != nil {
		return nil, err
	}
	return e.finish(job, raw)
}

type job struct {
	request  llm.Request
	meta     model.QuizMetadata
	count    int
	warnings []model.Warning
}

func (e *Engine) prepare(curriculumText string, opts Options) (*job, error) {
	opts, err := withDefaults(opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(curriculumText) == "" {
		return nil, model.NewValidationError("curriculumText", "curriculum text is required")
	}

	j := &job{count: opts.NumberOfQuestions}

	clean := privacy.Sanitize(curriculumText, privacy.DefaultOptions())
	if len(clean.RemovedFields) > 0 {
		slog.Warn("PII removed from curriculum text", "categories", clean.RemovedFields)
		j.warnings = append(j.warnings, model.Warning{
			Kind:    model.WarningPIIRedacted,
			Message: "PII removed from curriculum text: " + strings.Join(clean.RemovedFields, ", "),
		})
	}

	band, _ := opts.GradeLevel.AgeBand()
	// Prompts are written in English whatever the caller's locale.
	en := context.Background()
	data := prompts.QuizData{
		GradeLabel:         i18n.GradeLabel(en, opts.GradeLevel),
		AgeDescription:     band.Description,
		Subject:            i18n.SubjectLabel(en, opts.Subject),
		Difficulty:         string(opts.Difficulty),
		NumberOfQuestions:  opts.NumberOfQuestions,
		CurriculumStandard: opts.CurriculumStandard,
		Curriculum:         clean.Sanitized,
	}
	system, err := prompts.BuildQuizSystemPrompt(data)
	if err != nil {
		return nil, fmt.Errorf("building quiz system prompt: %w", err)
	}
	user, err := prompts.BuildQuizUserPrompt(data)
	if err != nil {
		return nil, fmt.Errorf("building quiz user prompt: %w", err)
	}

	j.request = llm.Request{Prompt: user, SystemPrompt: system, Config: opts.LLM}
	j.meta = model.QuizMetadata{
		GradeLevel:         opts.GradeLevel,
		Subject:            opts.Subject,
		CurriculumStandard: opts.CurriculumStandard,
		Difficulty:         opts.Difficulty,
		PIIRemoved:         clean.RemovedFields,
	}
	return j, nil
}

func (e *Engine) finish(j *job, raw string) (*model.QuizGenResult, error) {
	questions, warnings, err := ParseResponse(raw, j.count)
	if err != nil {
		return nil, err
	}
	j.meta.GeneratedAt = e.now().UTC()

	result := &model.QuizGenResult{
		Questions: questions,
		Metadata:  j.meta,
		Warnings:  append(j.warnings, warnings...),
	}
	slog.Info("quiz generated",
		"grade", j.meta.GradeLevel,
		"subject", j.meta.Subject,
		"questions", len(questions),
		"warnings", len(result.Warnings))
	return result, nil
}

func withDefaults(opts Options) (Options, error) {
	if _, err := model.ParseGradeLevel(string(opts.GradeLevel)); err != nil {
		return opts, err
	}
	if opts.Subject = strings.TrimSpace(opts.Subject); opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.NumberOfQuestions == 0 {
		opts.NumberOfQuestions = DefaultNumberOfQuestions
	}
	if opts.NumberOfQuestions < 1 || opts.NumberOfQuestions > MaxNumberOfQuestions {
		return opts, model.NewValidationError("numberOfQuestions",
			fmt.Sprintf("must be between 1 and %d, got %d", MaxNumberOfQuestions, opts.NumberOfQuestions))
	}
	if opts.Difficulty == "" {
		opts.Difficulty = model.DifficultyMedium
	}
	if !opts.Difficulty.Valid() {
		return opts, model.NewValidationError("difficulty", fmt.Sprintf("invalid difficulty: %q", opts.Difficulty))
	}
	return opts, nil
}
