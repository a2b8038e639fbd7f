package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/llm/prompts"
	"github.com/pavelanni/k5assist/internal/model"
)

const (
	strengthThreshold    = 80
	improvementThreshold = 60
)

const feedbackSchema = `{
  "type": "object",
  "properties": {
    "encouragingFeedback": {"type": "string"},
    "instructionalInsight": {"type": "string"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "areasForImprovement": {"type": "array", "items": {"type": "string"}}
  },
  "anyOf": [
    {"required": ["encouragingFeedback"]},
    {"required": ["instructionalInsight"]}
  ]
}`

var feedbackSchemaLoader = gojsonschema.NewStringLoader(feedbackSchema)

type feedback struct {
	EncouragingFeedback  string   `json:"encouragingFeedback"`
	InstructionalInsight string   `json:"instructionalInsight"`
	Strengths            []string `json:"strengths"`
	AreasForImprovement  []string `json:"areasForImprovement"`
}

// ruleBasedFeedback derives feedback from the scores alone.
func ruleBasedFeedback(ctx context.Context, scores []model.CriterionScore, percentage float64) feedback {
	fb := feedback{Strengths: []string{}, AreasForImprovement: []string{}}
	for _, s := range scores {
		pct := 100 * s.Score / s.MaxScore
		switch {
		case pct >= strengthThreshold:
			fb.Strengths = append(fb.Strengths, s.Criterion)
		case pct < improvementThreshold:
			fb.AreasForImprovement = append(fb.AreasForImprovement, s.Criterion)
		}
	}
	fb.EncouragingFeedback = encouragingMessage(ctx, percentage)
	fb.InstructionalInsight = instructionalInsight(ctx, fb.Strengths, fb.AreasForImprovement)
	return fb
}

func encouragingMessage(ctx context.Context, percentage float64) string {
	switch {
	case percentage >= 90:
		return i18n.T(ctx, "FeedbackOutstanding")
	case percentage >= 80:
		return i18n.T(ctx, "FeedbackGreat")
	case percentage >= 70:
		return i18n.T(ctx, "FeedbackGood")
	case percentage >= 60:
		return i18n.T(ctx, "FeedbackNiceTry")
	default:
		return i18n.T(ctx, "FeedbackKeepWorking")
	}
}

func instructionalInsight(ctx context.Context, strengths, areas []string) string {
	if len(strengths) > len(areas) {
		focus := i18n.T(ctx, "GeneralReinforcement")
		if len(areas) > 0 {
			focus = strings.Join(areas, ", ")
		}
		return i18n.Td(ctx, "InsightStrengths", map[string]any{
			"Strengths": strings.Join(strengths, ", "),
			"Areas":     focus,
		})
	}
	focus := i18n.T(ctx, "MultipleAreas")
	if len(areas) > 0 {
		focus = strings.Join(areas, ", ")
	}
	return i18n.Td(ctx, "InsightSupport", map[string]any{"Areas": focus})
}

// aiFeedback asks the gateway for feedback. Any error, including output
// that does not match the feedback schema, is returned for the caller to
// fall back on.
func (e *Engine) aiFeedback(ctx context.Context, answer string, rubric model.Rubric, scores []model.CriterionScore, opts Options, total, maxScore, percentage float64) (feedback, error) {
	en := context.Background()
	data := prompts.FeedbackData{
		GradeLabel: i18n.GradeLabel(en, opts.GradeLevel),
		Subject:    i18n.SubjectLabel(en, opts.Subject),
		Answer:     answer,
		Score:      total,
		MaxScore:   maxScore,
		Percentage: percentage,
	}
	for i, s := range scores {
		data.Criteria = append(data.Criteria, prompts.CriterionSummary{
			Name:     s.Criterion,
			Score:    s.Score,
			MaxScore: s.MaxScore,
			Notes:    s.Notes,
			Hints:    rubric.Criteria[i].EvaluationCriteria,
		})
	}

	system, err := prompts.BuildFeedbackSystemPrompt(data)
	if err != nil {
		return feedback{}, err
	}
	user, err := prompts.BuildFeedbackUserPrompt(data)
	if err != nil {
		return feedback{}, err
	}

	resp, err := e.gateway.GenerateCompletion(ctx, llm.Request{Prompt: user, SystemPrompt: system, Config: opts.LLM})
	if err != nil {
		return feedback{}, err
	}
	return parseFeedback(ctx, resp.Content)
}

func parseFeedback(ctx context.Context, raw string) (feedback, error) {
	payload := llm.ExtractJSON(raw)

	result, err := gojsonschema.Validate(feedbackSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return feedback{}, fmt.Errorf("feedback is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return feedback{}, fmt.Errorf("feedback failed schema validation: %s", strings.Join(msgs, "; "))
	}

	var fb feedback
	if err := json.Unmarshal([]byte(payload), &fb); err != nil {
		return feedback{}, fmt.Errorf("decoding feedback: %w", err)
	}
	fb.EncouragingFeedback = strings.TrimSpace(fb.EncouragingFeedback)
	fb.InstructionalInsight = strings.TrimSpace(fb.InstructionalInsight)
	if fb.EncouragingFeedback == "" {
		fb.EncouragingFeedback = i18n.T(ctx, "FeedbackDefault")
	}
	if fb.InstructionalInsight == "" {
		fb.InstructionalInsight = i18n.T(ctx, "InsightDefault")
	}
	if fb.Strengths == nil {
		fb.Strengths = []string{}
	}
	if fb.AreasForImprovement == nil {
		fb.AreasForImprovement = []string{}
	}
	return fb, nil
}
