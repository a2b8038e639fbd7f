package quiz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/model"
)

// maxOptions is the number of options kept per question.
const maxOptions = 4

type rawQuestion struct {
	Question      json.RawMessage `json:"question"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Explanation   json.RawMessage `json:"explanation"`
}

type rawQuestionSet struct {
	Questions json.RawMessage `json:"questions"`
}

// ParseResponse turns raw model output into at most want questions. JSON
// output is validated strictly; anything else goes through line-oriented
// extraction, which is reported in the returned warnings.
func ParseResponse(raw string, want int) ([]model.MultipleChoiceQuestion, []model.Warning, error) {
	var (
		questions []model.MultipleChoiceQuestion
		warnings  []model.Warning
	)

	var set rawQuestionSet
	jsonErr := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &set)
	if jsonErr == nil {
		parsed, err := parseQuestionSet(set, want)
		if err != nil {
			return nil, nil, err
		}
		questions = parsed
	} else {
		slog.Warn("model output is not valid JSON, trying line extraction", "error", jsonErr)
		extracted, extractWarnings := extractQuestions(raw)
		if len(extracted) == 0 {
			return nil, nil, model.NewValidationError("response",
				fmt.Sprintf("could not parse questions from model output: %v", jsonErr))
		}
		if len(extracted) > want {
			extracted = extracted[:want]
		}
		questions = extracted
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningParseRecovery,
			Message: fmt.Sprintf("model output was not valid JSON; recovered %d questions by line extraction", len(extracted)),
		})
		for _, w := range extractWarnings {
			if w.index < len(extracted) {
				warnings = append(warnings, w.warning)
			}
		}
	}

	if len(questions) < want {
		slog.Warn("model returned fewer questions than requested", "requested", want, "returned", len(questions))
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningShortfall,
			Message: fmt.Sprintf("requested %d questions, got %d", want, len(questions)),
		})
	}
	return questions, warnings, nil
}

func parseQuestionSet(set rawQuestionSet, want int) ([]model.MultipleChoiceQuestion, error) {
	var items []rawQuestion
	if len(set.Questions) == 0 || string(set.Questions) == "null" {
		return nil, model.NewValidationError("questions", "response has no questions array")
	}
	if err := json.Unmarshal(set.Questions, &items); err != nil {
		return nil, model.NewValidationError("questions", "questions is not an array of objects")
	}
	if len(items) == 0 {
		return nil, model.NewValidationError("questions", "response contains no questions")
	}
	if len(items) > want {
		items = items[:want]
	}

	out := make([]model.MultipleChoiceQuestion, 0, len(items))
	for i, item := range items {
		q, err := validateQuestion(item)
		if err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("questions[%d]", i), err.Error())
		}
		out = append(out, q)
	}
	return out, nil
}

func validateQuestion(item rawQuestion) (model.MultipleChoiceQuestion, error) {
	var q model.MultipleChoiceQuestion

	var text string
	if err := json.Unmarshal(item.Question, &text); err != nil || strings.TrimSpace(text) == "" {
		return q, fmt.Errorf("missing question text")
	}
	q.Question = strings.TrimSpace(text)

	var options []any
	if err := json.Unmarshal(item.Options, &options); err != nil || options == nil {
		return q, fmt.Errorf("missing options array")
	}
	for _, o := range options {
		if len(q.Options) == maxOptions {
			break
		}
		q.Options = append(q.Options, strings.TrimSpace(optionText(o)))
	}

	idx, err := answerIndex(item.CorrectAnswer)
	if err != nil {
		return q, err
	}
	if idx < 0 || idx >= len(q.Options) {
		return q, fmt.Errorf("correctAnswer %d is out of range for %d options", idx, len(q.Options))
	}
	q.CorrectAnswer = idx

	var explanation string
	if json.Unmarshal(item.Explanation, &explanation) == nil {
		q.Explanation = strings.TrimSpace(explanation)
	}
	return q, nil
}

func optionText(o any) string {
	switch v := o.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// answerIndex resolves a correctAnswer given as an index, a numeric string
// or an option letter.
func answerIndex(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing correctAnswer")
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("correctAnswer %v is not a whole number", n)
		}
		return int(n), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("correctAnswer has unsupported type")
	}
	s = strings.TrimSpace(s)
	if idx, ok := letterIndex(s); ok {
		return idx, nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	return 0, fmt.Errorf("correctAnswer %q is neither a letter A-D nor an index", s)
}

// letterIndex maps A-D, case-insensitive, to 0-3.
func letterIndex(s string) (int, bool) {
	if len(s) != 1 {
		return 0, false
	}
	c := s[0] | 0x20 // lower-case ASCII letters
	if c < 'a' || c > 'd' {
		return 0, false
	}
	return int(c - 'a'), true
}
