package quiz

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pavelanni/k5assist/internal/model"
)

var (
	questionLine    = regexp.MustCompile(`^\s*(?:\*\*)?(?:Q(?:uestion)?\s*)?(\d{1,2})[.):]\s*(.+)$`)
	optionLine      = regexp.MustCompile(`^\s*(\*{0,2})\s*\(?([A-Da-d])[.)]\s*(.+)$`)
	answerLine      = regexp.MustCompile(`(?i)^\s*(?:correct\s+)?answer\s*[:\-]\s*\(?([A-D])\b`)
	explanationLine = regexp.MustCompile(`(?i)^\s*explanation\s*:\s*(.+)$`)
	correctMarker   = regexp.MustCompile(`(?i)\(correct\)|\[correct\]|[✓✔]`)
)

type indexedWarning struct {
	index   int
	warning model.Warning
}

type draft struct {
	text        []string
	options     []string
	marked      int
	explanation string
}

// extractQuestions recovers questions from free-form model output. A
// numbered line starts a question; lettered lines after it are options.
// An option carrying a marker (*, (correct), [CORRECT], a check mark) or an
// "Answer: X" line selects the correct option. Without either, option A is
// used and the question is flagged as low confidence.
func extractQuestions(raw string) ([]model.MultipleChoiceQuestion, []indexedWarning) {
	var drafts []*draft
	var cur *draft

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := questionLine.FindStringSubmatch(line); m != nil {
			cur = &draft{text: []string{cleanText(m[2])}, marked: -1}
			drafts = append(drafts, cur)
			continue
		}
		if cur == nil {
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil {
			if len(cur.options) >= maxOptions {
				continue
			}
			text := strings.TrimSpace(m[3])
			// A lone asterisk marks the answer; a pair is markdown bold.
			marked := m[1] == "*"
			if correctMarker.MatchString(text) {
				marked = true
				text = strings.TrimSpace(correctMarker.ReplaceAllString(text, ""))
			}
			switch {
			case strings.HasSuffix(text, "**"):
				text = strings.TrimSuffix(text, "**")
			case strings.HasSuffix(text, "*"):
				marked = true
				text = strings.TrimSuffix(text, "*")
			}
			if marked && cur.marked < 0 {
				cur.marked = len(cur.options)
			}
			cur.options = append(cur.options, cleanText(text))
			continue
		}
		if m := answerLine.FindStringSubmatch(line); m != nil {
			if idx, ok := letterIndex(m[1]); ok && cur.marked < 0 {
				cur.marked = idx
			}
			continue
		}
		if m := explanationLine.FindStringSubmatch(line); m != nil {
			cur.explanation = cleanText(m[1])
			continue
		}
		if len(cur.options) == 0 {
			cur.text = append(cur.text, cleanText(line))
		}
	}

	var (
		questions []model.MultipleChoiceQuestion
		warnings  []indexedWarning
	)
	for _, d := range drafts {
		text := strings.TrimSpace(strings.Join(d.text, " "))
		if text == "" || len(d.options) < 2 {
			continue
		}
		q := model.MultipleChoiceQuestion{
			Question:    text,
			Options:     d.options,
			Explanation: d.explanation,
		}
		if d.marked >= 0 && d.marked < len(d.options) {
			q.CorrectAnswer = d.marked
		} else {
			q.CorrectAnswer = 0
			q.LowConfidence = true
			slog.Warn("no answer marker found, defaulting to first option", "question", len(questions)+1)
			warnings = append(warnings, indexedWarning{
				index: len(questions),
				warning: model.Warning{
					Kind:    model.WarningLowConfidence,
					Message: fmt.Sprintf("question %d: no answer marker found, defaulted to option A", len(questions)+1),
				},
			})
		}
		questions = append(questions, q)
	}
	return questions, warnings
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*"))
}
