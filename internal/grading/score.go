package grading

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/model"
)

const (
	maxKeywords     = 10
	minKeywordRunes = 4
	// defaultCoverage is used for criteria whose description yields no
	// keywords.
	defaultCoverage = 0.5
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
}

// Keywords returns up to ten significant words of a criterion description,
// lower-cased and in their original order. Surrounding punctuation is
// trimmed before the length check, so "cat." counts as the short word "cat".
func Keywords(description string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ToLower(description)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(word) < minKeywordRunes || stopWords[word] {
			continue
		}
		out = append(out, word)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// Coverage is the fraction of keywords found anywhere in answer.
func Coverage(keywords []string, answer string) float64 {
	if len(keywords) == 0 {
		return defaultCoverage
	}
	lower := strings.ToLower(answer)
	found := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

// scoreCriterion scores one criterion against the sanitized answer.
func scoreCriterion(ctx context.Context, c model.RubricCriterion, answer string) model.CriterionScore {
	score := round2(clamp(Coverage(Keywords(c.Description), answer)*c.MaxPoints, 0, c.MaxPoints))
	return model.CriterionScore{
		Criterion: c.Name,
		Score:     score,
		MaxScore:  c.MaxPoints,
		Notes:     criterionNote(ctx, 100*score/c.MaxPoints),
	}
}

// scoreCriteria scores every criterion concurrently. The result is in rubric
// order.
func scoreCriteria(ctx context.Context, criteria []model.RubricCriterion, answer string) []model.CriterionScore {
	scores := make([]model.CriterionScore, len(criteria))
	var g errgroup.Group
	for i, c := range criteria {
		g.Go(func() error {
			scores[i] = scoreCriterion(ctx, c, answer)
			return nil
		})
	}
	_ = g.Wait()
	return scores
}

func criterionNote(ctx context.Context, pct float64) string {
	data := map[string]any{"Percent": int(math.Round(pct))}
	switch {
	case pct >= 80:
		return i18n.Td(ctx, "NoteExcellent", data)
	case pct >= 60:
		return i18n.Td(ctx, "NoteGood", data)
	case pct >= 40:
		return i18n.Td(ctx, "NotePartial", data)
	default:
		return i18n.Td(ctx, "NoteNeedsWork", data)
	}
}

// aggregate combines criterion scores into a total on the rubric scale.
func aggregate(rubric model.Rubric, scores []model.CriterionScore) float64 {
	weighted := false
	for _, c := range rubric.Criteria {
		if c.Weight != nil {
			weighted = true
			break
		}
	}

	if weighted {
		var sum, totalWeight float64
		for i, c := range rubric.Criteria {
			w := 1.0
			if c.Weight != nil {
				w = *c.Weight
			}
			sum += scores[i].Score / scores[i].MaxScore * w * rubric.TotalPoints
			totalWeight += w
		}
		if totalWeight > 0 {
			return round2(sum / totalWeight)
		}
	}

	var sum, sumMax float64
	for _, s := range scores {
		sum += s.Score
		sumMax += s.MaxScore
	}
	if sumMax != rubric.TotalPoints {
		sum = sum * rubric.TotalPoints / sumMax
	}
	return round2(sum)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}
