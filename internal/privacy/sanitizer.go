// Package privacy strips personally identifiable information from text and
// structured records before they are sent to a language model.
//
// Detection is pattern based and best effort. It is a heuristic filter, not
// a compliance guarantee: it can miss PII that does not fit a pattern and it
// can redact harmless values that happen to match one (a five-digit number
// looks like a ZIP code, a key named "teamEmailList" looks like an email
// field).
package privacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/pavelanni/k5assist/internal/model"
)

// Options controls how matches are replaced.
type Options struct {
	// Mask replaces matches with a placeholder; otherwise they are deleted.
	Mask bool
	// PreserveContext puts the category in the placeholder, e.g.
	// [EMAIL_REDACTED], instead of a generic [REDACTED].
	PreserveContext bool
	// CustomPatterns are extra detectors keyed by category label.
	CustomPatterns map[string]*regexp.Regexp
}

// DefaultOptions masks matches and keeps the category in the placeholder.
func DefaultOptions() Options {
	return Options{Mask: true, PreserveContext: true}
}

// Report is the result of a read-only PII check.
type Report struct {
	Safe     bool     `json:"safe"`
	Warnings []string `json:"warnings"`
}

// match is one detector hit at a byte range of the input.
type match struct {
	start, end int
	category   string
}

func (m match) overlaps(o match) bool {
	return m.start < o.end && o.start < m.end
}

// Sanitize redacts PII from text. The same input and options always give the
// same output.
func Sanitize(text string, opts Options) model.SanitizedContent {
	removed := newLabelSet()
	return model.SanitizedContent{
		Sanitized:     sanitizeText(text, opts, removed),
		RemovedFields: removed.list(),
	}
}

// SanitizeRecord redacts PII from a structured record and returns the
// JSON-serialized result. Fields whose key names suggest PII are redacted
// wholesale; other string values go through the text sanitizer.
func SanitizeRecord(record map[string]any, opts Options) (model.SanitizedContent, error) {
	removed := newLabelSet()
	clean := sanitizeObject(record, opts, removed)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clean); err != nil {
		return model.SanitizedContent{}, fmt.Errorf("encode sanitized record: %w", err)
	}
	return model.SanitizedContent{
		Sanitized:     strings.TrimSuffix(buf.String(), "\n"),
		RemovedFields: removed.list(),
	}, nil
}

// SanitizeAnswer sanitizes a student answer in whichever form it was given.
func SanitizeAnswer(a model.AnswerContent, opts Options) (model.SanitizedContent, error) {
	if a.IsRecord() {
		return SanitizeRecord(a.Record, opts)
	}
	return Sanitize(a.Text, opts), nil
}

// ValidateNoPII runs detection only. It never modifies text.
func ValidateNoPII(text string) Report {
	warnings := []string{}
	seen := make(map[string]bool)
	for _, p := range builtinPatterns {
		if seen[p.Category] || !p.Re.MatchString(text) {
			continue
		}
		seen[p.Category] = true
		warnings = append(warnings, fmt.Sprintf("Potential %s detected", p.Category))
	}
	return Report{Safe: len(warnings) == 0, Warnings: warnings}
}

func sanitizeText(text string, opts Options, removed *labelSet) string {
	if text == "" {
		return text
	}

	var candidates []match
	for _, p := range patternTable(opts.CustomPatterns) {
		for _, loc := range p.Re.FindAllStringIndex(text, -1) {
			if loc[1] > loc[0] {
				candidates = append(candidates, match{loc[0], loc[1], p.Category})
			}
		}
	}
	if len(candidates) == 0 {
		return text
	}

	// On overlap the longest match wins; ties go to the earlier pattern.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].end-candidates[i].start > candidates[j].end-candidates[j].start
	})
	var kept []match
	for _, c := range candidates {
		if !slices.ContainsFunc(kept, c.overlaps) {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })

	var sb strings.Builder
	last := 0
	for _, m := range kept {
		sb.WriteString(text[last:m.start])
		sb.WriteString(placeholder(m.category, opts))
		removed.add(m.category)
		last = m.end
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func sanitizeObject(obj map[string]any, opts Options, removed *labelSet) map[string]any {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := make(map[string]any, len(obj))
	for _, key := range keys {
		value := obj[key]
		if field, ok := piiField(key); ok {
			removed.add(field)
			if opts.Mask {
				clean[key] = placeholder(key, opts)
			}
			continue
		}
		clean[key] = sanitizeValue(value, opts, removed)
	}
	return clean
}

func sanitizeValue(value any, opts Options, removed *labelSet) any {
	switch v := value.(type) {
	case map[string]any:
		return sanitizeObject(v, opts, removed)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item, opts, removed)
		}
		return out
	case string:
		return sanitizeText(v, opts, removed)
	default:
		return v
	}
}

func piiField(key string) (string, bool) {
	lower := strings.ToLower(key)
	best := ""
	for _, f := range piiFieldNames {
		if len(f) > len(best) && strings.Contains(lower, f) {
			best = f
		}
	}
	return best, best != ""
}

func placeholder(label string, opts Options) string {
	if !opts.Mask {
		return ""
	}
	if !opts.PreserveContext {
		return "[REDACTED]"
	}
	return "[" + strings.ToUpper(label) + "_REDACTED]"
}

// labelSet keeps distinct labels in first-seen order.
type labelSet struct {
	seen  map[string]bool
	order []string
}

func newLabelSet() *labelSet {
	return &labelSet{seen: make(map[string]bool)}
}

func (s *labelSet) add(label string) {
	if s.seen[label] {
		return
	}
	s.seen[label] = true
	s.order = append(s.order, label)
}

func (s *labelSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
