package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// GradeLevel identifies a K-5 grade band.
type GradeLevel string

const (
	Kindergarten GradeLevel = "kindergarten"
	Grade1       GradeLevel = "grade_1"
	Grade2       GradeLevel = "grade_2"
	Grade3       GradeLevel = "grade_3"
	Grade4       GradeLevel = "grade_4"
	Grade5       GradeLevel = "grade_5"
)

// AgeBand describes the typical ages and abilities for a grade level.
type AgeBand struct {
	MinAge      int
	MaxAge      int
	Description string
}

var ageBands = map[GradeLevel]AgeBand{
	Kindergarten: {4, 6, "Ages 4-6, Pre-reading to early reading"},
	Grade1:       {6, 7, "Ages 6-7, Early reading, basic math concepts"},
	Grade2:       {7, 8, "Ages 7-8, Developing reading fluency, simple problem-solving"},
	Grade3:       {8, 9, "Ages 8-9, Reading comprehension, multiplication basics"},
	Grade4:       {9, 10, "Ages 9-10, Multi-step problems, critical thinking"},
	Grade5:       {10, 11, "Ages 10-11, Complex reasoning, abstract concepts"},
}

// GradeLevels lists the supported grade levels in ascending order.
var GradeLevels = []GradeLevel{Kindergarten, Grade1, Grade2, Grade3, Grade4, Grade5}

// AgeBand returns the age band for g and whether g is a known grade level.
func (g GradeLevel) AgeBand() (AgeBand, bool) {
	b, ok := ageBands[g]
	return b, ok
}

// Valid reports whether g is one of the supported grade levels.
func (g GradeLevel) Valid() bool {
	_, ok := ageBands[g]
	return ok
}

// ParseGradeLevel validates s as a grade level.
func ParseGradeLevel(s string) (GradeLevel, error) {
	g := GradeLevel(s)
	if !g.Valid() {
		return "", NewValidationError("gradeLevel", fmt.Sprintf("invalid grade level: %q", s))
	}
	return g, nil
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// MultipleChoiceQuestion is one generated quiz question.
// CorrectAnswer is a 0-based index into Options.
type MultipleChoiceQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	// LowConfidence marks an answer key that was guessed rather than read
	// from the model output.
	LowConfidence bool `json:"lowConfidence,omitempty"`
}

// QuizMetadata describes how a quiz was generated.
type QuizMetadata struct {
	GradeLevel         GradeLevel `json:"gradeLevel"`
	Subject            string     `json:"subject"`
	CurriculumStandard string     `json:"curriculumStandard,omitempty"`
	Difficulty         Difficulty `json:"difficulty"`
	GeneratedAt        time.Time  `json:"generatedAt"`
	Model              string     `json:"model,omitempty"`
	PIIRemoved         []string   `json:"piiRemoved,omitempty"`
}

// QuizGenResult is the output of quiz generation.
type QuizGenResult struct {
	Questions []MultipleChoiceQuestion `json:"questions"`
	Metadata  QuizMetadata             `json:"metadata"`
	Warnings  []Warning                `json:"warnings,omitempty"`
}

// RubricCriterion is one scored line of a rubric.
type RubricCriterion struct {
	Name               string   `json:"name" validate:"required"`
	Description        string   `json:"description"`
	MaxPoints          float64  `json:"maxPoints" validate:"gt=0"`
	Weight             *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	EvaluationCriteria []string `json:"evaluationCriteria,omitempty"`
}

// Rubric is a weighted checklist used to score a free-text answer.
type Rubric struct {
	TotalPoints float64           `json:"totalPoints" validate:"gt=0"`
	Criteria    []RubricCriterion `json:"criteria" validate:"required,min=1,unique=Name,dive"`
}

// CriterionScore is the result of scoring one rubric criterion.
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"maxScore"`
	Notes     string  `json:"notes"`
}

// FeedbackSource tells which strategy produced the feedback text.
type FeedbackSource string

const (
	FeedbackAI        FeedbackSource = "ai"
	FeedbackRuleBased FeedbackSource = "rule_based"
)

// GradingResult is the output of grading a student answer.
type GradingResult struct {
	Score                float64          `json:"score"`
	MaxScore             float64          `json:"maxScore"`
	GradePercentage      float64          `json:"gradePercentage"`
	EncouragingFeedback  string           `json:"encouragingFeedback"`
	InstructionalInsight string           `json:"instructionalInsight"`
	Strengths            []string         `json:"strengths"`
	AreasForImprovement  []string         `json:"areasForImprovement"`
	RubricAlignment      []CriterionScore `json:"rubricAlignment"`
	FeedbackSource       FeedbackSource   `json:"feedbackSource"`
	Warnings             []Warning        `json:"warnings,omitempty"`
}

// SanitizedContent is the output of PII sanitization. RemovedFields holds
// category labels only, never the matched values.
type SanitizedContent struct {
	Sanitized     string   `json:"sanitized"`
	RemovedFields []string `json:"removedFields"`
}

// AnswerContent is a student answer given either as free text or as a
// structured record.
type AnswerContent struct {
	Text   string
	Record map[string]any
}

// TextAnswer wraps a free-text answer.
func TextAnswer(s string) AnswerContent { return AnswerContent{Text: s} }

// IsRecord reports whether the answer was given as a structured record.
func (a AnswerContent) IsRecord() bool { return a.Record != nil }

// UnmarshalJSON accepts either a JSON string or a JSON object.
func (a *AnswerContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var rec map[string]any
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		*a = AnswerContent{Record: rec}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("answer must be a string or an object: %w", err)
	}
	*a = AnswerContent{Text: s}
	return nil
}

// MarshalJSON writes the answer back in the form it was given.
func (a AnswerContent) MarshalJSON() ([]byte, error) {
	if a.Record != nil {
		return json.Marshal(a.Record)
	}
	return json.Marshal(a.Text)
}
