package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxAnswerRunes is how much of a student answer goes into a feedback prompt.
const maxAnswerRunes = 2000

var delimiterRegex = regexp.MustCompile(`"""+`)

const (
	quizSystem     = "quiz_system"
	quizUser       = "quiz_user"
	feedbackSystem = "feedback_system"
	feedbackUser   = "feedback_user"
)

var templateNames = []string{quizSystem, quizUser, feedbackSystem, feedbackUser}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var funcs = template.FuncMap{
	"num":  formatNumber,
	"join": strings.Join,
}

// QuizData holds template data for the quiz generation prompts.
type QuizData struct {
	GradeLabel         string
	AgeDescription     string
	Subject            string
	Difficulty         string
	NumberOfQuestions  int
	CurriculumStandard string
	Curriculum         string
}

// CriterionSummary is one rubric line in the feedback prompt.
type CriterionSummary struct {
	Name     string
	Score    float64
	MaxScore float64
	Notes    string
	Hints    []string
}

// FeedbackData holds template data for the feedback prompts.
type FeedbackData struct {
	GradeLabel string
	Subject    string
	Answer     string
	Criteria   []CriterionSummary
	Score      float64
	MaxScore   float64
	Percentage float64
}

// Load parses the prompt templates found under templates/ in fsys.
// Only the first call has an effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]*template.Template, len(templateNames))
		for _, name := range templateNames {
			file := "templates/" + name + ".tmpl"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("failed to read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(name).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("failed to parse prompt template %s: %w", file, err)
				return
			}
			loaded[name] = tmpl
		}
		templates = loaded
	})
	return loadErr
}

// BuildQuizSystemPrompt renders the system prompt for quiz generation.
func BuildQuizSystemPrompt(d QuizData) (string, error) {
	return render(quizSystem, d)
}

// BuildQuizUserPrompt renders the user prompt carrying the curriculum text.
func BuildQuizUserPrompt(d QuizData) (string, error) {
	d.Curriculum = delimiterRegex.ReplaceAllString(d.Curriculum, `"`)
	return render(quizUser, d)
}

// BuildFeedbackSystemPrompt renders the grader persona prompt.
func BuildFeedbackSystemPrompt(d FeedbackData) (string, error) {
	return render(feedbackSystem, d)
}

// BuildFeedbackUserPrompt renders the per-answer feedback request. The
// answer is truncated to a fixed length.
func BuildFeedbackUserPrompt(d FeedbackData) (string, error) {
	d.Answer = truncateAnswer(d.Answer)
	return render(feedbackUser, d)
}

func render(name string, data any) (string, error) {
	if err := Load(templateFS); err != nil {
		return "", err
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", errors.New("unknown prompt template: " + name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func truncateAnswer(answer string) string {
	answer = delimiterRegex.ReplaceAllString(strings.TrimSpace(answer), `"`)
	if answer == "" {
		return "[No answer provided]"
	}
	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "..."
	}
	return answer
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
