package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/k5assist/internal/grading"
	appI18n "github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/privacy"
	"github.com/pavelanni/k5assist/internal/quiz"
	"github.com/pavelanni/k5assist/internal/store"
)

func quizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate a multiple-choice quiz from curriculum text",
		RunE:  runQuiz,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "-", "Curriculum text file (- for stdin)")
	f.StringP("grade", "g", string(model.Grade3), "Grade level (kindergarten, grade_1 ... grade_5)")
	f.StringP("subject", "s", quiz.DefaultSubject, "Subject")
	f.String("standard", "", "Curriculum standard to align with")
	f.IntP("num-questions", "n", quiz.DefaultNumberOfQuestions, "Number of questions (1-20)")
	f.StringP("difficulty", "d", string(model.DifficultyMedium), "Difficulty (easy, medium, hard)")
	f.Bool("stream", false, "Print model output to stderr as it arrives")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "en", "Language for console messages (en, es)")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a student answer against a rubric",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.String("answer", "-", "Answer file, plain text or a JSON object (- for stdin)")
	f.String("rubric", "", "Rubric JSON file (required)")
	f.StringP("grade", "g", string(grading.DefaultGradeLevel), "Grade level")
	f.StringP("subject", "s", grading.DefaultSubject, "Subject")
	f.Float64("max-score", 0, "Percentage denominator (0 = rubric total points)")
	f.Bool("ai-feedback", true, "Ask the LLM for feedback text")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.StringP("lang", "l", "en", "Language for rule-based feedback (en, es)")
	addLLMFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("rubric")

	return cmd
}

func sanitizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Redact personal information from text",
		RunE:  runSanitize,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "-", "Input file (- for stdin)")
	f.Bool("mask", true, "Replace matches with a placeholder instead of deleting them")
	f.Bool("preserve-context", true, "Name the category in the placeholder")
	f.Bool("check", false, "Only report detected categories; do not modify the text")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored quizzes as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "k5assist.db", "SQLite database path")
	f.Bool("gradings", false, "Include stored grading results")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runQuiz(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg, err := llmConfig(v)
	if err != nil {
		return fmt.Errorf("LLM config: %w", err)
	}
	text, err := readInput(cmd, v.GetString("file"))
	if err != nil {
		return err
	}
	grade, err := model.ParseGradeLevel(v.GetString("grade"))
	if err != nil {
		return err
	}

	engine := quiz.NewEngine(llm.New(cfg))
	opts := quiz.Options{
		GradeLevel:         grade,
		Subject:            v.GetString("subject"),
		CurriculumStandard: v.GetString("standard"),
		NumberOfQuestions:  v.GetInt("num-questions"),
		Difficulty:         model.Difficulty(v.GetString("difficulty")),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var result *model.QuizGenResult
	if v.GetBool("stream") {
		result, err = engine.GenerateQuizStream(ctx, string(text), opts, func(chunk string) error {
			_, err := fmt.Fprint(cmd.ErrOrStderr(), chunk)
			return err
		})
		fmt.Fprintln(cmd.ErrOrStderr())
	} else {
		result, err = engine.GenerateQuiz(ctx, string(text), opts)
	}
	if err != nil {
		return fmt.Errorf("generate quiz: %w", err)
	}
	for _, w := range result.Warnings {
		slog.Warn("quiz warning", "kind", w.Kind, "message", w.Message)
	}

	ctx = appI18n.WithLanguage(ctx, v.GetString("lang"))
	fmt.Fprintln(cmd.ErrOrStderr(), appI18n.Tp(ctx, "QuestionsGenerated", len(result.Questions)))
	return writeOutput(cmd, v.GetString("output"), result)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg, err := llmConfig(v)
	if err != nil {
		return fmt.Errorf("LLM config: %w", err)
	}

	rubricData, err := os.ReadFile(v.GetString("rubric"))
	if err != nil {
		return fmt.Errorf("read rubric: %w", err)
	}
	var rubric model.Rubric
	if err := json.Unmarshal(rubricData, &rubric); err != nil {
		return fmt.Errorf("parse rubric: %w", err)
	}

	raw, err := readInput(cmd, v.GetString("answer"))
	if err != nil {
		return err
	}
	answer, err := parseAnswer(raw)
	if err != nil {
		return err
	}

	opts := grading.Options{
		Rubric:     &rubric,
		GradeLevel: model.GradeLevel(v.GetString("grade")),
		Subject:    v.GetString("subject"),
	}
	if maxScore := v.GetFloat64("max-score"); maxScore != 0 {
		opts.MaxScore = &maxScore
	}
	useAI := v.GetBool("ai-feedback")
	opts.UseAIForFeedback = &useAI

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = appI18n.WithLanguage(ctx, v.GetString("lang"))

	result, err := grading.NewEngine(llm.New(cfg)).Grade(ctx, answer, opts)
	if err != nil {
		return fmt.Errorf("grade answer: %w", err)
	}
	return writeOutput(cmd, v.GetString("output"), result)
}

// parseAnswer treats input that is a JSON object as a structured answer and
// anything else as free text.
func parseAnswer(raw []byte) (model.AnswerContent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var a model.AnswerContent
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return model.AnswerContent{}, fmt.Errorf("parse answer: %w", err)
		}
		return a, nil
	}
	return model.TextAnswer(string(raw)), nil
}

func runSanitize(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	text, err := readInput(cmd, v.GetString("file"))
	if err != nil {
		return err
	}

	if v.GetBool("check") {
		return writeOutput(cmd, "-", privacy.ValidateNoPII(string(text)))
	}

	opts := privacy.Options{
		Mask:            v.GetBool("mask"),
		PreserveContext: v.GetBool("preserve-context"),
	}
	clean := privacy.Sanitize(string(text), opts)
	if len(clean.RemovedFields) > 0 {
		slog.Info("PII removed", "categories", strings.Join(clean.RemovedFields, ","))
	}
	_, err = io.WriteString(cmd.OutOrStdout(), clean.Sanitized)
	return err
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportAll(v.GetBool("gradings"))
	if err != nil {
		return fmt.Errorf("export quizzes: %w", err)
	}
	slog.Info("exported quizzes", "count", export.NumQuizzes)
	return writeOutput(cmd, v.GetString("output"), export)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
