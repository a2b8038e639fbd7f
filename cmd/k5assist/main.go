package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/k5assist/internal/handler"
	appI18n "github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "k5assist",
		Short:        "K-5 teaching assistant: quiz generation and rubric grading",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, quizCmd(), gradeCmd(), sanitizeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `k5assist --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "k5assist.db", "SQLite database path")
	f.Bool("persist", true, "Store generated quizzes and grading results")
	f.StringP("lang", "l", "en", "Default language for feedback text (en, es)")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func addLLMFlags(cmd *cobra.Command) {
	def := llm.DefaultConfig()
	f := cmd.Flags()
	f.String("llm-provider", string(def.Provider), "LLM provider (ollama, api, gemini)")
	f.String("llm-model", def.Model, "LLM model name")
	f.String("llm-url", "", "LLM API base URL (provider default when empty)")
	f.String("llm-key", "", "API key for hosted providers")
	f.Float64("llm-temperature", *def.Temperature, "Sampling temperature (0-2)")
	f.Int("llm-max-tokens", def.MaxTokens, "Maximum tokens to generate")
	f.Duration("llm-timeout", def.Timeout, "Timeout for one LLM call")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("K5ASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("k5assist")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/k5assist")
	v.AddConfigPath("/etc/k5assist")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// llmConfig reads the gateway configuration from flags, environment and
// config file.
func llmConfig(v *viper.Viper) (llm.Config, error) {
	provider, err := llm.ParseProvider(v.GetString("llm-provider"))
	if err != nil {
		return llm.Config{}, err
	}
	cfg := llm.Config{
		Provider:    provider,
		Model:       v.GetString("llm-model"),
		BaseURL:     v.GetString("llm-url"),
		APIKey:      v.GetString("llm-key"),
		Temperature: llm.Temperature(v.GetFloat64("llm-temperature")),
		MaxTokens:   v.GetInt("llm-max-tokens"),
		Timeout:     v.GetDuration("llm-timeout"),
	}
	if t := *cfg.Temperature; t < 0 || t > 2 {
		return llm.Config{}, fmt.Errorf("llm-temperature must be within [0, 2], got %g", t)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg, err := llmConfig(v)
	if err != nil {
		return fmt.Errorf("LLM config: %w", err)
	}
	llmClient := llm.New(cfg)

	var db *store.Store
	if v.GetBool("persist") {
		db, err = store.New(v.GetString("db"))
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
	}

	h := handler.New(llmClient, db)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"llm_url", cfg.BaseURL,
		"lang", lang,
		"persist", db != nil,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
