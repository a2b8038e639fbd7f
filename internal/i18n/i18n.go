// Package i18n holds every canned, user-visible sentence: rule-based
// feedback, criterion notes, quiz titles and grade and subject labels.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/pavelanni/k5assist/internal/model"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	loadOnce sync.Once
	loadErr  error
	bundle   *i18n.Bundle
)

// Supported lists the languages with a locale file.
var Supported = []string{"en", "es"}

func load() error {
	loadOnce.Do(func() {
		b := i18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			loadErr = fmt.Errorf("read locales dir: %w", err)
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := localeFS.ReadFile("locales/" + e.Name())
			if err != nil {
				loadErr = fmt.Errorf("read locale file %s: %w", e.Name(), err)
				return
			}
			if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
				loadErr = fmt.Errorf("parse locale file %s: %w", e.Name(), err)
				return
			}
			slog.Debug("loaded locale file", "file", e.Name())
		}
		bundle = b
	})
	return loadErr
}

// Init loads the translation bundle and checks that lang is a valid
// language tag.
func Init(lang string) error {
	if _, err := language.Parse(lang); err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}
	return load()
}

// NewLocalizer creates a localizer for the given languages in order of
// preference, falling back to English for missing messages. Each entry may
// be a tag or an Accept-Language header value.
func NewLocalizer(langs ...string) *i18n.Localizer {
	if err := load(); err != nil {
		slog.Error("locale bundle unavailable", "error", err)
		return nil
	}
	return i18n.NewLocalizer(bundle, append(langs, "en")...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// WithLanguage is WithLocalizer for a language tag.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return WithLocalizer(ctx, NewLocalizer(lang))
}

// localizerFromCtx retrieves the localizer from context.
func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok && loc != nil {
		return loc
	}
	// Fallback: return English localizer.
	return NewLocalizer("en")
}

func lookup(ctx context.Context, cfg *i18n.LocalizeConfig) (string, error) {
	loc := localizerFromCtx(ctx)
	if loc == nil {
		return "", fmt.Errorf("no localizer for message %q", cfg.MessageID)
	}
	return loc.Localize(cfg)
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	s, err := lookup(ctx, &i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	s, err := lookup(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	s, err := lookup(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// GradeLabel returns the display name of a grade level, e.g. "3rd Grade".
func GradeLabel(ctx context.Context, g model.GradeLevel) string {
	if s, err := lookup(ctx, &i18n.LocalizeConfig{MessageID: "Grade_" + string(g)}); err == nil {
		return s
	}
	return string(g)
}

// SubjectLabel returns the display name of a subject. Subjects without a
// translation are returned as given.
func SubjectLabel(ctx context.Context, subject string) string {
	if s, err := lookup(ctx, &i18n.LocalizeConfig{MessageID: "Subject_" + subject}); err == nil {
		return s
	}
	return subject
}
