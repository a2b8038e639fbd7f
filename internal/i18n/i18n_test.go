package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pavelanni/k5assist/internal/model"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "FeedbackNiceTry")
	if got != "Nice try! Keep practicing and reviewing the material." {
		t.Errorf("T(FeedbackNiceTry) = %q", got)
	}
}

func TestTranslateSpanish(t *testing.T) {
	ctx := initLang(t, "es")

	got := T(ctx, "FeedbackGreat")
	if got != "¡Muy bien! Mostraste una sólida comprensión del material." {
		t.Errorf("T(FeedbackGreat) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsGenerated", 1); got != "Generated 1 question." {
		t.Errorf("Tp(QuestionsGenerated, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsGenerated", 5); got != "Generated 5 questions." {
		t.Errorf("Tp(QuestionsGenerated, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "NoteExcellent", map[string]any{"Percent": 85})
	if got != "Scored 85%: Excellent work addressing this criterion." {
		t.Errorf("Td(NoteExcellent) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the ID back", got)
	}
}

func TestNoLocalizerInContext(t *testing.T) {
	got := T(context.Background(), "FeedbackDefault")
	if got != "Great effort on this assignment!" {
		t.Errorf("T without localizer = %q, want English", got)
	}
}

func TestLabels(t *testing.T) {
	en := initLang(t, "en")
	es := initLang(t, "es")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"grade en", GradeLabel(en, model.Grade3), "3rd Grade"},
		{"grade es", GradeLabel(es, model.Kindergarten), "Kínder"},
		{"subject en", SubjectLabel(en, "social_studies"), "Social Studies"},
		{"subject es", SubjectLabel(es, "science"), "Ciencias"},
		{"unknown subject", SubjectLabel(en, "robotics"), "robotics"},
		{"unknown grade", GradeLabel(en, "grade_9"), "grade_9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Subject_math")
	}))

	tests := []struct {
		accept string
		want   string
	}{
		{"", "Math"},
		{"es-MX,es;q=0.9", "Matemáticas"},
		{"fr", "Math"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.accept != "" {
			req.Header.Set("Accept-Language", tt.accept)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("Accept-Language %q: got %q, want %q", tt.accept, got, tt.want)
		}
	}
}
