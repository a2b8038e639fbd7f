package handler

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/k5assist/internal/i18n"
	"github.com/pavelanni/k5assist/internal/llm"
	"github.com/pavelanni/k5assist/internal/model"
	"github.com/pavelanni/k5assist/internal/store"
)

const twoQuestions = `{"questions": [
	{"question": "What makes water rise into the air?", "options": ["Evaporation", "Freezing", "Melting", "Sinking"], "correctAnswer": 0},
	{"question": "What falls from clouds?", "options": ["Rocks", "Rain", "Sand", "Leaves"], "correctAnswer": "B"}
]}`

// fakeOllama serves canned content in the Ollama generate format. A
// non-zero status makes every call fail with that status.
type fakeOllama struct {
	content string
	status  int
	calls   int
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls++
	if f.status != 0 {
		http.Error(w, "backend unavailable", f.status)
		return
	}
	var req struct {
		Stream bool `json:"stream"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	enc := json.NewEncoder(w)
	if !req.Stream {
		_ = enc.Encode(map[string]any{"model": "phi3:mini", "response": f.content, "done": true})
		return
	}
	half := len(f.content) / 2
	for _, chunk := range []string{f.content[:half], f.content[half:]} {
		_ = enc.Encode(map[string]any{"model": "phi3:mini", "response": chunk, "done": false})
	}
	_ = enc.Encode(map[string]any{"model": "phi3:mini", "response": "", "done": true})
}

type testEnv struct {
	router  http.Handler
	backend *fakeOllama
	store   *store.Store
}

func newTestEnv(t *testing.T, content string, persist bool) *testEnv {
	t.Helper()
	backend := &fakeOllama{content: content}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	var s *store.Store
	if persist {
		var err error
		s, err = store.New(":memory:")
		if err != nil {
			t.Fatalf("store.New: %v", err)
		}
		t.Cleanup(func() { s.Close() })
	}

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	New(llm.New(llm.Config{BaseURL: srv.URL}), s).Routes(r)
	return &testEnv{router: r, backend: backend, store: s}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const quizBody = `{"curriculumText": "Water evaporates, forms clouds and falls as rain.", "gradeLevel": "grade_3", "subject": "science", "numberOfQuestions": 2, "teacherId": "t1"}`

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "", false)
	rec := env.do(http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[map[string]any](t, rec)
	if got["status"] != "ok" || got["provider"] != "ollama" || got["timestamp"] == "" {
		t.Errorf("health = %v", got)
	}
}

func TestGenerateQuiz(t *testing.T) {
	env := newTestEnv(t, twoQuestions, true)

	rec := env.do(http.MethodPost, "/api/generate-quiz", quizBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[generateQuizResponse](t, rec)
	if !got.Success || len(got.Quiz.Questions) != 2 {
		t.Fatalf("response = %+v", got)
	}
	if got.Quiz.Questions[1].CorrectAnswer != 1 {
		t.Errorf("second answer = %d, want 1", got.Quiz.Questions[1].CorrectAnswer)
	}
	if got.Metadata.QuestionsGenerated != 2 || got.Metadata.CurriculumLength == 0 || got.Metadata.GeneratedAt.IsZero() {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if got.Assignment == nil || got.Assignment.ID == "" {
		t.Fatalf("assignment missing: %+v", got.Assignment)
	}
	if got.Assignment.Title != "Quiz: Science - 3rd Grade" {
		t.Errorf("title = %q", got.Assignment.Title)
	}

	list := env.do(http.MethodGet, "/api/quizzes?teacherId=t1", "")
	if quizzes := decode[[]model.QuizRecord](t, list); len(quizzes) != 1 {
		t.Errorf("listed %d quizzes, want 1", len(quizzes))
	}
	one := env.do(http.MethodGet, "/api/quizzes/"+got.Assignment.ID, "")
	if one.Code != http.StatusOK {
		t.Errorf("get quiz status = %d", one.Code)
	}
	missing := env.do(http.MethodGet, "/api/quizzes/nope", "")
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing quiz status = %d, want 404", missing.Code)
	}
}

func TestGenerateQuizLocalizedTitle(t *testing.T) {
	env := newTestEnv(t, twoQuestions, true)
	rec := env.do(http.MethodPost, "/api/generate-quiz", quizBody, "Accept-Language", "es-MX,es;q=0.9")
	got := decode[generateQuizResponse](t, rec)
	if got.Assignment == nil || got.Assignment.Title != "Cuestionario: Ciencias - 3.er grado" {
		t.Errorf("assignment = %+v", got.Assignment)
	}
}

func TestGenerateQuizWithoutStore(t *testing.T) {
	env := newTestEnv(t, twoQuestions, false)
	rec := env.do(http.MethodPost, "/api/generate-quiz", quizBody)
	got := decode[generateQuizResponse](t, rec)
	if !got.Success || got.Assignment != nil {
		t.Errorf("response = %+v, want success without assignment", got)
	}
	list := env.do(http.MethodGet, "/api/quizzes", "")
	if strings.TrimSpace(list.Body.String()) != "[]" {
		t.Errorf("list = %s, want []", list.Body.String())
	}
}

func TestGenerateQuizRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{"curriculumText":`, "validation_error"},
		{"blank curriculum", `{"curriculumText": "   ", "gradeLevel": "grade_3", "subject": "math"}`, "validation_error"},
		{"missing subject", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_3"}`, "validation_error"},
		{"unknown grade", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_9", "subject": "math"}`, "validation_error"},
		{"too many questions", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_3", "subject": "math", "numberOfQuestions": 25}`, "validation_error"},
		{"bad difficulty", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_3", "subject": "math", "difficulty": "extreme"}`, "validation_error"},
		{"bad temperature", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_3", "subject": "math", "llmConfig": {"temperature": 3}}`, "validation_error"},
		{"unknown provider", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_3", "subject": "math", "llmConfig": {"provider": "watson"}}`, "unsupported_provider"},
		{"hosted without key", `{"curriculumText": "Add numbers.", "gradeLevel": "grade_3", "subject": "math", "llmConfig": {"provider": "api"}}`, "configuration_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, twoQuestions, false)
			rec := env.do(http.MethodPost, "/api/generate-quiz", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			got := decode[errorResponse](t, rec)
			if got.Error != tt.code || got.Message == "" {
				t.Errorf("error = %+v, want code %q", got, tt.code)
			}
			if env.backend.calls != 0 {
				t.Errorf("backend called %d times, want 0", env.backend.calls)
			}
		})
	}
}

func TestGenerateQuizUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, "", false)
	env.backend.status = http.StatusServiceUnavailable

	rec := env.do(http.MethodPost, "/api/generate-quiz", quizBody)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	got := decode[errorResponse](t, rec)
	if got.Error != "upstream_error" || !strings.Contains(got.Message, "503") {
		t.Errorf("error = %+v", got)
	}
}

func TestGenerateQuizUnparseable(t *testing.T) {
	env := newTestEnv(t, "I cannot help with that.", false)
	rec := env.do(http.MethodPost, "/api/generate-quiz", quizBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateQuizStream(t *testing.T) {
	env := newTestEnv(t, twoQuestions, true)
	rec := env.do(http.MethodPost, "/api/generate-quiz/stream", quizBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := map[string][]string{}
	var event string
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events[event] = append(events[event], strings.TrimPrefix(line, "data: "))
		}
	}
	if len(events["chunk"]) != 2 {
		t.Errorf("chunk events = %d, want 2", len(events["chunk"]))
	}
	if len(events["result"]) != 1 {
		t.Fatalf("result events = %d, want 1 (body %s)", len(events["result"]), rec.Body.String())
	}
	var result generateQuizResponse
	if err := json.Unmarshal([]byte(events["result"][0]), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Quiz.Questions) != 2 || result.Assignment == nil {
		t.Errorf("result = %+v", result)
	}
}

func TestGenerateQuizStreamError(t *testing.T) {
	env := newTestEnv(t, "", false)
	env.backend.status = http.StatusInternalServerError
	rec := env.do(http.MethodPost, "/api/generate-quiz/stream", quizBody)
	body := rec.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "upstream_error") {
		t.Errorf("body = %s, want an upstream error event", body)
	}
}

const gradeBody = `{
	"studentAnswer": "Evaporation lifts water up and precipitation brings it back. Email me at kid@example.com",
	"rubric": {"totalPoints": 10, "criteria": [{"name": "Science terms", "description": "Evaporation and precipitation", "maxPoints": 10}]},
	"gradeLevel": "grade_4",
	"subject": "science",
	"useAIForFeedback": false,
	"assignmentId": "a1"
}`

func TestGrade(t *testing.T) {
	env := newTestEnv(t, "", true)
	rec := env.do(http.MethodPost, "/api/grade", gradeBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[model.GradingResult](t, rec)
	if got.Score != 10 || got.GradePercentage != 100 || got.FeedbackSource != model.FeedbackRuleBased {
		t.Errorf("result = %+v", got)
	}
	if len(got.Warnings) == 0 || got.Warnings[0].Kind != model.WarningPIIRedacted {
		t.Errorf("warnings = %+v, want a PII warning", got.Warnings)
	}
	if env.backend.calls != 0 {
		t.Errorf("backend called %d times with AI feedback off", env.backend.calls)
	}

	stored, err := env.store.ListGradings("a1")
	if err != nil {
		t.Fatalf("ListGradings: %v", err)
	}
	if len(stored) != 1 || stored[0].GradeLevel != model.Grade4 || stored[0].Result.Score != 10 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestGradeFeedbackFallback(t *testing.T) {
	env := newTestEnv(t, "", false)
	env.backend.status = http.StatusBadGateway
	body := strings.Replace(gradeBody, `"useAIForFeedback": false`, `"useAIForFeedback": true`, 1)

	rec := env.do(http.MethodPost, "/api/grade", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with fallback feedback", rec.Code)
	}
	got := decode[model.GradingResult](t, rec)
	if got.FeedbackSource != model.FeedbackRuleBased || got.EncouragingFeedback == "" {
		t.Errorf("result = %+v", got)
	}
}

func TestGradeRejected(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing answer", `{"rubric": {"totalPoints": 5, "criteria": [{"name": "A", "maxPoints": 5}]}}`, "studentAnswer"},
		{"missing rubric", `{"studentAnswer": "text"}`, "rubric"},
		{"empty criteria", `{"studentAnswer": "text", "rubric": {"totalPoints": 5, "criteria": []}}`, "criteria"},
		{"zero max score", `{"studentAnswer": "text", "maxScore": 0, "rubric": {"totalPoints": 5, "criteria": [{"name": "A", "maxPoints": 5}]}}`, "maxScore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", false)
			rec := env.do(http.MethodPost, "/api/grade", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if got := decode[errorResponse](t, rec); !strings.Contains(got.Message, tt.field) {
				t.Errorf("message = %q, want it to name %q", got.Message, tt.field)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	env := newTestEnv(t, "", false)

	rec := env.do(http.MethodPost, "/api/sanitize", `{"content": "Call 555-123-4567 today"}`)
	got := decode[model.SanitizedContent](t, rec)
	if got.Sanitized != "Call [PHONE_REDACTED] today" {
		t.Errorf("Sanitized = %q", got.Sanitized)
	}

	rec = env.do(http.MethodPost, "/api/sanitize", `{"content": {"email": "kid@example.com", "score": 3}, "preserveContext": false}`)
	got = decode[model.SanitizedContent](t, rec)
	if strings.Contains(got.Sanitized, "kid@example.com") || !strings.Contains(got.Sanitized, "[REDACTED]") {
		t.Errorf("Sanitized = %q", got.Sanitized)
	}
}

func TestValidatePII(t *testing.T) {
	env := newTestEnv(t, "", false)
	rec := env.do(http.MethodPost, "/api/validate-pii", `{"text": "My SSN is 123-45-6789"}`)
	got := decode[map[string]any](t, rec)
	if got["safe"] != false {
		t.Errorf("report = %v, want unsafe", got)
	}

	rec = env.do(http.MethodPost, "/api/validate-pii", `{"text": "Plants need sunlight."}`)
	got = decode[map[string]any](t, rec)
	if got["safe"] != true {
		t.Errorf("report = %v, want safe", got)
	}
}
