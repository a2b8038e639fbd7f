package privacy

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"
	"testing"
)

func TestSanitizeCategories(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category string
		secret   string
	}{
		{"email", "Contact jane.doe@example.com today", CategoryEmail, "jane.doe@example.com"},
		{"phone dashed", "Call 555-123-4567 after school", CategoryPhone, "555-123-4567"},
		{"phone parens", "Call (555) 123-4567 please", CategoryPhone, "(555) 123-4567"},
		{"ssn", "SSN is 123-45-6789.", CategorySSN, "123-45-6789"},
		{"credit card", "Card 4111 1111 1111 1111 on file", CategoryCreditCard, "4111 1111 1111 1111"},
		{"date of birth", "Born 03/15/2016 in spring", CategoryDateOfBirth, "03/15/2016"},
		{"street address", "Lives at 42 Maple Street now", CategoryStreetAddress, "42 Maple Street"},
		{"zip", "Mail goes to 90210 area", CategoryZipCode, "90210"},
		{"honorific", "Ask Mrs. Smith about it", CategoryName, "Mrs. Smith"},
		{"student name", "Student Emma Jones read aloud", CategoryName, "Emma Jones"},
		{"school id", "Student ID: S-1234 was absent", CategorySchoolID, "S-1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input, DefaultOptions())
			if strings.Contains(got.Sanitized, tt.secret) {
				t.Errorf("Sanitize(%q) = %q, still contains %q", tt.input, got.Sanitized, tt.secret)
			}
			if !slices.Contains(got.RemovedFields, tt.category) {
				t.Errorf("RemovedFields = %v, want it to contain %q", got.RemovedFields, tt.category)
			}
		})
	}
}

func TestSanitizeEmailPlaceholder(t *testing.T) {
	got := Sanitize("Email a@b.org or a@b.org again", DefaultOptions())
	want := "Email [EMAIL_REDACTED] or [EMAIL_REDACTED] again"
	if got.Sanitized != want {
		t.Errorf("Sanitized = %q, want %q", got.Sanitized, want)
	}
	if len(got.RemovedFields) != 1 || got.RemovedFields[0] != CategoryEmail {
		t.Errorf("RemovedFields = %v, want [email]", got.RemovedFields)
	}
}

func TestSanitizeOptions(t *testing.T) {
	input := "Write to kid@school.edu."

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"mask with context", Options{Mask: true, PreserveContext: true}, "Write to [EMAIL_REDACTED]."},
		{"mask generic", Options{Mask: true}, "Write to [REDACTED]."},
		{"delete", Options{}, "Write to ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(input, tt.opts)
			if got.Sanitized != tt.want {
				t.Errorf("Sanitize() = %q, want %q", got.Sanitized, tt.want)
			}
		})
	}
}

func TestSanitizeNoPII(t *testing.T) {
	inputs := []string{
		"",
		"The water cycle moves water from oceans to clouds and back again.",
		"Plants need sunlight, water, and air to grow.",
	}
	for _, in := range inputs {
		got := Sanitize(in, DefaultOptions())
		if got.Sanitized != in {
			t.Errorf("Sanitize(%q) = %q, want unchanged", in, got.Sanitized)
		}
		if len(got.RemovedFields) != 0 {
			t.Errorf("Sanitize(%q).RemovedFields = %v, want empty", in, got.RemovedFields)
		}
	}
}

func TestSanitizeKeepsUnmatchedText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"same digits inside a longer number", "Zip 12345. Order 9912345 shipped.", "Zip [ZIP_CODE_REDACTED]. Order 9912345 shipped."},
		{"email local part elsewhere", "Write kid@example.com, the kid said.", "Write [EMAIL_REDACTED], the kid said."},
		{"longest overlapping match wins", "Student ID: 90210 left", "[SCHOOL_ID_REDACTED] left"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input, DefaultOptions())
			if got.Sanitized != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got.Sanitized, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	input := "Mr. Brown emailed tom@example.com from 12 Oak Avenue, phone 555-987-6543."
	first := Sanitize(input, DefaultOptions())
	if len(first.RemovedFields) == 0 {
		t.Fatal("first pass removed nothing")
	}

	second := Sanitize(first.Sanitized, DefaultOptions())
	if second.Sanitized != first.Sanitized {
		t.Errorf("second pass changed text: %q -> %q", first.Sanitized, second.Sanitized)
	}
	if len(second.RemovedFields) != 0 {
		t.Errorf("second pass RemovedFields = %v, want empty", second.RemovedFields)
	}
}

func TestSanitizeCustomPatterns(t *testing.T) {
	opts := DefaultOptions()
	opts.CustomPatterns = map[string]*regexp.Regexp{
		"locker": regexp.MustCompile(`Locker #\d+`),
	}

	got := Sanitize("Books are in Locker #221.", opts)
	if got.Sanitized != "Books are in [LOCKER_REDACTED]." {
		t.Errorf("Sanitized = %q", got.Sanitized)
	}
	if !slices.Contains(got.RemovedFields, "locker") {
		t.Errorf("RemovedFields = %v, want locker", got.RemovedFields)
	}

	// Custom patterns are per call; the built-in table is untouched.
	if len(patternTable(nil)) != len(BuiltinPatterns()) {
		t.Error("built-in pattern table was modified")
	}
}

func TestSanitizeRecord(t *testing.T) {
	record := map[string]any{
		"firstName": "Emma",
		"answer":    "My teacher is Mr. Green and my email is emma@home.net",
		"details": map[string]any{
			"parentEmail": "mom@home.net",
			"score":       float64(7),
		},
		"tags": []any{"call 555-222-3333", true},
	}

	got, err := SanitizeRecord(record, DefaultOptions())
	if err != nil {
		t.Fatalf("SanitizeRecord: %v", err)
	}

	for _, secret := range []string{"Emma", "mom@home.net", "emma@home.net", "Mr. Green", "555-222-3333"} {
		if strings.Contains(got.Sanitized, secret) {
			t.Errorf("sanitized record still contains %q: %s", secret, got.Sanitized)
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got.Sanitized), &decoded); err != nil {
		t.Fatalf("sanitized record is not JSON: %v", err)
	}
	if decoded["firstName"] != "[FIRSTNAME_REDACTED]" {
		t.Errorf("firstName = %v", decoded["firstName"])
	}
	details := decoded["details"].(map[string]any)
	if details["score"] != float64(7) {
		t.Errorf("score = %v, want 7 unchanged", details["score"])
	}

	for _, label := range []string{"firstname", "parentemail", CategoryEmail, CategoryName, CategoryPhone} {
		if !slices.Contains(got.RemovedFields, label) {
			t.Errorf("RemovedFields = %v, want %q", got.RemovedFields, label)
		}
	}
}

func TestSanitizeRecordDropsFieldsWithoutMask(t *testing.T) {
	got, err := SanitizeRecord(map[string]any{"studentId": "A1", "topic": "plants"}, Options{})
	if err != nil {
		t.Fatalf("SanitizeRecord: %v", err)
	}
	if got.Sanitized != `{"topic":"plants"}` {
		t.Errorf("Sanitized = %s, want studentId dropped", got.Sanitized)
	}
}

func TestSanitizeRecordDeterministic(t *testing.T) {
	record := map[string]any{"email": "x", "phone": "y", "lastName": "z", "zipcode": "w"}
	first, _ := SanitizeRecord(record, DefaultOptions())
	for i := 0; i < 20; i++ {
		again, _ := SanitizeRecord(record, DefaultOptions())
		if !slices.Equal(first.RemovedFields, again.RemovedFields) || first.Sanitized != again.Sanitized {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestValidateNoPII(t *testing.T) {
	safe := ValidateNoPII("Frogs are amphibians.")
	if !safe.Safe || len(safe.Warnings) != 0 {
		t.Errorf("ValidateNoPII(clean) = %+v, want safe", safe)
	}

	text := "reach me at a@b.com"
	report := ValidateNoPII(text)
	if report.Safe {
		t.Error("ValidateNoPII should flag an email address")
	}
	if !slices.Contains(report.Warnings, "Potential email detected") {
		t.Errorf("Warnings = %v", report.Warnings)
	}
	if text != "reach me at a@b.com" {
		t.Error("ValidateNoPII modified its input")
	}
}
