package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseGradeLevel(t *testing.T) {
	for _, g := range GradeLevels {
		got, err := ParseGradeLevel(string(g))
		if err != nil || got != g {
			t.Errorf("ParseGradeLevel(%q) = %q, %v", g, got, err)
		}
		if _, ok := g.AgeBand(); !ok {
			t.Errorf("%q has no age band", g)
		}
	}

	_, err := ParseGradeLevel("grade_6")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "gradeLevel" {
		t.Errorf("ParseGradeLevel(grade_6) error = %v, want ValidationError on gradeLevel", err)
	}
}

func TestAnswerContentJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		isRecord bool
		text     string
		wantErr  bool
	}{
		{"string", `"Plants need light."`, false, "Plants need light.", false},
		{"object", ` {"step1": "add", "step2": "carry"}`, true, "", false},
		{"number", `42`, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a AnswerContent
			err := json.Unmarshal([]byte(tt.input), &a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if a.IsRecord() != tt.isRecord || a.Text != tt.text {
				t.Errorf("got %+v", a)
			}
		})
	}
}

func TestTransportErrorMessage(t *testing.T) {
	withStatus := &TransportError{Provider: "ollama", StatusCode: 500, Body: "boom"}
	if got := withStatus.Error(); got != "ollama API error: 500 - boom" {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("connection refused")
	network := &TransportError{Provider: "api", Err: cause}
	if !errors.Is(network, cause) {
		t.Error("TransportError should unwrap to its cause")
	}
	if !IsTransport(network) || IsValidation(network) {
		t.Error("classification helpers disagree")
	}
}

func TestValidateRubric(t *testing.T) {
	one := 1.0
	neg := -1.0
	tests := []struct {
		name  string
		r     Rubric
		field string
	}{
		{"valid", Rubric{TotalPoints: 10, Criteria: []RubricCriterion{{Name: "Ideas", MaxPoints: 10, Weight: &one}}}, ""},
		{"no criteria", Rubric{TotalPoints: 10}, "criteria"},
		{"zero total", Rubric{Criteria: []RubricCriterion{{Name: "Ideas", MaxPoints: 10}}}, "totalPoints"},
		{"zero max points", Rubric{TotalPoints: 10, Criteria: []RubricCriterion{{Name: "Ideas"}}}, "criteria[0].maxPoints"},
		{"missing name", Rubric{TotalPoints: 10, Criteria: []RubricCriterion{{MaxPoints: 5}}}, "criteria[0].name"},
		{"duplicate names", Rubric{TotalPoints: 10, Criteria: []RubricCriterion{{Name: "Ideas", MaxPoints: 5}, {Name: "Ideas", MaxPoints: 5}}}, "criteria"},
		{"negative weight", Rubric{TotalPoints: 10, Criteria: []RubricCriterion{{Name: "Ideas", MaxPoints: 5, Weight: &neg}}}, "criteria[0].weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.r)
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q (%v)", ve.Field, tt.field, err)
			}
		})
	}
}
