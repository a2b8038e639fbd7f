package model

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProvider is returned when a configured language-model
// provider name is not recognized.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// ValidationError reports bad input shape or values, including model output
// that could not be recovered into a valid result.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// ConfigurationError reports a provider configuration that cannot be used,
// such as a missing credential. No network call is made when it is returned.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Message
}

// TransportError reports a failed call to a language-model backend.
// StatusCode is 0 for network failures and timeouts.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is or wraps a *ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// WarningKind classifies a non-fatal condition attached to a result.
type WarningKind string

const (
	WarningPIIRedacted      WarningKind = "pii_redacted"
	WarningParseRecovery    WarningKind = "parse_recovery"
	WarningLowConfidence    WarningKind = "low_confidence_answer"
	WarningShortfall        WarningKind = "question_shortfall"
	WarningFeedbackFallback WarningKind = "feedback_fallback"
)

// Warning is a non-fatal condition observed while producing a result.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}
