package model

import "fmt"

// ParseError represents invoice decoding errors with source context
type ParseError struct {
	Source  string
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Source, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Source, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(source, field, message string, cause error) *ParseError {
	return &ParseError{
		Source:  source,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ViolationKind tells whether a field was missing or not allowed
type ViolationKind string

const (
	ViolationMissing   ViolationKind = "missing"
	ViolationForbidden ViolationKind = "forbidden"
)

// ProfileViolation is returned when an invoice does not fit its profile
type ProfileViolation struct {
	Profile Profile
	Field   string
	Kind    ViolationKind
}

func (e *ProfileViolation) Error() string {
	switch e.Kind {
	case ViolationForbidden:
		return fmt.Sprintf("profile %s forbids field %s, but it is set", e.Profile, e.Field)
	default:
		return fmt.Sprintf("profile %s requires field %s, which is missing", e.Profile, e.Field)
	}
}

// NewProfileViolation creates a new profile violation
func NewProfileViolation(profile Profile, field string, kind ViolationKind) *ProfileViolation {
	return &ProfileViolation{
		Profile: profile,
		Field:   field,
		Kind:    kind,
	}
}
