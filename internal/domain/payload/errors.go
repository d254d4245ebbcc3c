package payload

import (
	"fmt"
	"strings"
)

// Kind classifies a validation failure.
type Kind int

const (
	// MalformedPayload means the body is not a well-formed document of the expected shape.
	MalformedPayload Kind = iota + 1
	// MissingFields means required keys are absent.
	MissingFields
	// TypeMismatch means a value does not coerce to its target type.
	TypeMismatch
	// InvalidValue means a value has the right type but is out of range.
	InvalidValue
)

func (k Kind) String() string {
	switch k {
	case MalformedPayload:
		return "malformed_payload"
	case MissingFields:
		return "missing_fields"
	case TypeMismatch:
		return "type_mismatch"
	case InvalidValue:
		return "invalid_value"
	default:
		return "unknown"
	}
}

// ValidationError is the rejection of an untrusted payload. Every field is safe to show to clients.
type ValidationError struct {
	Kind   Kind
	Fields []string
	Detail string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MalformedPayload:
		if e.Detail != "" {
			return "Invalid json: " + e.Detail
		}
		return "Invalid json"
	case MissingFields:
		return "Missing fields: " + strings.Join(e.Fields, ", ")
	case TypeMismatch:
		if len(e.Fields) > 0 && e.Fields[0] == fieldRatings {
			return "Rating data invalid: " + e.Detail
		}
		return "Invalid data types: " + e.Detail
	case InvalidValue:
		return "Invalid value: " + e.Detail
	default:
		return e.Detail
	}
}

func malformed(detail string) *ValidationError {
	return &ValidationError{Kind: MalformedPayload, Detail: detail}
}

func mismatch(field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: TypeMismatch, Fields: []string{field}, Detail: fmt.Sprintf(format, args...)}
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: InvalidValue, Fields: []string{field}, Detail: fmt.Sprintf(format, args...)}
}
