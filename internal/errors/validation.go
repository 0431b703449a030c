package errors

import "fmt"

// ValidationError describes a single invalid field on a request.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Rule    string      `json:"rule,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", ve.Field, ve.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

func NewValidationErrorWithRule(field, message, rule string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Rule:    rule,
		Value:   value,
	}
}

// ValidationErrors aggregates field errors for a whole request.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	default:
		return fmt.Sprintf("validation failed: %d field errors", len(ve))
	}
}

func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}
