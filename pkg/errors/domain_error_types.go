package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// DomainErrorType is the category of a DomainError
type DomainErrorType string

const (
	DomainValidationError     DomainErrorType = "VALIDATION_ERROR"
	DomainBusinessRuleError   DomainErrorType = "BUSINESS_RULE_ERROR"
	DomainNotFoundError       DomainErrorType = "NOT_FOUND"
	DomainConflictError       DomainErrorType = "CONFLICT"
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"

	// DomainUpstreamError means the generation service answered with
	// something unusable
	DomainUpstreamError DomainErrorType = "UPSTREAM_ERROR"

	// DomainUnavailableError means the generation service is overloaded or down
	DomainUnavailableError DomainErrorType = "UNAVAILABLE_ERROR"
)

var domainStatus = map[DomainErrorType]int{
	DomainValidationError:     http.StatusBadRequest,
	DomainBusinessRuleError:   http.StatusBadRequest,
	DomainNotFoundError:       http.StatusNotFound,
	DomainConflictError:       http.StatusConflict,
	DomainInfrastructureError: http.StatusInternalServerError,
	DomainUpstreamError:       http.StatusBadGateway,
	DomainUnavailableError:    http.StatusServiceUnavailable,
}

// DomainError is a canvas or generation rule violation. Predefined values
// below are matched with errors.Is on Type and Code
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a domain error whose status follows its type
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	status, ok := domainStatus[errorType]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: status,
	}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Wrap returns a copy of a predefined error carrying cause.
// errors.Is still matches the original through Type and Code
func (e *DomainError) Wrap(cause error) *DomainError {
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Cause = cause
	return &clone
}

func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

var (
	// Nodes
	ErrNodeNotFound = NewDomainError(
		DomainNotFoundError,
		"NODE_NOT_FOUND",
		"The requested node does not exist",
	)

	ErrUnknownNodeKind = NewDomainError(
		DomainValidationError,
		"UNKNOWN_NODE_KIND",
		"Node kind is not registered",
	)

	ErrSelfConnection = NewDomainError(
		DomainBusinessRuleError,
		"SELF_CONNECTION",
		"Cannot connect a node to itself",
	)

	// Canvas documents
	ErrMalformedCanvas = NewDomainError(
		DomainValidationError,
		"MALFORMED_CANVAS",
		"Canvas document could not be decoded",
	)

	// Generation
	ErrMalformedFanOut = NewDomainError(
		DomainValidationError,
		"MALFORMED_FANOUT",
		"Fan-out response is missing branches or sections",
	)

	ErrInvalidGenerationOutput = NewDomainError(
		DomainUpstreamError,
		"LLM_OUTPUT_INVALID",
		"LLM output invalid",
	)

	ErrGenerationOverloaded = NewDomainError(
		DomainUnavailableError,
		"LLM_OVERLOADED",
		"The AI service is overloaded, please try again",
	).WithRetryable(true)

	ErrStaleGeneration = NewDomainError(
		DomainConflictError,
		"STALE_GENERATION",
		"A newer request superseded this generation",
	)

	// Storage
	ErrSnapshotStore = NewDomainError(
		DomainInfrastructureError,
		"SNAPSHOT_STORE_ERROR",
		"Failed to access canvas snapshot store",
	).WithRetryable(true)
)

// ValidationErrors collects field errors found while checking one payload
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add records message against field
func (v *ValidationErrors) Add(field string, message string) {
	err := NewDomainError(DomainValidationError, "FIELD_VALIDATION_ERROR", message).
		WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		field, _ := err.Details["field"].(string)
		messages[i] = field + ": " + err.Message
	}
	return "validation failed: " + strings.Join(messages, "; ")
}
