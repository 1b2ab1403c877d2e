// Package errors provides standardized error handling for prompt dispatch
// and its BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnknownTemplate        ErrorCode = "UNKNOWN_TEMPLATE"
	ErrCodeDatasetNotFound        ErrorCode = "DATASET_NOT_FOUND"
	ErrCodeGenerationServiceError ErrorCode = "GENERATION_SERVICE_ERROR"
	ErrCodeCapturePersistFailed   ErrorCode = "CAPTURE_PERSIST_FAILED"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. A StandardError matches a sentinel when the codes match.
var (
	ErrUnknownTemplate   = &StandardError{Code: ErrCodeUnknownTemplate}
	ErrDatasetNotFound   = &StandardError{Code: ErrCodeDatasetNotFound}
	ErrGenerationService = &StandardError{Code: ErrCodeGenerationServiceError}
	ErrCapturePersist    = &StandardError{Code: ErrCodeCapturePersistFailed}
	ErrInvalidInput      = &StandardError{Code: ErrCodeInvalidInput}
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is reports whether target is a StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewUnknownTemplateError is returned when a template identifier is not one of the fixed strategies.
func NewUnknownTemplateError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTemplate,
		Message:   "Unknown prompt template",
		Details:   fmt.Sprintf("templateId: %q", templateID),
		Retryable: false,
		Metadata:  map[string]interface{}{"templateId": templateID},
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetNotFoundError is returned when a dataset reference does not resolve to a readable file.
func NewDatasetNotFoundError(reference string, err error) *StandardError {
	details := fmt.Sprintf("datasetRef: %s", reference)
	if err != nil {
		details = fmt.Sprintf("datasetRef: %s, error: %s", reference, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeDatasetNotFound,
		Message:   "Dataset reference is not readable",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"datasetRef": reference},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewGenerationServiceError collapses every failure of the external
// text-generation call into one kind. It is never retried locally.
func NewGenerationServiceError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationServiceError,
		Message:   fmt.Sprintf("Generation service '%s' error", provider),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCapturePersistError is returned when a captured response could not be stored.
func NewCapturePersistError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapturePersistFailed,
		Message:   fmt.Sprintf("Capture sink '%s' failed", sink),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"sink": sink},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeUnknownTemplate:        "UNKNOWN_TEMPLATE",
	ErrCodeDatasetNotFound:        "DATASET_NOT_FOUND",
	ErrCodeGenerationServiceError: "GENERATION_SERVICE_ERROR",
	ErrCodeCapturePersistFailed:   "CAPTURE_PERSIST_FAILED",
	ErrCodeInvalidInput:           "INVALID_INPUT",
}

// RetryCounts is the job retry count per error code. Dispatch has no local
// recovery, so every code fails the job for good.
var RetryCounts = map[ErrorCode]int{
	ErrCodeUnknownTemplate:        0,
	ErrCodeDatasetNotFound:        0,
	ErrCodeGenerationServiceError: 0,
	ErrCodeCapturePersistFailed:   0,
	ErrCodeInvalidInput:           0,
	ErrCodeInternal:               0,
}

// GetRetryCount returns the job retry count for an error code. Unlisted codes get none.
func GetRetryCount(code ErrorCode) int {
	return RetryCounts[code]
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATASET"):
		return "DATASET"
	case strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "CAPTURE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// CodeOf returns the code of a StandardError in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if stdErr, ok := err.(*StandardError); ok {
			return stdErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeInternal
}
