// Package errors provides standardized error codes for the chat pipeline and
// their mapping onto Zeebe job failures.
package errors

import (
	"errors"
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
	ErrCodeDatasetLoadFailed ErrorCode = "DATASET_LOAD_FAILED"
	ErrCodeConfigInvalid     ErrorCode = "CONFIG_INVALID"

	ErrCodeRoutingFailed      ErrorCode = "ROUTING_FAILED"
	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed ErrorCode = "LLM_SYNTHESIS_FAILED"

	ErrCodeAnalyticalQueryFailed ErrorCode = "ANALYTICAL_QUERY_FAILED"
	ErrCodeEntityNotFound        ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeEmbeddingFailed       ErrorCode = "EMBEDDING_FAILED"

	ErrCodeInvalidToolArguments ErrorCode = "INVALID_TOOL_ARGUMENTS"
	ErrCodeUnknownTool          ErrorCode = "UNKNOWN_TOOL"

	ErrCodeMemoryReadFailed  ErrorCode = "MEMORY_READ_FAILED"
	ErrCodeMemoryWriteFailed ErrorCode = "MEMORY_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetLoadFailedError is fatal at startup; never retried.
func NewDatasetLoadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeDatasetLoadFailed, "Dataset could not be loaded",
		fmt.Sprintf("path: %s, error: %s", path, err.Error()), false)
}

func NewConfigInvalidError(details string) *StandardError {
	return newError(ErrCodeConfigInvalid, "Configuration is invalid", details, false)
}

// NewRoutingFailedError creates a retryable routing error.
func NewRoutingFailedError(err error) *StandardError {
	return newError(ErrCodeRoutingFailed, "Tool routing request failed", err.Error(), true)
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM call timeout",
		fmt.Sprintf("LLM call exceeded %s timeout", timeout), true)
}

// NewLLMSynthesisFailedError creates a retryable LLM synthesis error.
func NewLLMSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeLLMSynthesisFailed, "LLM synthesis API error", err.Error(), true)
}

func NewAnalyticalQueryFailedError(err error) *StandardError {
	return newError(ErrCodeAnalyticalQueryFailed, "Analytical query failed", err.Error(), true)
}

// NewEntityNotFoundError creates a non-retryable lookup error.
func NewEntityNotFoundError(name string) *StandardError {
	return newError(ErrCodeEntityNotFound, "Company not found",
		fmt.Sprintf("companyName: %s", name), false)
}

func NewEmbeddingFailedError(err error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, "Embedding request failed", err.Error(), true)
}

func NewInvalidToolArgumentsError(tool, details string) *StandardError {
	return newError(ErrCodeInvalidToolArguments, "Tool arguments failed validation",
		fmt.Sprintf("tool: %s, %s", tool, details), false)
}

func NewUnknownToolError(tool string) *StandardError {
	return newError(ErrCodeUnknownTool, "Unknown tool requested",
		fmt.Sprintf("tool: %s", tool), false)
}

func NewMemoryReadFailedError(err error) *StandardError {
	return newError(ErrCodeMemoryReadFailed, "Conversation memory read failed", err.Error(), false)
}

func NewMemoryWriteFailedError(err error) *StandardError {
	return newError(ErrCodeMemoryWriteFailed, "Conversation memory write failed", err.Error(), false)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR",
		fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR",
		fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRoutingFailed,
		ErrCodeLLMSynthesisFailed,
		ErrCodeAnalyticalQueryFailed,
		ErrCodeEmbeddingFailed:
		return 3

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err into a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATASET") || strings.Contains(codeStr, "CONFIG"):
		return "STARTUP"
	case strings.Contains(codeStr, "MEMORY"):
		return "MEMORY"
	case strings.Contains(codeStr, "ROUTING") || strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "EMBEDDING"):
		return "AI"
	case strings.Contains(codeStr, "ANALYTICAL"):
		return "ANALYTICS"
	case strings.Contains(codeStr, "TOOL") || strings.Contains(codeStr, "ENTITY"):
		return "TOOLS"
	default:
		return "OTHER"
	}
}
