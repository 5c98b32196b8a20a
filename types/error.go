package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Graph structure error codes
const (
	ErrUnknownNodeType ErrorCode = "UNKNOWN_NODE_TYPE"
	ErrNodeLimit       ErrorCode = "NODE_LIMIT"
	ErrRequiredNode    ErrorCode = "REQUIRED_NODE"
	ErrNodeNotFound    ErrorCode = "NODE_NOT_FOUND"
	ErrPointNotFound   ErrorCode = "POINT_NOT_FOUND"
	ErrPortNotFound    ErrorCode = "PORT_NOT_FOUND"
	ErrInvalidGraph    ErrorCode = "INVALID_GRAPH"
)

// Evaluation and execution error codes
const (
	ErrEvaluationCycle  ErrorCode = "EVALUATION_CYCLE"
	ErrMissingReference ErrorCode = "MISSING_REFERENCE"
	ErrExecutionFailed  ErrorCode = "EXECUTION_FAILED"
	ErrFlowBusy         ErrorCode = "FLOW_BUSY"
)

// Blackboard error codes
const (
	ErrVariableNotFound ErrorCode = "VARIABLE_NOT_FOUND"
	ErrTypeMismatch     ErrorCode = "TYPE_MISMATCH"
)

// Storage error codes
const (
	ErrStorage     ErrorCode = "STORAGE"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrInvalidArgs ErrorCode = "INVALID_ARGUMENT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Node    string    `json:"node,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Node != "" {
		msg = fmt.Sprintf("%s (node %s)", e.Message, e.Node)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithNode records the node the error originated from.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
