package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeValidation indicates a malformed record or key. Never retried.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeNodeUnavailable indicates a single node call failed or timed out.
	CodeNodeUnavailable ErrorCode = "NODE_UNAVAILABLE"

	// CodeAllNodesUnavailable indicates every node in a read's failover order failed.
	CodeAllNodesUnavailable ErrorCode = "ALL_NODES_UNAVAILABLE"

	// CodeQueuePersistence indicates a recovery task could not be persisted.
	CodeQueuePersistence ErrorCode = "QUEUE_PERSISTENCE"
)

// Attempt records one failed node call of a failover read.
type Attempt struct {
	Node NodeID
	Err  error
}

// Error is the typed error returned by the engine and its node clients.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node identifies the affected node, if any.
	Node NodeID

	// Attempts lists the failed calls of a failover read, in order.
	Attempts []Attempt

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Node != "" {
		fmt.Fprintf(&b, " (node=%s)", e.Node)
	}
	if len(e.Attempts) > 0 {
		parts := make([]string, len(e.Attempts))
		for i, a := range e.Attempts {
			parts[i] = fmt.Sprintf("%s: %v", a.Node, a.Err)
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, "; "))
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates an Error for a malformed record or key.
func NewValidationError(message string, err error) *Error {
	return &Error{Code: CodeValidation, Message: message, Err: err}
}

// NewNodeUnavailable creates an Error for a failed call against node.
func NewNodeUnavailable(node NodeID, err error) *Error {
	return &Error{
		Code:    CodeNodeUnavailable,
		Message: "node call failed",
		Node:    node,
		Err:     err,
	}
}

// NewAllNodesUnavailable creates an Error for a read whose every attempt failed.
func NewAllNodesUnavailable(attempts []Attempt) *Error {
	return &Error{
		Code:     CodeAllNodesUnavailable,
		Message:  fmt.Sprintf("all %d nodes in failover order failed", len(attempts)),
		Attempts: attempts,
	}
}

// NewQueuePersistenceError creates an Error for a recovery task that could
// not be persisted for target.
func NewQueuePersistenceError(target NodeID, err error) *Error {
	return &Error{
		Code:    CodeQueuePersistence,
		Message: "recovery task could not be persisted",
		Node:    target,
		Err:     err,
	}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsNodeUnavailable reports whether err is a single-node failure.
func IsNodeUnavailable(err error) bool {
	return hasCode(err, CodeNodeUnavailable)
}

// IsAllNodesUnavailable reports whether err is an exhausted failover read.
func IsAllNodesUnavailable(err error) bool {
	return hasCode(err, CodeAllNodesUnavailable)
}

// IsQueuePersistence reports whether err is a queue persistence failure.
func IsQueuePersistence(err error) bool {
	return hasCode(err, CodeQueuePersistence)
}

// hasCode uses errors.As to handle wrapped errors.
func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there
// is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
