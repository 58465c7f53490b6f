package domain

import (
	"context"
	"errors"
	"fmt"
)

// Category sentinels. Typed errors below wrap one of these so callers can
// match with errors.Is regardless of detail.
var (
	ErrDiscovery            = fmt.Errorf("agent discovery failed")
	ErrNotFound             = fmt.Errorf("not found")
	ErrToolServerStart      = fmt.Errorf("tool server failed to start")
	ErrToolInvocation       = fmt.Errorf("tool invocation failed")
	ErrTimeout              = fmt.Errorf("operation timed out")
	ErrDecisionLoopExceeded = fmt.Errorf("decision loop exceeded iteration cap")
	ErrDelegationFailed     = fmt.Errorf("delegation failed")
	ErrInvalidInput         = fmt.Errorf("invalid input")
	ErrInvalidTransition    = fmt.Errorf("invalid task state transition")
	ErrConnectionClosed     = fmt.Errorf("connection closed")
	ErrCircuitOpen          = fmt.Errorf("circuit open")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Register")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// DiscoveryError reports a peer whose capability card could not be fetched
// or was malformed.
type DiscoveryError struct {
	URL string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.URL, e.Err)
}

// Unwrap exposes both the category sentinel and the cause.
func (e *DiscoveryError) Unwrap() []error { return []error{ErrDiscovery, e.Err} }

// NotFoundError reports an agent name or URL with no registry entry.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %q: %v", e.Key, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ToolErrorKind distinguishes the causes of a ToolInvocationError.
type ToolErrorKind string

const (
	ToolErrUnknownTool ToolErrorKind = "unknown-tool"
	ToolErrBadArgs     ToolErrorKind = "bad-args"
	ToolErrApp         ToolErrorKind = "app-error"
	ToolErrTransport   ToolErrorKind = "transport"
)

// ToolInvocationError is returned by tool invocation for every failure mode.
type ToolInvocationError struct {
	Kind ToolErrorKind
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %q (%s): %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolInvocationError) Unwrap() []error { return []error{ErrToolInvocation, e.Err} }

// DelegationErrorKind distinguishes the causes of a failed delegation.
type DelegationErrorKind string

const (
	DelegationTransport  DelegationErrorKind = "transport"
	DelegationPeerFailed DelegationErrorKind = "peer-failed"
	DelegationTimeout    DelegationErrorKind = "timeout"
	DelegationNotFound   DelegationErrorKind = "not-found"
)

// DelegationError is DelegationFailed{peer status or transport cause}.
type DelegationError struct {
	Agent string
	Kind  DelegationErrorKind
	Err   error
}

func (e *DelegationError) Error() string {
	return fmt.Sprintf("delegate to %q (%s): %v", e.Agent, e.Kind, e.Err)
}

func (e *DelegationError) Unwrap() []error { return []error{ErrDelegationFailed, e.Err} }

// ErrorCode is a machine-parseable error category for monitoring and the wire.
type ErrorCode string

const (
	CodeUnknown              ErrorCode = "InternalError"
	CodeDiscovery            ErrorCode = "DiscoveryError"
	CodeNotFound             ErrorCode = "NotFoundError"
	CodeToolServerStart      ErrorCode = "ToolServerStartError"
	CodeToolInvocation       ErrorCode = "ToolInvocationError"
	CodeTimeout              ErrorCode = "Timeout"
	CodeDecisionLoopExceeded ErrorCode = "DecisionLoopExceeded"
	CodeDelegationFailed     ErrorCode = "DelegationFailed"
	CodeInvalidInput         ErrorCode = "InvalidInput"
)

// codeOrder is checked front to back; the more specific kinds come first so
// that a delegation which timed out still reports DelegationFailed.
var codeOrder = []struct {
	err  error
	code ErrorCode
}{
	{ErrDecisionLoopExceeded, CodeDecisionLoopExceeded},
	{ErrDelegationFailed, CodeDelegationFailed},
	{ErrToolServerStart, CodeToolServerStart},
	{ErrToolInvocation, CodeToolInvocation},
	{ErrDiscovery, CodeDiscovery},
	{ErrNotFound, CodeNotFound},
	{ErrTimeout, CodeTimeout},
	{context.DeadlineExceeded, CodeTimeout},
	{ErrInvalidInput, CodeInvalidInput},
}

// ErrorCodeOf returns the error kind for err, or CodeUnknown.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, c := range codeOrder {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}

// IsTimeout reports whether err is a deadline or timeout failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
