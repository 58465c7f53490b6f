package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Registry.Resolve", ErrNotFound, "agent 'writer'")
	want := "Registry.Resolve: agent 'writer': not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Executor.Execute", ErrDecisionLoopExceeded, "")
	want := "Executor.Execute: decision loop exceeded iteration cap"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Manager.Connect", ErrToolServerStart, "uvx ddgs-mcp")
	if !errors.Is(err, ErrToolServerStart) {
		t.Error("errors.Is should match ErrToolServerStart")
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
		code     ErrorCode
	}{
		{"discovery", &DiscoveryError{URL: "http://x", Err: cause}, ErrDiscovery, CodeDiscovery},
		{"not found", &NotFoundError{Key: "Writer Agent"}, ErrNotFound, CodeNotFound},
		{"tool", &ToolInvocationError{Kind: ToolErrBadArgs, Tool: "write_file", Err: cause}, ErrToolInvocation, CodeToolInvocation},
		{"delegation", &DelegationError{Agent: "Research Agent", Kind: DelegationTransport, Err: cause}, ErrDelegationFailed, CodeDelegationFailed},
		{"loop", NewDomainError("Executor.Execute", ErrDecisionLoopExceeded, ""), ErrDecisionLoopExceeded, CodeDecisionLoopExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.code, ErrorCodeOf(tt.err))
		})
	}
}

func TestTypedErrorsKeepCause(t *testing.T) {
	err := &ToolInvocationError{Kind: ToolErrTransport, Tool: "search", Err: context.DeadlineExceeded}
	assert.True(t, IsTimeout(err))

	var tie *ToolInvocationError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &tie))
	assert.Equal(t, ToolErrTransport, tie.Kind)
}

func TestErrorCodeOfPrefersDelegationOverTimeout(t *testing.T) {
	err := &DelegationError{Agent: "Writer Agent", Kind: DelegationTimeout, Err: ErrTimeout}
	assert.Equal(t, CodeDelegationFailed, ErrorCodeOf(err))
	assert.True(t, IsTimeout(err))
}

func TestErrorCodeOfUnknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(fmt.Errorf("boom")))
	assert.Equal(t, CodeTimeout, ErrorCodeOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
}
