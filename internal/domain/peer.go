package domain

import "context"

// PeerReply is the terminal state of a task executed by a peer agent.
type PeerReply struct {
	TaskID    string
	ContextID string
	State     TaskState
	Text      string
}

// PeerClient sends one message to one peer agent and waits for the peer's
// task to reach a terminal state.
type PeerClient interface {
	SendMessage(ctx context.Context, text, contextID string) (PeerReply, error)
}

// PeerTransport discovers peers and hands out clients for them.
type PeerTransport interface {
	// FetchCard reads the capability card published by the agent at baseURL.
	// Fields absent from the card are left zero (Skills stays nil).
	FetchCard(ctx context.Context, baseURL string) (AgentDescriptor, error)
	// Peer returns a client bound to the agent at baseURL.
	Peer(baseURL string) PeerClient
}
