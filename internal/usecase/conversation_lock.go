package usecase

import (
	"context"
	"fmt"
	"sync"
)

// ConversationLocker serializes tasks that target the same conversation id.
// Tasks on different conversations never contend.
type ConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

// convLock is a one-slot semaphore; holding the token means holding the lock.
type convLock struct {
	token    chan struct{}
	refCount int
}

// NewConversationLocker creates a new locker.
func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{locks: make(map[string]*convLock)}
}

// Lock blocks until the conversation's lock is held or ctx is done. The
// returned unlock func must be called exactly once.
func (l *ConversationLocker) Lock(ctx context.Context, conversationID string) (unlock func(), err error) {
	l.mu.Lock()
	cl, ok := l.locks[conversationID]
	if !ok {
		cl = &convLock{token: make(chan struct{}, 1)}
		l.locks[conversationID] = cl
	}
	cl.refCount++
	l.mu.Unlock()

	select {
	case cl.token <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-cl.token
				l.release(conversationID, cl)
			})
		}, nil
	case <-ctx.Done():
		l.release(conversationID, cl)
		return nil, fmt.Errorf("conversation lock %q: %w", conversationID, ctx.Err())
	}
}

func (l *ConversationLocker) release(id string, cl *convLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refCount--
	if cl.refCount == 0 {
		delete(l.locks, id)
	}
}

// ActiveCount returns the number of conversations with held or pending
// locks.
func (l *ConversationLocker) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
