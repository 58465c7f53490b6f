package usecase

import (
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

// conversation is the ordered turn history of one conversation id.
type conversation struct {
	mu        sync.RWMutex
	turns     []domain.Turn
	createdAt time.Time
	updatedAt time.Time
}

func (c *conversation) append(t domain.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	c.updatedAt = t.Timestamp
}

func (c *conversation) snapshot() []domain.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]domain.Turn, len(c.turns))
	copy(cp, c.turns)
	return cp
}

func (c *conversation) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// ConversationStore maps conversation ids to append-only turn histories.
// Entries are created lazily on first append and live for the lifetime of
// the process.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*conversation
	now   func() time.Time
}

// NewConversationStore creates an empty in-memory store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		convs: make(map[string]*conversation),
		now:   time.Now,
	}
}

// Append adds a turn to the end of the conversation, creating it if needed.
// A zero Timestamp is set to the current time.
func (s *ConversationStore) Append(id string, turn domain.Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	s.getOrCreate(id, turn.Timestamp).append(turn)
}

// History returns a copy of the conversation's turns. An unknown id yields an
// empty, non-nil slice.
func (s *ConversationStore) History(id string) []domain.Turn {
	s.mu.RLock()
	c, ok := s.convs[id]
	s.mu.RUnlock()
	if !ok {
		return []domain.Turn{}
	}
	return c.snapshot()
}

// Len returns the number of turns recorded for id.
func (s *ConversationStore) Len(id string) int {
	s.mu.RLock()
	c, ok := s.convs[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return c.len()
}

// IDs lists known conversation ids, oldest first.
func (s *ConversationStore) IDs() []string {
	s.mu.RLock()
	type entry struct {
		id      string
		created time.Time
	}
	entries := make([]entry, 0, len(s.convs))
	for id, c := range s.convs {
		entries = append(entries, entry{id, c.createdAt})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			return entries[i].id < entries[j].id
		}
		return entries[i].created.Before(entries[j].created)
	})
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

func (s *ConversationStore) getOrCreate(id string, at time.Time) *conversation {
	s.mu.RLock()
	c, ok := s.convs[id]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		return c
	}
	c = &conversation{createdAt: at, updatedAt: at}
	s.convs[id] = c
	return c
}

// NewID returns a fresh ULID, used for conversation and task ids.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
