package multiagent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var errRefused = errors.New("dial tcp 127.0.0.1:8001: connect: connection refused")

// fakeTransport serves canned cards per URL and counts fetches.
type fakeTransport struct {
	mu      sync.Mutex
	cards   map[string]domain.AgentDescriptor
	errs    map[string]error
	fetches map[string]int
	clients map[string]*fakePeer
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		cards:   make(map[string]domain.AgentDescriptor),
		errs:    make(map[string]error),
		fetches: make(map[string]int),
		clients: make(map[string]*fakePeer),
	}
}

func (f *fakeTransport) addCard(url, name string, skills ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := domain.AgentDescriptor{Name: name, Description: name + " description", URL: url, Skills: []domain.Skill{}}
	for _, s := range skills {
		d.Skills = append(d.Skills, domain.Skill{ID: s, Name: s})
	}
	f.cards[url] = d
}

func (f *fakeTransport) FetchCard(ctx context.Context, url string) (domain.AgentDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[url]++
	if err := f.errs[url]; err != nil {
		return domain.AgentDescriptor{}, err
	}
	d, ok := f.cards[url]
	if !ok {
		return domain.AgentDescriptor{}, errRefused
	}
	return d, nil
}

func (f *fakeTransport) Peer(url string) domain.PeerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.clients[url]
	if !ok {
		p = &fakePeer{}
		f.clients[url] = p
	}
	return p
}

// fakePeer answers SendMessage with a canned reply or error.
type fakePeer struct {
	mu        sync.Mutex
	reply     domain.PeerReply
	err       error
	block     bool
	calls     int
	contextID string
	text      string
}

func (p *fakePeer) SendMessage(ctx context.Context, text, contextID string) (domain.PeerReply, error) {
	p.mu.Lock()
	p.calls++
	p.text, p.contextID = text, contextID
	reply, err, block := p.reply, p.err, p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.PeerReply{}, ctx.Err()
	}
	return reply, err
}
