package chat

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/activity"
	"github.com/futureecho/futureecho/internal/generation"
)

type memRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]Session
	messages  []Message
	appendErr error
	startErr  error
}

func newMemRepo() *memRepo { return &memRepo{sessions: map[uuid.UUID]Session{}} }

func (m *memRepo) GetSession(_ context.Context, ownerID, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, nil
	}
	return &s, nil
}

func (m *memRepo) StartSession(_ context.Context, s *Session, first *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.sessions[s.ID] = *s
	m.messages = append(m.messages, *first)
	return nil
}

func (m *memRepo) AppendMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil && msg.Role == RoleAssistant {
		return m.appendErr
	}
	m.messages = append(m.messages, *msg)
	s := m.sessions[msg.SessionID]
	s.UpdatedAt = msg.CreatedAt
	m.sessions[msg.SessionID] = s
	return nil
}

func (m *memRepo) ListMessages(_ context.Context, sessionID uuid.UUID) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Message{}
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memRepo) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	all, _ := m.ListMessages(ctx, sessionID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *memRepo) ListSessions(_ context.Context, ownerID uuid.UUID) ([]SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SessionSummary{}
	for _, s := range m.sessions {
		if s.OwnerID != ownerID {
			continue
		}
		sum := SessionSummary{Session: s}
		for _, msg := range m.messages {
			if msg.SessionID == s.ID {
				sum.MessageCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memRepo) DeleteSession(_ context.Context, ownerID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return false, nil
	}
	delete(m.sessions, id)
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.SessionID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return true, nil
}

func (m *memRepo) roles(sessionID uuid.UUID) []Role {
	msgs, _ := m.ListMessages(context.Background(), sessionID)
	out := make([]Role, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Role)
	}
	return out
}

type fakeComposer struct {
	err error
}

func (f *fakeComposer) Compose(ctx context.Context, _ uuid.UUID, message string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "INSTRUCTION for " + message, nil
}

// scriptedGenerator replays chunks. When gate is set it pauses after the first
// chunk until gate is closed.
type scriptedGenerator struct {
	mu     sync.Mutex
	chunks []generation.Chunk
	gate   chan struct{}
	reqs   []generation.Request
}

func (g *scriptedGenerator) Stream(ctx context.Context, req generation.Request) <-chan generation.Chunk {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	chunks, gate := g.chunks, g.gate
	g.mu.Unlock()

	out := make(chan generation.Chunk)
	go func() {
		defer close(out)
		for i, c := range chunks {
			if i == 1 && gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (g *scriptedGenerator) lastRequest() generation.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

func text(s string) generation.Chunk { return generation.Chunk{Text: s} }

var done = generation.Chunk{Done: true}

type recordedEvents struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recordedEvents) Record(_ context.Context, e activity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")

func collect(events <-chan Event) []Event {
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}
