package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes turns per session inside one process.
type sessionLocks struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{slots: make(map[uuid.UUID]*slot)}
}

// lock waits for the session to be free. The returned func releases it and must be called exactly once.
func (l *sessionLocks) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.release(id, s)
		}, nil
	case <-ctx.Done():
		l.release(id, s)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) release(id uuid.UUID, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}
