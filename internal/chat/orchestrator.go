package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/activity"
	"github.com/futureecho/futureecho/internal/generation"
	"github.com/futureecho/futureecho/internal/metrics"
	"github.com/futureecho/futureecho/internal/prompt"
)

const (
	DefaultHistoryLimit = 20
	DefaultTurnTimeout  = 2 * time.Minute

	eventBuffer = 16
)

// Composer builds the system instruction of a turn.
type Composer interface {
	Compose(ctx context.Context, ownerID uuid.UUID, message string) (string, error)
}

// SessionStore is the part of Repository a turn needs.
type SessionStore interface {
	GetSession(ctx context.Context, ownerID, id uuid.UUID) (*Session, error)
	StartSession(ctx context.Context, s *Session, first *Message) error
	AppendMessage(ctx context.Context, m *Message) error
}

// Orchestrator runs one chat turn: it resolves the session, stores the user
// message, builds the prompt and streams the reply.
type Orchestrator struct {
	sessions     SessionStore
	history      History
	composer     Composer
	generator    generation.Generator
	recorder     activity.Recorder
	historyLimit int
	turnTimeout  time.Duration
	locks        *sessionLocks
	now          func() time.Time
}

func NewOrchestrator(sessions SessionStore, history History, composer Composer, generator generation.Generator, recorder activity.Recorder, historyLimit int, turnTimeout time.Duration) *Orchestrator {
	if historyLimit < 0 {
		historyLimit = DefaultHistoryLimit
	}
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	return &Orchestrator{
		sessions:     sessions,
		history:      history,
		composer:     composer,
		generator:    generator,
		recorder:     recorder,
		historyLimit: historyLimit,
		turnTimeout:  turnTimeout,
		locks:        newSessionLocks(),
		now:          time.Now,
	}
}

// RunTurn returns once the user message is stored and the prompt is built.
// Failures up to that point are returned directly; after it every outcome
// arrives on the channel, which is closed after the terminal event.
//
// If ctx is cancelled while streaming, forwarding stops but generation runs
// to completion on a detached context bounded by the turn timeout, and the
// reply is still stored.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Message) == "" || utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return nil, ErrInvalidMessage
	}

	session, err := o.findSession(ctx, req)
	if err != nil {
		return nil, err
	}
	fresh := session == nil
	if fresh {
		session = o.newSession(req)
	}

	unlock, err := o.locks.lock(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	userMsg := Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      RoleUser,
		Content:   req.Message,
		CreatedAt: session.UpdatedAt,
	}

	var history []Message
	if fresh {
		// Stored together with its first message, so a turn that fails before
		// this point leaves no empty session behind.
		if err := o.sessions.StartSession(ctx, session, &userMsg); err != nil {
			unlock()
			return nil, fmt.Errorf("starting session: %w", err)
		}
		o.history.Append(ctx, userMsg)
	} else {
		history, err = o.history.Recent(ctx, session.ID, o.historyLimit)
		if err != nil {
			unlock()
			return nil, fmt.Errorf("loading history: %w", err)
		}
		userMsg.CreatedAt = o.now().UTC()
		if err := o.persist(ctx, &userMsg); err != nil {
			unlock()
			return nil, fmt.Errorf("saving user message: %w", err)
		}
	}

	instruction, err := o.composer.Compose(ctx, req.OwnerID, req.Message)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	events := make(chan Event, eventBuffer)
	go func() {
		defer close(events)
		defer unlock()
		o.stream(ctx, session, generation.Request{
			SystemInstruction: instruction,
			History:           toTurns(history),
			Message:           req.Message,
		}, events)
	}()
	return events, nil
}

// findSession returns the caller's session, or nil when none was given or it is
// missing or belongs to someone else.
func (o *Orchestrator) findSession(ctx context.Context, req TurnRequest) (*Session, error) {
	if req.SessionID == nil {
		return nil, nil
	}
	s, err := o.sessions.GetSession(ctx, req.OwnerID, *req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return s, nil
}

func (o *Orchestrator) newSession(req TurnRequest) *Session {
	now := o.now().UTC()
	return &Session{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Title:     prompt.Excerpt(strings.TrimSpace(req.Message), titleLength),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (o *Orchestrator) stream(ctx context.Context, session *Session, req generation.Request, events chan<- Event) {
	start := time.Now()
	// Generation and persistence outlive the caller.
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.turnTimeout)
	defer cancel()

	forwarding := true
	emit := func(e Event) {
		if !forwarding {
			return
		}
		select {
		case events <- e:
		case <-ctx.Done():
			forwarding = false
			slog.Info("chat: caller went away, finishing turn in background", "session_id", session.ID)
		}
	}

	var reply strings.Builder
	for chunk := range o.generator.Stream(work, req) {
		switch {
		case chunk.Err != nil:
			o.fail(work, session, fmt.Errorf("%w: %w", ErrGenerationFailed, chunk.Err), emit)
			return

		case chunk.Done:
			if reply.Len() == 0 {
				o.fail(work, session, fmt.Errorf("%w: empty reply", ErrGenerationFailed), emit)
				return
			}
			msg := Message{
				ID:        uuid.New(),
				SessionID: session.ID,
				Role:      RoleAssistant,
				Content:   reply.String(),
				CreatedAt: o.now().UTC(),
			}
			if err := o.persist(work, &msg); err != nil {
				o.fail(work, session, fmt.Errorf("%w: %w", ErrReplyNotSaved, err), emit)
				return
			}

			metrics.ChatTurnsTotal.WithLabelValues("completed").Inc()
			metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
			o.recorder.Record(work, activity.Event{
				OwnerID:      session.OwnerID,
				Type:         activity.TypeChatTurnCompleted,
				Severity:     activity.SeverityInfo,
				ResourceType: "chat_session",
				ResourceID:   session.ID.String(),
			})
			emit(Event{Type: EventDone, SessionID: session.ID, MessageID: msg.ID})
			return

		default:
			if chunk.Text == "" {
				continue
			}
			reply.WriteString(chunk.Text)
			metrics.ChatStreamChunksTotal.Inc()
			emit(Event{Type: EventChunk, Text: chunk.Text, SessionID: session.ID})
		}
	}

	o.fail(work, session, fmt.Errorf("%w: stream ended without completion", ErrGenerationFailed), emit)
}

// fail reports a turn that produced no stored reply. The user message stays.
func (o *Orchestrator) fail(ctx context.Context, session *Session, err error, emit func(Event)) {
	outcome := "failed"
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = "timeout"
	}
	metrics.ChatTurnsTotal.WithLabelValues(outcome).Inc()
	slog.Error("chat: turn failed", "error", err, "session_id", session.ID, "owner_id", session.OwnerID)

	o.recorder.Record(ctx, activity.Event{
		OwnerID:      session.OwnerID,
		Type:         activity.TypeChatTurnFailed,
		Severity:     activity.SeverityError,
		ResourceType: "chat_session",
		ResourceID:   session.ID.String(),
		Details:      err.Error(),
	})
	emit(Event{Type: EventError, SessionID: session.ID, Err: err})
}

func (o *Orchestrator) persist(ctx context.Context, m *Message) error {
	if err := o.sessions.AppendMessage(ctx, m); err != nil {
		return err
	}
	o.history.Append(ctx, *m)
	return nil
}

func toTurns(msgs []Message) []generation.Turn {
	turns := make([]generation.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := generation.RoleUser
		if m.Role == RoleAssistant {
			role = generation.RoleAssistant
		}
		turns = append(turns, generation.Turn{Role: role, Text: m.Content})
	}
	return turns
}
