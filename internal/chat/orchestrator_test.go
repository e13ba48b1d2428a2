package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futureecho/futureecho/internal/activity"
	"github.com/futureecho/futureecho/internal/generation"
	"github.com/futureecho/futureecho/internal/memory"
	"github.com/futureecho/futureecho/internal/prompt"
)

type downRetriever struct{}

func (downRetriever) RetrieveDefault(context.Context, uuid.UUID, string) ([]memory.RetrievedMemory, error) {
	return nil, errBoom
}

type downSummaries struct{}

func (downSummaries) MoodTrend(context.Context, uuid.UUID) (string, error)    { return "", errBoom }
func (downSummaries) GoalsSummary(context.Context, uuid.UUID) (string, error) { return "", errBoom }

type fixture struct {
	repo     *memRepo
	gen      *scriptedGenerator
	recorder *recordedEvents
	orch     *Orchestrator
	owner    uuid.UUID
}

func newFixture(chunks ...generation.Chunk) *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		gen:      &scriptedGenerator{chunks: chunks},
		recorder: &recordedEvents{},
		owner:    uuid.New(),
	}
	f.orch = NewOrchestrator(f.repo, NewRepoHistory(f.repo), &fakeComposer{}, f.gen, f.recorder, 20, time.Minute)
	return f
}

func (f *fixture) run(t *testing.T, message string, sessionID *uuid.UUID) []Event {
	t.Helper()
	events, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: f.owner, Message: message, SessionID: sessionID})
	require.NoError(t, err)
	return collect(events)
}

func TestRunTurn_NewSessionStreamsAndPersists(t *testing.T) {
	f := newFixture(text("Hel"), text("lo"), done)

	events := f.run(t, "How was last spring?", nil)

	require.Len(t, events, 3)
	assert.Equal(t, EventChunk, events[0].Type)
	assert.Equal(t, "Hel", events[0].Text)
	assert.Equal(t, "lo", events[1].Text)
	assert.Equal(t, EventDone, events[2].Type)

	sessionID := events[0].SessionID
	for _, e := range events {
		assert.Equal(t, sessionID, e.SessionID)
	}

	session, _ := f.repo.GetSession(context.Background(), f.owner, sessionID)
	require.NotNil(t, session)
	assert.Equal(t, "How was last spring?", session.Title)

	msgs, _ := f.repo.ListMessages(context.Background(), sessionID)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "How was last spring?", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, msgs[1].ID, events[2].MessageID)

	req := f.gen.lastRequest()
	assert.Equal(t, "INSTRUCTION for How was last spring?", req.SystemInstruction)
	assert.Empty(t, req.History)
	assert.Equal(t, "How was last spring?", req.Message)

	assert.Equal(t, []string{activity.TypeChatTurnCompleted}, f.recorder.types())
}

func TestRunTurn_TitleTruncated(t *testing.T) {
	f := newFixture(text("ok"), done)
	msg := strings.Repeat("ä", 60)

	events := f.run(t, msg, nil)
	session, _ := f.repo.GetSession(context.Background(), f.owner, events[0].SessionID)
	require.NotNil(t, session)
	assert.Equal(t, strings.Repeat("ä", 50)+"…", session.Title)
}

func TestRunTurn_ExistingSessionUsesHistory(t *testing.T) {
	f := newFixture(text("first reply"), done)
	events := f.run(t, "first", nil)
	sessionID := events[0].SessionID

	f.gen.chunks = []generation.Chunk{text("second reply"), done}
	events = f.run(t, "second", &sessionID)
	assert.Equal(t, sessionID, events[0].SessionID)

	req := f.gen.lastRequest()
	assert.Equal(t, []generation.Turn{
		{Role: generation.RoleUser, Text: "first"},
		{Role: generation.RoleAssistant, Text: "first reply"},
	}, req.History)
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}, f.repo.roles(sessionID))
}

func TestRunTurn_HistoryIsBounded(t *testing.T) {
	f := newFixture(text("ok"), done)
	events := f.run(t, "start", nil)
	sessionID := events[0].SessionID
	for i := 0; i < 12; i++ {
		f.run(t, fmt.Sprintf("message %d", i), &sessionID)
	}

	f.run(t, "last", &sessionID)
	req := f.gen.lastRequest()
	require.Len(t, req.History, 20)
	assert.Equal(t, "message 2", req.History[0].Text)
	assert.Equal(t, "ok", req.History[19].Text)
}

func TestRunTurn_ForeignSessionStartsNewOne(t *testing.T) {
	f := newFixture(text("ok"), done)
	events := f.run(t, "mine", nil)
	victim := events[0].SessionID

	intruder := uuid.New()
	stream, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: intruder, Message: "hijack", SessionID: &victim})
	require.NoError(t, err)
	got := collect(stream)

	assert.NotEqual(t, victim, got[0].SessionID)
	assert.Len(t, f.repo.roles(victim), 2)
}

func TestRunTurn_MidStreamErrorPersistsNoReply(t *testing.T) {
	f := newFixture(text("partial"), generation.Chunk{Err: errBoom})

	events := f.run(t, "hello", nil)
	require.Len(t, events, 2)
	assert.Equal(t, EventChunk, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.ErrorIs(t, events[1].Err, ErrGenerationFailed)
	assert.ErrorIs(t, events[1].Err, errBoom)

	assert.Equal(t, []Role{RoleUser}, f.repo.roles(events[0].SessionID))
	assert.Equal(t, []string{activity.TypeChatTurnFailed}, f.recorder.types())
}

func TestRunTurn_StreamClosedWithoutDone(t *testing.T) {
	f := newFixture(text("a"), text("b"))

	events := f.run(t, "hello", nil)
	require.Len(t, events, 3)
	assert.Equal(t, EventError, events[2].Type)
	assert.ErrorIs(t, events[2].Err, ErrGenerationFailed)
	assert.Equal(t, []Role{RoleUser}, f.repo.roles(events[0].SessionID))
}

func TestRunTurn_EmptyReplyIsFailure(t *testing.T) {
	f := newFixture(done)

	events := f.run(t, "hello", nil)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, []Role{RoleUser}, f.repo.roles(events[0].SessionID))
}

func TestRunTurn_ReplyNotSaved(t *testing.T) {
	f := newFixture(text("hi"), done)
	f.repo.appendErr = errBoom

	events := f.run(t, "hello", nil)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.ErrorIs(t, last.Err, ErrReplyNotSaved)
}

func TestRunTurn_InvalidMessage(t *testing.T) {
	f := newFixture(done)

	for _, msg := range []string{"", "   \n", strings.Repeat("x", MaxMessageLength+1)} {
		_, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: f.owner, Message: msg})
		assert.ErrorIs(t, err, ErrInvalidMessage)
	}
	assert.Empty(t, f.repo.sessions)
	assert.Empty(t, f.repo.messages)
}

func TestRunTurn_ComposeCancelled(t *testing.T) {
	f := newFixture(done)
	f.orch.composer = &fakeComposer{err: context.Canceled}

	_, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: f.owner, Message: "hello"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.repo.messages, 1, "user message is stored before the prompt is built")
}

func TestRunTurn_SessionNotStartedLeavesNothing(t *testing.T) {
	f := newFixture(text("ok"), done)
	f.repo.startErr = errBoom

	_, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: f.owner, Message: "hello"})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.repo.sessions)
	assert.Empty(t, f.repo.messages)
	assert.Empty(t, f.gen.reqs)
}

func TestRunTurn_ContextSourcesDownStillAnswers(t *testing.T) {
	f := newFixture(text("I remember"), done)
	f.orch.composer = prompt.NewComposer(downRetriever{}, downSummaries{}, 0)

	events := f.run(t, "What did I write about spring?", nil)
	require.Len(t, events, 2)
	assert.Equal(t, EventDone, events[1].Type)

	instruction := f.gen.lastRequest().SystemInstruction
	assert.Contains(t, instruction, prompt.NoMemories)
	assert.Contains(t, instruction, prompt.MoodUnavailable)
	assert.Contains(t, instruction, prompt.GoalsUnavailable)
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, f.repo.roles(events[0].SessionID))
}

func TestRunTurn_CallerCancelKeepsGenerating(t *testing.T) {
	f := newFixture(text("one "), text("two"), done)
	gate := make(chan struct{})
	f.gen.gate = gate

	ctx, cancel := context.WithCancel(context.Background())
	events, err := f.orch.RunTurn(ctx, TurnRequest{OwnerID: f.owner, Message: "hello"})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, "one ", first.Text)

	cancel()
	close(gate)

	require.Eventually(t, func() bool {
		return len(f.repo.roles(first.SessionID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs, _ := f.repo.ListMessages(context.Background(), first.SessionID)
	assert.Equal(t, "one two", msgs[1].Content)

	for range events {
	}
}

func TestRunTurn_SameSessionTurnsAreSerialized(t *testing.T) {
	f := newFixture(text("first"), done)
	events := f.run(t, "start", nil)
	sessionID := events[0].SessionID

	gate := make(chan struct{})
	f.gen.chunks = []generation.Chunk{text("a"), text("b"), done}
	f.gen.gate = gate

	turn1, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: f.owner, Message: "one", SessionID: &sessionID})
	require.NoError(t, err)
	<-turn1

	started := make(chan (<-chan Event), 1)
	go func() {
		turn2, err := f.orch.RunTurn(context.Background(), TurnRequest{OwnerID: f.owner, Message: "two", SessionID: &sessionID})
		if err == nil {
			started <- turn2
		}
	}()

	select {
	case <-started:
		t.Fatal("second turn started while the first was streaming")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	collect(turn1)

	select {
	case turn2 := <-started:
		collect(turn2)
	case <-time.After(2 * time.Second):
		t.Fatal("second turn never started")
	}

	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant, RoleUser, RoleAssistant}, f.repo.roles(sessionID))
}

func TestSessionLocks_CancelWhileWaiting(t *testing.T) {
	locks := newSessionLocks()
	id := uuid.New()

	unlock, err := locks.lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, locks.slots)
}
