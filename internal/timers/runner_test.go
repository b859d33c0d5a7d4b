package timers

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glowvn/glowchat/internal/bus"
	"github.com/glowvn/glowchat/internal/store"
)

type fakeTimerStore struct {
	timers        map[string]store.Timer
	conversations map[string]store.Conversation
	dueErr        error
}

func newFakeTimerStore() *fakeTimerStore {
	return &fakeTimerStore{
		timers:        make(map[string]store.Timer),
		conversations: make(map[string]store.Conversation),
	}
}

func (f *fakeTimerStore) DueTimers(ctx context.Context, now time.Time, limit int) ([]store.Timer, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	var due []store.Timer
	for _, t := range f.timers {
		if t.Status == store.TimerPending && !t.RunAt.After(now) {
			due = append(due, t)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (f *fakeTimerStore) UpdateTimer(ctx context.Context, t store.Timer) (store.Timer, error) {
	f.timers[t.ID] = t
	return t, nil
}

func (f *fakeTimerStore) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}
	return conv, nil
}

type fakeComposer struct {
	text  string
	err   error
	calls int
}

func (f *fakeComposer) FollowupMessage(ctx context.Context, userID, conversationID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func newTestRunner(st *fakeTimerStore, composer *fakeComposer, b *bus.MessageBus) *Runner {
	logger := log.New(io.Discard)
	return NewRunner(st, composer, b, time.Minute, logger)
}

func pendingTimer(id, userID, convID string, runAt time.Time) store.Timer {
	return store.Timer{
		ID:             id,
		UserID:         userID,
		ConversationID: convID,
		Kind:           "followup",
		RunAt:          runAt,
		Status:         store.TimerPending,
		MaxAttempts:    3,
	}
}

func TestTickDeliversFollowup(t *testing.T) {
	st := newFakeTimerStore()
	st.conversations["c1"] = store.Conversation{
		ID: "c1", UserID: "u1", Channel: "telegram", ChatID: "42", State: store.ConversationActive,
	}
	st.timers["t1"] = pendingTimer("t1", "u1", "c1", time.Now().UTC().Add(-time.Minute))

	composer := &fakeComposer{text: "Chị ơi, em hỏi thăm về đơn serum hôm trước ạ."}
	b := bus.NewMessageBus(10)

	var sent []bus.OutboundMessage
	b.SubscribeOutbound("telegram", func(msg bus.OutboundMessage) {
		sent = append(sent, msg)
	})

	r := newTestRunner(st, composer, b)
	r.Tick(context.Background())

	if composer.calls != 1 {
		t.Fatalf("composer calls = %d, want 1", composer.calls)
	}
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sent))
	}
	if sent[0].ChatID != "42" || sent[0].Content != composer.text {
		t.Errorf("outbound = %+v", sent[0])
	}

	updated := st.timers["t1"]
	if updated.Status != store.TimerCompleted {
		t.Errorf("status = %q, want completed", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("completedAt should be set")
	}
	if updated.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", updated.Attempts)
	}
}

func TestTickRetriesThenFails(t *testing.T) {
	st := newFakeTimerStore()
	st.conversations["c1"] = store.Conversation{
		ID: "c1", Channel: "telegram", ChatID: "42", State: store.ConversationActive,
	}
	st.timers["t1"] = pendingTimer("t1", "u1", "c1", time.Now().UTC().Add(-time.Minute))

	composer := &fakeComposer{err: fmt.Errorf("model unavailable")}
	b := bus.NewMessageBus(10)
	r := newTestRunner(st, composer, b)

	// First two attempts reschedule.
	for i := 1; i <= 2; i++ {
		r.Tick(context.Background())
		got := st.timers["t1"]
		if got.Status != store.TimerPending {
			t.Fatalf("attempt %d: status = %q, want pending", i, got.Status)
		}
		if got.Attempts != i {
			t.Fatalf("attempt %d: attempts = %d", i, got.Attempts)
		}
		if got.LastError == "" {
			t.Fatalf("attempt %d: lastError should be set", i)
		}
		// Pull the retry back into the due window.
		got.RunAt = time.Now().UTC().Add(-time.Second)
		st.timers["t1"] = got
	}

	// Third attempt exhausts MaxAttempts.
	r.Tick(context.Background())
	got := st.timers["t1"]
	if got.Status != store.TimerFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts)
	}
}

func TestTickSkipsHandedOffConversation(t *testing.T) {
	st := newFakeTimerStore()
	st.conversations["c1"] = store.Conversation{
		ID: "c1", Channel: "telegram", ChatID: "42", State: store.ConversationHandoff,
	}
	st.timers["t1"] = pendingTimer("t1", "u1", "c1", time.Now().UTC().Add(-time.Minute))

	composer := &fakeComposer{text: "should not be used"}
	b := bus.NewMessageBus(10)

	var sent []bus.OutboundMessage
	b.SubscribeOutbound("telegram", func(msg bus.OutboundMessage) {
		sent = append(sent, msg)
	})

	r := newTestRunner(st, composer, b)
	r.Tick(context.Background())

	if composer.calls != 0 {
		t.Errorf("composer should not run for handed-off conversation")
	}
	if len(sent) != 0 {
		t.Errorf("no message should be sent, got %d", len(sent))
	}
	// The timer still completes; the conversation simply was not nudged.
	if st.timers["t1"].Status != store.TimerCompleted {
		t.Errorf("status = %q, want completed", st.timers["t1"].Status)
	}
}

func TestTickUnknownKindFails(t *testing.T) {
	st := newFakeTimerStore()
	tm := pendingTimer("t1", "u1", "c1", time.Now().UTC().Add(-time.Minute))
	tm.Kind = "mystery"
	tm.MaxAttempts = 1
	st.timers["t1"] = tm

	r := newTestRunner(st, &fakeComposer{}, bus.NewMessageBus(10))
	r.Tick(context.Background())

	if st.timers["t1"].Status != store.TimerFailed {
		t.Errorf("status = %q, want failed", st.timers["t1"].Status)
	}
}

func TestTickFutureTimerNotRun(t *testing.T) {
	st := newFakeTimerStore()
	st.timers["t1"] = pendingTimer("t1", "u1", "c1", time.Now().UTC().Add(time.Hour))

	composer := &fakeComposer{text: "later"}
	r := newTestRunner(st, composer, bus.NewMessageBus(10))
	r.Tick(context.Background())

	if composer.calls != 0 {
		t.Error("future timer should not fire")
	}
	if st.timers["t1"].Status != store.TimerPending {
		t.Errorf("status = %q, want pending", st.timers["t1"].Status)
	}
}

func TestStartStop(t *testing.T) {
	st := newFakeTimerStore()
	r := newTestRunner(st, &fakeComposer{}, bus.NewMessageBus(10))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
}
