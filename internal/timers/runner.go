// Package timers drains due followup timers on a fixed schedule and
// turns them into proactive outbound messages.
package timers

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	rcron "github.com/robfig/cron/v3"

	"github.com/glowvn/glowchat/internal/bus"
	"github.com/glowvn/glowchat/internal/store"
)

const (
	DefaultInterval  = 30 * time.Second
	DefaultBatchSize = 20

	// retryBackoff is how far a failed timer is pushed before the
	// next attempt.
	retryBackoff = 5 * time.Minute
)

// TimerStore is the slice of the storage layer the runner needs.
type TimerStore interface {
	DueTimers(ctx context.Context, now time.Time, limit int) ([]store.Timer, error)
	UpdateTimer(ctx context.Context, t store.Timer) (store.Timer, error)
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
}

// Composer produces the message a fired timer sends.
type Composer interface {
	FollowupMessage(ctx context.Context, userID, conversationID string) (string, error)
}

type Runner struct {
	store     TimerStore
	composer  Composer
	bus       *bus.MessageBus
	interval  time.Duration
	batchSize int
	cron      *rcron.Cron
	logger    *log.Logger
}

func NewRunner(st TimerStore, composer Composer, b *bus.MessageBus, interval time.Duration, logger *log.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		store:     st,
		composer:  composer,
		bus:       b,
		interval:  interval,
		batchSize: DefaultBatchSize,
		logger:    logger.With("component", "timers"),
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.cron = rcron.New()
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		r.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("register timer poll: %w", err)
	}
	r.cron.Start()
	r.logger.Info("timer runner started", "interval", r.interval)
	return nil
}

func (r *Runner) Stop() {
	if r.cron != nil {
		stopCtx := r.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			r.logger.Warn("stop timeout waiting for running timers")
		}
	}
	r.logger.Info("timer runner stopped")
}

// Tick drains one batch of due timers. Each timer is isolated: one
// failing never blocks the rest of the batch.
func (r *Runner) Tick(ctx context.Context) {
	due, err := r.store.DueTimers(ctx, time.Now().UTC(), r.batchSize)
	if err != nil {
		r.logger.Error("due timer query failed", "err", err)
		return
	}

	for _, t := range due {
		if err := r.runTimer(ctx, t); err != nil {
			r.logger.Error("timer failed", "timer", t.ID, "kind", t.Kind, "attempt", t.Attempts+1, "err", err)
		}
	}
}

func (r *Runner) runTimer(ctx context.Context, t store.Timer) error {
	now := time.Now().UTC()
	t.Status = store.TimerRunning
	t.Attempts++
	t.LastAttemptAt = &now
	t, err := r.store.UpdateTimer(ctx, t)
	if err != nil {
		return fmt.Errorf("mark timer running: %w", err)
	}

	runErr := r.execute(ctx, t)

	if runErr == nil {
		done := time.Now().UTC()
		t.Status = store.TimerCompleted
		t.CompletedAt = &done
		t.LastError = ""
		if _, err := r.store.UpdateTimer(ctx, t); err != nil {
			return fmt.Errorf("mark timer completed: %w", err)
		}
		r.logger.Info("timer completed", "timer", t.ID, "kind", t.Kind)
		return nil
	}

	t.LastError = runErr.Error()
	if t.Attempts >= t.MaxAttempts {
		t.Status = store.TimerFailed
	} else {
		t.Status = store.TimerPending
		t.RunAt = time.Now().UTC().Add(retryBackoff)
	}
	if _, err := r.store.UpdateTimer(ctx, t); err != nil {
		return fmt.Errorf("record timer failure (%v): %w", runErr, err)
	}
	return runErr
}

func (r *Runner) execute(ctx context.Context, t store.Timer) error {
	switch t.Kind {
	case "followup":
		return r.runFollowup(ctx, t)
	default:
		return fmt.Errorf("unknown timer kind %q", t.Kind)
	}
}

func (r *Runner) runFollowup(ctx context.Context, t store.Timer) error {
	conv, err := r.store.GetConversation(ctx, t.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	// A conversation already with a human is not ours to nudge.
	if conv.State == store.ConversationHandoff {
		return nil
	}

	text, err := r.composer.FollowupMessage(ctx, t.UserID, t.ConversationID)
	if err != nil {
		return err
	}

	r.bus.Dispatch(bus.OutboundMessage{
		Channel: conv.Channel,
		ChatID:  conv.ChatID,
		Content: text,
		Metadata: map[string]any{
			"agent":     "followup",
			"proactive": true,
		},
	})
	return nil
}
