package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glowvn/glowchat/internal/store"
)

// FactStore is the slice of the storage layer the engine needs.
type FactStore interface {
	CreateFact(ctx context.Context, fact store.MemoryFact) (store.MemoryFact, error)
	GetFact(ctx context.Context, userID, category, key string) (store.MemoryFact, error)
	ListFacts(ctx context.Context, userID string) ([]store.MemoryFact, error)
	UpdateFact(ctx context.Context, fact store.MemoryFact) (store.MemoryFact, error)
}

// Engine extracts facts from conversation text and maintains them in
// the store with per-category confidence gating and weights.
type Engine struct {
	store      FactStore
	extractors []Extractor
	logger     *log.Logger
}

func NewEngine(facts FactStore, logger *log.Logger) *Engine {
	return &Engine{
		store:      facts,
		extractors: defaultExtractors(),
		logger:     logger.With("component", "memory"),
	}
}

// Extract runs every extractor over the text. It never fails and does
// not touch the store.
func (e *Engine) Extract(text string) []Candidate {
	var out []Candidate
	for _, ex := range e.extractors {
		out = append(out, ex.Extract(text)...)
	}
	return out
}

// Record persists a candidate. A candidate whose key already exists is
// merged into the stored fact; a new candidate below its category's
// confidence threshold is dropped. The bool reports whether anything
// was written.
func (e *Engine) Record(ctx context.Context, userID string, cand Candidate, source string) (store.MemoryFact, bool, error) {
	existing, err := e.store.GetFact(ctx, userID, string(cand.Category), cand.Key)
	switch {
	case err == nil:
		merged, err := e.merge(ctx, existing, cand, source)
		if err != nil {
			return store.MemoryFact{}, false, err
		}
		return merged, true, nil
	case errors.Is(err, store.ErrNotFound):
		return e.create(ctx, userID, cand, source)
	default:
		return store.MemoryFact{}, false, fmt.Errorf("look up fact: %w", err)
	}
}

func (e *Engine) create(ctx context.Context, userID string, cand Candidate, source string) (store.MemoryFact, bool, error) {
	cfg := configFor(cand.Category)
	if cand.Confidence < cfg.ConfidenceThreshold {
		e.logger.Debug("fact confidence below threshold",
			"category", cand.Category, "key", cand.Key,
			"confidence", cand.Confidence, "threshold", cfg.ConfidenceThreshold)
		return store.MemoryFact{}, false, nil
	}

	value, err := encodeValue(cand.Value)
	if err != nil {
		return store.MemoryFact{}, false, err
	}

	// Health facts are never stored pre-confirmed, whatever the
	// candidate says.
	needsConfirmation := cand.NeedsConfirmation
	if cand.Category == CategoryHealthInfo {
		needsConfirmation = true
	}

	fact, err := e.store.CreateFact(ctx, store.MemoryFact{
		UserID:            userID,
		Category:          string(cand.Category),
		Key:               cand.Key,
		Value:             value,
		Confidence:        cand.Confidence,
		Weight:            cfg.Weight,
		Source:            source,
		NeedsConfirmation: needsConfirmation,
	})
	if err != nil {
		return store.MemoryFact{}, false, fmt.Errorf("create fact: %w", err)
	}

	e.logger.Info("fact stored", "user", userID, "category", cand.Category, "key", cand.Key)
	return fact, true, nil
}

// merge folds a new observation into an existing fact: the value is
// replaced, confidence is averaged with the observation, and weight
// grows by 0.1 up to 1.0.
func (e *Engine) merge(ctx context.Context, existing store.MemoryFact, cand Candidate, source string) (store.MemoryFact, error) {
	value, err := encodeValue(cand.Value)
	if err != nil {
		return store.MemoryFact{}, err
	}

	existing.Value = value
	existing.Confidence = (existing.Confidence + cand.Confidence) / 2
	existing.Weight = min(existing.Weight+0.1, 1.0)
	existing.Source = source

	updated, err := e.store.UpdateFact(ctx, existing)
	if err != nil {
		return store.MemoryFact{}, fmt.Errorf("update fact: %w", err)
	}

	e.logger.Info("fact updated", "user", existing.UserID,
		"category", existing.Category, "key", existing.Key,
		"confidence", updated.Confidence)
	return updated, nil
}

// Confirm resolves a needs_confirmation flag after the user verified
// the fact, bumping both confidence and weight by 0.2 (capped at 1.0).
func (e *Engine) Confirm(ctx context.Context, userID string, category Category, key string) (store.MemoryFact, error) {
	fact, err := e.store.GetFact(ctx, userID, string(category), key)
	if err != nil {
		return store.MemoryFact{}, fmt.Errorf("look up fact: %w", err)
	}
	if !fact.NeedsConfirmation {
		return fact, nil
	}

	nowAt := time.Now().UTC()
	fact.NeedsConfirmation = false
	fact.ConfirmedAt = &nowAt
	fact.Confidence = min(fact.Confidence+0.2, 1.0)
	fact.Weight = min(fact.Weight+0.2, 1.0)

	updated, err := e.store.UpdateFact(ctx, fact)
	if err != nil {
		return store.MemoryFact{}, fmt.Errorf("confirm fact: %w", err)
	}

	e.logger.Info("fact confirmed", "user", userID, "category", category, "key", key)
	return updated, nil
}

// ProcessInteraction extracts every candidate from the text and
// records the ones that survive gating. Extraction problems never
// break the conversation flow; storage errors on individual facts are
// logged and skipped.
func (e *Engine) ProcessInteraction(ctx context.Context, userID, text, source string) []store.MemoryFact {
	var stored []store.MemoryFact
	for _, cand := range e.Extract(text) {
		fact, ok, err := e.Record(ctx, userID, cand, source)
		if err != nil {
			e.logger.Error("record fact", "category", cand.Category, "key", cand.Key, "err", err)
			continue
		}
		if ok {
			stored = append(stored, fact)
		}
	}
	if len(stored) > 0 {
		e.logger.Info("memories extracted", "user", userID, "count", len(stored))
	}
	return stored
}

// UserContext loads everything known about a user, grouped by
// category. An unknown user yields an empty context, not an error.
func (e *Engine) UserContext(ctx context.Context, userID string) (Context, error) {
	facts, err := e.store.ListFacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}

	out := Context{
		CategoryPersonalInfo:       {},
		CategoryPreferences:        {},
		CategoryHealthInfo:         {},
		CategoryPurchaseHistory:    {},
		CategoryCommunicationStyle: {},
		CategoryContext:            {},
		CategoryLifestyle:          {},
	}
	for _, f := range facts {
		cat := Category(f.Category)
		if _, ok := out[cat]; !ok {
			continue
		}
		out[cat][f.Key] = FactView{
			Value:             decodeValue(f.Value),
			Confidence:        f.Confidence,
			Weight:            f.Weight,
			NeedsConfirmation: f.NeedsConfirmation,
			UpdatedAt:         f.UpdatedAt,
		}
	}
	return out, nil
}
