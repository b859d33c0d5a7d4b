package memory

import (
	"context"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/glowvn/glowchat/internal/store"
)

type fakeFactStore struct {
	facts  map[string]store.MemoryFact
	nextID int
}

func newFakeFactStore() *fakeFactStore {
	return &fakeFactStore{facts: map[string]store.MemoryFact{}}
}

func factKey(userID, category, key string) string {
	return userID + "|" + category + "|" + key
}

func (f *fakeFactStore) CreateFact(_ context.Context, fact store.MemoryFact) (store.MemoryFact, error) {
	k := factKey(fact.UserID, fact.Category, fact.Key)
	if _, ok := f.facts[k]; ok {
		return store.MemoryFact{}, fmt.Errorf("fact exists: %s", k)
	}
	f.nextID++
	fact.ID = fmt.Sprintf("fact-%d", f.nextID)
	f.facts[k] = fact
	return fact, nil
}

func (f *fakeFactStore) GetFact(_ context.Context, userID, category, key string) (store.MemoryFact, error) {
	fact, ok := f.facts[factKey(userID, category, key)]
	if !ok {
		return store.MemoryFact{}, store.ErrNotFound
	}
	return fact, nil
}

func (f *fakeFactStore) ListFacts(_ context.Context, userID string) ([]store.MemoryFact, error) {
	var out []store.MemoryFact
	for _, fact := range f.facts {
		if fact.UserID == userID {
			out = append(out, fact)
		}
	}
	return out, nil
}

func (f *fakeFactStore) UpdateFact(_ context.Context, fact store.MemoryFact) (store.MemoryFact, error) {
	k := factKey(fact.UserID, fact.Category, fact.Key)
	if _, ok := f.facts[k]; !ok {
		return store.MemoryFact{}, store.ErrNotFound
	}
	f.facts[k] = fact
	return fact, nil
}

func newTestEngine() (*Engine, *fakeFactStore) {
	fs := newFakeFactStore()
	return NewEngine(fs, log.New(io.Discard)), fs
}

func TestProcessInteractionPregnancyAndAllergy(t *testing.T) {
	e, _ := newTestEngine()

	stored := e.ProcessInteraction(context.Background(), "u1",
		"Tôi có thai và bị dị ứng với nước hoa", "conversation")

	byKey := map[string]store.MemoryFact{}
	for _, f := range stored {
		byKey[f.Category+"."+f.Key] = f
	}

	preg, ok := byKey["health_info.pregnancy_status"]
	if !ok {
		t.Fatal("pregnancy_status not stored")
	}
	if preg.Confidence != 0.9 || !preg.NeedsConfirmation {
		t.Errorf("pregnancy fact = conf %.2f confirm %v, want 0.9 true",
			preg.Confidence, preg.NeedsConfirmation)
	}

	allergy, ok := byKey["health_info.allergies"]
	if !ok {
		t.Fatal("allergies not stored")
	}
	if allergy.Confidence != 0.9 || !allergy.NeedsConfirmation {
		t.Errorf("allergy fact = conf %.2f confirm %v, want 0.9 true",
			allergy.Confidence, allergy.NeedsConfirmation)
	}
}

func TestRecordRejectsBelowThreshold(t *testing.T) {
	e, fs := newTestEngine()

	// skin_type candidates carry 0.8 confidence, below the 0.9
	// health_info floor.
	_, ok, err := e.Record(context.Background(), "u1", Candidate{
		Category: CategoryHealthInfo, Key: "skin_type",
		Value: "dry", Confidence: 0.8,
	}, "conversation")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if ok {
		t.Error("fact below category threshold should be dropped")
	}
	if len(fs.facts) != 0 {
		t.Errorf("store has %d facts, want 0", len(fs.facts))
	}
}

func TestRecordForcesHealthConfirmation(t *testing.T) {
	e, _ := newTestEngine()

	fact, ok, err := e.Record(context.Background(), "u1", Candidate{
		Category: CategoryHealthInfo, Key: "pregnancy_status",
		Value: true, Confidence: 0.9,
	}, "conversation")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if !ok {
		t.Fatal("fact at threshold should be stored")
	}
	if !fact.NeedsConfirmation {
		t.Error("health fact should always be stored needing confirmation")
	}
}

func TestRecordMergesExistingFact(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	first, ok, err := e.Record(ctx, "u1", Candidate{
		Category: CategoryPersonalInfo, Key: "name",
		Value: "Lan", Confidence: 0.9,
	}, "conversation")
	if err != nil || !ok {
		t.Fatalf("first Record = ok %v err %v", ok, err)
	}
	if first.Weight != 1.0 {
		t.Errorf("initial weight = %.2f, want category weight 1.0", first.Weight)
	}

	second, ok, err := e.Record(ctx, "u1", Candidate{
		Category: CategoryPersonalInfo, Key: "name",
		Value: "Lan Anh", Confidence: 0.7,
	}, "update")
	if err != nil || !ok {
		t.Fatalf("second Record = ok %v err %v", ok, err)
	}
	// Merge averages confidence rather than keeping the max, so a
	// weaker observation pulls it down.
	if math.Abs(second.Confidence-0.8) > 1e-9 {
		t.Errorf("merged confidence = %.3f, want 0.8", second.Confidence)
	}
	if second.Weight != 1.0 {
		t.Errorf("merged weight = %.2f, want clamped 1.0", second.Weight)
	}
	if second.Value != `"Lan Anh"` {
		t.Errorf("merged value = %s", second.Value)
	}
	// The merge path skips the threshold gate: 0.7 observations on an
	// existing personal_info fact still land.
	if second.Source != "update" {
		t.Errorf("source = %s, want update", second.Source)
	}
}

func TestConfirmBumpsAndClamps(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	_, _, err := e.Record(ctx, "u1", Candidate{
		Category: CategoryHealthInfo, Key: "pregnancy_status",
		Value: true, Confidence: 0.9, NeedsConfirmation: true,
	}, "conversation")
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}

	confirmed, err := e.Confirm(ctx, "u1", CategoryHealthInfo, "pregnancy_status")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if confirmed.NeedsConfirmation {
		t.Error("confirmed fact still flagged")
	}
	if confirmed.ConfirmedAt == nil {
		t.Error("confirmed_at not set")
	}
	if confirmed.Confidence != 1.0 || confirmed.Weight != 1.0 {
		t.Errorf("confirmed = conf %.2f weight %.2f, want both clamped at 1.0",
			confirmed.Confidence, confirmed.Weight)
	}

	// Confirming twice is a no-op.
	again, err := e.Confirm(ctx, "u1", CategoryHealthInfo, "pregnancy_status")
	if err != nil {
		t.Fatalf("second Confirm error: %v", err)
	}
	if again.Confidence != 1.0 {
		t.Errorf("second confirm changed confidence to %.2f", again.Confidence)
	}
}

func TestUserContextGroupsByCategory(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	e.ProcessInteraction(ctx, "u1", "Mình là Hoa, 25 tuổi, thích serum", "conversation")

	uc, err := e.UserContext(ctx, "u1")
	if err != nil {
		t.Fatalf("UserContext error: %v", err)
	}

	if v, ok := uc.get(CategoryPersonalInfo, "name"); !ok || v.Value != "Hoa" {
		t.Errorf("name = %v, want Hoa", v.Value)
	}
	if v, ok := uc.get(CategoryPersonalInfo, "age"); !ok || v.Value != float64(25) {
		t.Errorf("age = %v, want 25", v.Value)
	}
	if !uc.has(CategoryPreferences, "product_skincare") {
		t.Error("product_skincare preference missing")
	}

	empty, err := e.UserContext(ctx, "nobody")
	if err != nil {
		t.Fatalf("UserContext for unknown user error: %v", err)
	}
	if len(empty[CategoryPersonalInfo]) != 0 {
		t.Error("unknown user should have empty context")
	}
}
