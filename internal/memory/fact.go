package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category groups facts by the kind of information they carry. Each
// category has its own storage weight and a confidence floor below
// which extracted facts are discarded.
type Category string

const (
	CategoryPersonalInfo       Category = "personal_info"
	CategoryPreferences        Category = "preferences"
	CategoryHealthInfo         Category = "health_info"
	CategoryPurchaseHistory    Category = "purchase_history"
	CategoryCommunicationStyle Category = "communication_style"
	CategoryContext            Category = "context"
	CategoryLifestyle          Category = "lifestyle"
)

type categoryConfig struct {
	Weight              float64
	ConfidenceThreshold float64
}

var categoryConfigs = map[Category]categoryConfig{
	CategoryPersonalInfo:       {Weight: 1.0, ConfidenceThreshold: 0.8},
	CategoryPreferences:        {Weight: 0.9, ConfidenceThreshold: 0.7},
	CategoryHealthInfo:         {Weight: 1.0, ConfidenceThreshold: 0.9},
	CategoryPurchaseHistory:    {Weight: 0.8, ConfidenceThreshold: 0.8},
	CategoryCommunicationStyle: {Weight: 0.6, ConfidenceThreshold: 0.6},
	CategoryContext:            {Weight: 0.5, ConfidenceThreshold: 0.5},
	CategoryLifestyle:          {Weight: 0.7, ConfidenceThreshold: 0.6},
}

func configFor(category Category) categoryConfig {
	if cfg, ok := categoryConfigs[category]; ok {
		return cfg
	}
	return categoryConfig{Weight: 0.5, ConfidenceThreshold: 0.5}
}

// Candidate is a fact proposed by an extractor before threshold
// filtering and storage.
type Candidate struct {
	Category          Category
	Key               string
	Value             any
	Confidence        float64
	NeedsConfirmation bool
}

func encodeValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode fact value: %w", err)
	}
	return string(raw), nil
}

func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// FactView is the read-side shape of a stored fact.
type FactView struct {
	Value             any
	Confidence        float64
	Weight            float64
	NeedsConfirmation bool
	UpdatedAt         time.Time
}

// Context is everything known about a user, grouped by category.
type Context map[Category]map[string]FactView

func (c Context) get(category Category, key string) (FactView, bool) {
	facts, ok := c[category]
	if !ok {
		return FactView{}, false
	}
	v, ok := facts[key]
	return v, ok
}

func (c Context) has(category Category, key string) bool {
	_, ok := c.get(category, key)
	return ok
}
