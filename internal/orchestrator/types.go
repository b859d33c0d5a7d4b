// Package orchestrator analyzes inbound messages, routes them to one
// of the fixed conversational agents, generates the reply, and paces
// it with human-like typing.
package orchestrator

import (
	"github.com/glowvn/glowchat/internal/timing"
)

// Agent identifies which response strategy handles a message. Exactly
// one agent is chosen per message.
type Agent string

const (
	AgentDiscovery       Agent = "discovery"
	AgentCustomerService Agent = "customer_service"
	AgentSales           Agent = "sales"
	AgentHandoffHuman    Agent = "handoff_human"
	AgentFollowup        Agent = "followup"
	AgentGeneralChat     Agent = "general_chat"
)

// Message types the analyzer classifies into.
const (
	TypeGreeting       = "greeting"
	TypeQuestion       = "question"
	TypeComplaint      = "complaint"
	TypePurchaseIntent = "purchase_intent"
	TypePersonalInfo   = "personal_info"
	TypeFollowup       = "followup"
	TypeGoodbye        = "goodbye"
)

// Analysis is the structured read on one inbound message. It is
// recomputed per message and never persisted directly.
type Analysis struct {
	Type          string   `json:"type"`
	Intent        string   `json:"intent"`
	Sentiment     string   `json:"sentiment"`
	Urgency       string   `json:"urgency"`
	Entities      []string `json:"entities"`
	RequiresHuman bool     `json:"requires_human"`
}

// defaultAnalysis is what the analyzer falls back to when the model
// call or its JSON output fails. Routing must never block on analysis.
func defaultAnalysis() Analysis {
	return Analysis{
		Type:          TypeQuestion,
		Intent:        "general_inquiry",
		Sentiment:     "neutral",
		Urgency:       "low",
		Entities:      []string{},
		RequiresHuman: false,
	}
}

// Response is the fully assembled result of processing one message.
// Confidence is reported on the message_complete stream event.
type Response struct {
	Text       string
	Agent      Agent
	Analysis   Analysis
	Timing     timing.Profile
	Confidence float64
	Fallback   bool
	Metadata   map[string]any
}
