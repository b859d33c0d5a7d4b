package orchestrator

import (
	"strings"

	"github.com/glowvn/glowchat/internal/store"
)

// RouteInput is everything routing looks at. State is reconstructed
// per call from the conversation and profile, so routing is a pure
// function of this struct.
type RouteInput struct {
	Analysis          Analysis
	ConversationState store.ConversationState
	PersonalInfoCount int
	LastAgent         Agent
}

type routingRule struct {
	name     string
	evaluate func(RouteInput) (Agent, bool)
}

// Purchase-signal tokens checked against the intent text.
var purchaseTokens = []string{"mua", "giá"}

// routingRules is evaluated top-down; the first rule that matches
// decides the agent. Order is load-bearing.
var routingRules = []routingRule{
	{
		name: "human escalation",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.Analysis.RequiresHuman || in.Analysis.Urgency == "high" {
				return AgentHandoffHuman, true
			}
			return "", false
		},
	},
	{
		name: "active discovery",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.ConversationState == store.ConversationDiscovery {
				return AgentDiscovery, true
			}
			return "", false
		},
	},
	{
		name: "greeting",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.Analysis.Type != TypeGreeting {
				return "", false
			}
			if in.PersonalInfoCount < 3 {
				return AgentDiscovery, true
			}
			return AgentGeneralChat, true
		},
	},
	{
		name: "complaint",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.Analysis.Type == TypeComplaint {
				return AgentCustomerService, true
			}
			return "", false
		},
	},
	{
		name: "purchase intent",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.Analysis.Type == TypePurchaseIntent {
				return AgentSales, true
			}
			intent := strings.ToLower(in.Analysis.Intent)
			for _, token := range purchaseTokens {
				if strings.Contains(intent, token) {
					return AgentSales, true
				}
			}
			return "", false
		},
	},
	{
		name: "personal info",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.Analysis.Type == TypePersonalInfo {
				return AgentDiscovery, true
			}
			return "", false
		},
	},
	{
		name: "followup",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.Analysis.Type == TypeFollowup {
				return AgentFollowup, true
			}
			return "", false
		},
	},
	{
		name: "history default",
		evaluate: func(in RouteInput) (Agent, bool) {
			if in.LastAgent == AgentDiscovery {
				return AgentDiscovery, true
			}
			return AgentGeneralChat, true
		},
	},
}

// Route maps one message to one agent. Total: the final rule always
// matches.
func Route(in RouteInput) Agent {
	for _, rule := range routingRules {
		if agent, ok := rule.evaluate(in); ok {
			return agent
		}
	}
	return AgentGeneralChat
}
