package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glowvn/glowchat/internal/genai"
	"github.com/glowvn/glowchat/internal/memory"
	"github.com/glowvn/glowchat/internal/store"
	"github.com/glowvn/glowchat/internal/timing"
)

const DefaultFollowupDelay = 24 * time.Hour

// ConversationStore is the slice of the storage layer the
// orchestrator needs.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
	SetConversationState(ctx context.Context, id string, state store.ConversationState) error
	CreateMessage(ctx context.Context, msg store.Message) (store.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
	CreateHandoff(ctx context.Context, h store.Handoff) (store.Handoff, error)
	CreateTimer(ctx context.Context, t store.Timer) (store.Timer, error)
}

// KnowledgeProvider supplies retrieved product/policy context for
// sales and customer-service prompts. May be nil when no knowledge
// base is configured.
type KnowledgeProvider interface {
	ContextForQuery(ctx context.Context, query string, maxLength int) string
}

// Orchestrator runs the full pipeline for one inbound message:
// analyze, route, generate, remember, pace.
type Orchestrator struct {
	store         ConversationStore
	memory        *memory.Engine
	analyzer      *Analyzer
	generator     genai.Generator
	knowledge     KnowledgeProvider
	timing        *timing.Engine
	followupDelay time.Duration
	logger        *log.Logger
}

type Options struct {
	// FollowupDelay is how long after a sales conversation the
	// followup timer fires. Zero means DefaultFollowupDelay.
	FollowupDelay time.Duration
}

func New(st ConversationStore, mem *memory.Engine, generator genai.Generator,
	knowledge KnowledgeProvider, te *timing.Engine, opts Options, logger *log.Logger) *Orchestrator {

	followupDelay := opts.FollowupDelay
	if followupDelay <= 0 {
		followupDelay = DefaultFollowupDelay
	}

	return &Orchestrator{
		store:         st,
		memory:        mem,
		analyzer:      NewAnalyzer(generator, logger),
		generator:     generator,
		knowledge:     knowledge,
		timing:        te,
		followupDelay: followupDelay,
		logger:        logger.With("component", "orchestrator"),
	}
}

// Process handles one inbound message end to end. Generation failures
// degrade to a paced apology; persistence failures are returned to the
// caller.
func (o *Orchestrator) Process(ctx context.Context, userID, conversationID, message string, meta map[string]any) (Response, error) {
	o.logger.Info("processing message",
		"user", userID, "conversation", conversationID, "length", len(message))

	analysis := o.analyzer.Analyze(ctx, message, meta)

	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return Response{}, fmt.Errorf("load conversation: %w", err)
	}

	recent, err := o.store.RecentMessages(ctx, conversationID, 5)
	if err != nil {
		return Response{}, fmt.Errorf("load recent messages: %w", err)
	}

	userCtx, err := o.memory.UserContext(ctx, userID)
	if err != nil {
		return Response{}, fmt.Errorf("load user context: %w", err)
	}

	agent := Route(RouteInput{
		Analysis:          analysis,
		ConversationState: conv.State,
		PersonalInfoCount: len(userCtx[memory.CategoryPersonalInfo]),
		LastAgent:         lastAgent(recent),
	})

	memoryContext := memory.ProfileSummary(userCtx)

	ragContext := ""
	if o.knowledge != nil && (agent == AgentCustomerService || agent == AgentSales) {
		ragContext = o.knowledge.ContextForQuery(ctx, message, 0)
	}

	resp, err := o.runAgent(ctx, agent, userID, conversationID, message, memoryContext, ragContext, analysis, userCtx)
	if err != nil {
		return Response{}, err
	}

	// The user message itself feeds the fact store regardless of
	// which agent replied.
	o.memory.ProcessInteraction(ctx, userID, message, "conversation_"+conversationID)

	resp.Analysis = analysis
	if resp.Fallback {
		resp.Timing = o.timing.Simulate(resp.Text, "error_handler")
	} else {
		resp.Timing = o.timing.Simulate(resp.Text, string(resp.Agent))
	}

	if err := o.persistTurn(ctx, conversationID, message, resp, analysis); err != nil {
		return Response{}, err
	}

	if resp.Agent == AgentSales && !resp.Fallback {
		o.scheduleFollowup(ctx, userID, conversationID)
	}

	return resp, nil
}

func (o *Orchestrator) runAgent(ctx context.Context, agent Agent, userID, conversationID, message,
	memoryContext, ragContext string, analysis Analysis, userCtx memory.Context) (Response, error) {

	switch agent {
	case AgentHandoffHuman:
		return o.runHandoff(ctx, userID, conversationID, analysis)
	case AgentDiscovery:
		return o.runDiscovery(ctx, message, memoryContext, userCtx)
	case AgentCustomerService:
		return o.generateReply(ctx, agent,
			renderCustomerServicePrompt(message, memoryContext, ragContext, analysis),
			map[string]any{"resolution_suggested": true, "sentiment": analysis.Sentiment})
	case AgentSales:
		return o.generateReply(ctx, agent,
			renderSalesPrompt(message, memoryContext, ragContext, analysis, strings.Join(analysis.Entities, ", ")),
			map[string]any{"sales_opportunity": true, "products_mentioned": analysis.Entities})
	case AgentFollowup:
		return o.generateReply(ctx, agent,
			renderFollowupPrompt(message, memoryContext, analysis),
			map[string]any{"followup_completed": true})
	default:
		return o.generateReply(ctx, AgentGeneralChat,
			renderGeneralChatPrompt(message, memoryContext, ragContext, analysis),
			map[string]any{"casual_conversation": true})
	}
}

func (o *Orchestrator) runHandoff(ctx context.Context, userID, conversationID string, analysis Analysis) (Response, error) {
	reason := analysis.Intent
	if reason == "" {
		reason = "User request"
	}
	urgency := analysis.Urgency
	if urgency == "" {
		urgency = "medium"
	}

	analysisJSON, _ := json.Marshal(analysis)
	if _, err := o.store.CreateHandoff(ctx, store.Handoff{
		UserID:         userID,
		ConversationID: conversationID,
		Reason:         reason,
		Urgency:        urgency,
		Context:        string(analysisJSON),
	}); err != nil {
		o.logger.Error("handoff creation failed",
			"user", userID, "conversation", conversationID, "reason", reason, "err", err)
		return Response{}, fmt.Errorf("create handoff: %w", err)
	}

	if err := o.store.SetConversationState(ctx, conversationID, store.ConversationHandoff); err != nil {
		return Response{}, fmt.Errorf("mark conversation handed off: %w", err)
	}

	o.logger.Info("handoff requested", "user", userID, "conversation", conversationID, "urgency", urgency)

	return Response{
		Text:       handoffReply,
		Agent:      AgentHandoffHuman,
		Confidence: 1.0,
		Metadata: map[string]any{
			"handoff_requested":   true,
			"estimated_wait_time": handoffWaitWindow,
		},
	}, nil
}

func (o *Orchestrator) runDiscovery(ctx context.Context, message, memoryContext string, userCtx memory.Context) (Response, error) {
	resp, err := o.generateReply(ctx, AgentDiscovery,
		renderDiscoveryPrompt(message, memoryContext), nil)
	if err != nil {
		return Response{}, err
	}

	completeness := memory.CompletenessScore(userCtx)
	resp.Metadata = map[string]any{
		"next_questions":     memory.NextQuestions(userCtx),
		"completeness_score": completeness,
		"next_action":        memory.DetermineNextAction(completeness),
	}
	return resp, nil
}

// generateReply runs one prompt through the generator. A failed call
// degrades to the fixed apology, never to an error.
func (o *Orchestrator) generateReply(ctx context.Context, agent Agent, prompt string, metadata map[string]any) (Response, error) {
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		o.logger.Error("generation failed", "agent", agent, "err", err)
		return Response{
			Text:       FallbackReply,
			Agent:      AgentGeneralChat,
			Confidence: 0.3,
			Fallback:   true,
			Metadata:   map[string]any{"error": true},
		}, nil
	}

	return Response{
		Text:       strings.TrimSpace(text),
		Agent:      agent,
		Confidence: 0.9,
		Metadata:   metadata,
	}, nil
}

func (o *Orchestrator) persistTurn(ctx context.Context, conversationID, userMessage string, resp Response, analysis Analysis) error {
	if _, err := o.store.CreateMessage(ctx, store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        userMessage,
	}); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	if _, err := o.store.CreateMessage(ctx, store.Message{
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Content:        resp.Text,
		AgentType:      string(resp.Agent),
		Metadata: map[string]any{
			"agent":        string(resp.Agent),
			"message_type": analysis.Type,
			"intent":       analysis.Intent,
			"sentiment":    analysis.Sentiment,
		},
	}); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	return nil
}

// scheduleFollowup enqueues a check-in timer after a sales touch.
// Timer problems are isolated: they never fail the reply that
// triggered them.
func (o *Orchestrator) scheduleFollowup(ctx context.Context, userID, conversationID string) {
	_, err := o.store.CreateTimer(ctx, store.Timer{
		UserID:         userID,
		ConversationID: conversationID,
		Kind:           "followup",
		RunAt:          time.Now().UTC().Add(o.followupDelay),
	})
	if err != nil {
		o.logger.Error("followup scheduling failed", "conversation", conversationID, "err", err)
		return
	}
	o.logger.Info("followup scheduled", "conversation", conversationID, "delay", o.followupDelay)
}

// FollowupMessage composes the proactive check-in a fired followup
// timer sends. It is called by the timer runner, not by the inbound
// pipeline, so there is no fallback: a failed generation is the
// caller's retry problem.
func (o *Orchestrator) FollowupMessage(ctx context.Context, userID, conversationID string) (string, error) {
	recent, err := o.store.RecentMessages(ctx, conversationID, 5)
	if err != nil {
		return "", fmt.Errorf("load recent messages: %w", err)
	}

	lastUser := ""
	for _, m := range recent {
		if m.Role == store.RoleUser {
			lastUser = m.Content
			break
		}
	}

	userCtx, err := o.memory.UserContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user context: %w", err)
	}

	prompt := renderFollowupPrompt(lastUser, memory.ProfileSummary(userCtx), Analysis{Intent: "followup"})
	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate followup: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generate followup: empty reply")
	}

	// Persist the proactive message so later turns see it in history.
	if _, err := o.store.CreateMessage(ctx, store.Message{
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Content:        text,
		AgentType:      string(AgentFollowup),
		Metadata:       map[string]any{"agent": string(AgentFollowup), "proactive": true},
	}); err != nil {
		return "", fmt.Errorf("persist followup message: %w", err)
	}

	return text, nil
}

// lastAgent finds the most recent message that carried an agent label.
func lastAgent(recent []store.Message) Agent {
	for _, m := range recent {
		if m.AgentType != "" {
			return Agent(m.AgentType)
		}
		if m.Metadata != nil {
			if a, ok := m.Metadata["agent"].(string); ok && a != "" {
				return Agent(a)
			}
		}
	}
	return ""
}
