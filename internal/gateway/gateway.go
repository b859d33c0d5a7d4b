// Package gateway is the composition root: it wires config, storage,
// memory, generation, knowledge retrieval, the orchestrator, followup
// timers and the channels together, and runs the inbound message loop.
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glowvn/glowchat/internal/bus"
	"github.com/glowvn/glowchat/internal/channel"
	"github.com/glowvn/glowchat/internal/config"
	"github.com/glowvn/glowchat/internal/genai"
	"github.com/glowvn/glowchat/internal/memory"
	"github.com/glowvn/glowchat/internal/orchestrator"
	"github.com/glowvn/glowchat/internal/rag"
	"github.com/glowvn/glowchat/internal/store"
	"github.com/glowvn/glowchat/internal/timers"
	"github.com/glowvn/glowchat/internal/timing"
)

// ClientFactory builds the generation and embedding backends (allows
// injection for testing).
type ClientFactory func(cfg config.OpenAIConfig) (genai.Generator, genai.Embedder, error)

// DefaultClientFactory creates the real OpenAI-backed client.
func DefaultClientFactory(cfg config.OpenAIConfig) (genai.Generator, genai.Embedder, error) {
	c, err := genai.NewClient(genai.ClientConfig{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    float32(cfg.Temperature),
	})
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}

// Options for creating a Gateway
type Options struct {
	ClientFactory ClientFactory
	SignalChan    chan os.Signal      // for testing signal handling
	Sleep         func(time.Duration) // for testing chunk pacing
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      *store.SQLiteStore
	memory     *memory.Engine
	rag        *rag.Service
	orch       *orchestrator.Orchestrator
	timers     *timers.Runner
	channels   *channel.ChannelManager
	logger     *log.Logger
	signalChan chan os.Signal
	sleep      func(time.Duration)
}

// New creates a Gateway with default options
func New(cfg *config.Config, logger *log.Logger) (*Gateway, error) {
	return NewWithOptions(cfg, Options{}, logger)
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options, logger *log.Logger) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		logger:     logger.With("component", "gateway"),
		signalChan: opts.SignalChan,
		sleep:      opts.Sleep,
	}
	if g.sleep == nil {
		g.sleep = time.Sleep
	}

	bufSize := cfg.Gateway.BufSize
	if bufSize <= 0 {
		bufSize = config.DefaultBufSize
	}
	g.bus = bus.NewMessageBus(bufSize)

	st, err := store.OpenSQLite(cfg.Store.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st

	factory := opts.ClientFactory
	if factory == nil {
		factory = DefaultClientFactory
	}
	generator, embedder, err := factory(cfg.OpenAI)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create model client: %w", err)
	}

	g.memory = memory.NewEngine(st, logger)

	// The knowledge base is optional: a broken vector store degrades
	// to prompts without retrieved context.
	ragSvc, err := rag.NewService(rag.Config{
		Path:         cfg.RAG.Path,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	}, embedder, logger)
	if err != nil {
		g.logger.Warn("knowledge base unavailable", "err", err)
	} else {
		g.rag = ragSvc
	}

	var knowledge orchestrator.KnowledgeProvider
	if g.rag != nil {
		knowledge = g.rag
	}

	g.orch = orchestrator.New(st, g.memory, generator, knowledge,
		timing.NewEngine(0),
		orchestrator.Options{FollowupDelay: cfg.Orchestrator.FollowupDelayDuration()},
		logger)

	if cfg.Timers.Enabled {
		g.timers = timers.NewRunner(st, g.orch, g.bus, cfg.Timers.IntervalDuration(), logger)
	}

	chMgr, err := channel.NewChannelManager(cfg.Channels, cfg.Gateway, g.bus)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// Knowledge exposes the vector store for the ingest command. Nil when
// the knowledge base failed to open.
func (g *Gateway) Knowledge() *rag.Service { return g.rag }

// Store exposes the persistence layer for the status command.
func (g *Gateway) Store() *store.SQLiteStore { return g.store }

// Bus exposes the message bus so callers can subscribe stream handlers.
func (g *Gateway) Bus() *bus.MessageBus { return g.bus }

// Handle runs a single inbound message through the full pipeline
// synchronously. The chat REPL feeds its input through here.
func (g *Gateway) Handle(ctx context.Context, msg bus.InboundMessage) {
	g.handleInbound(ctx, msg)
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info("channels started", "channels", g.channels.EnabledChannels())

	if g.timers != nil {
		if err := g.timers.Start(ctx); err != nil {
			g.logger.Warn("timer runner start failed", "err", err)
		}
	}

	go g.processLoop(ctx)

	g.logger.Info("gateway running", "host", g.cfg.Gateway.Host, "port", g.cfg.Gateway.Port)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	g.logger.Info("shutting down")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	g.logger.Info("inbound message",
		"channel", msg.Channel, "sender", msg.SenderID, "length", len(msg.Content))

	user, err := g.store.EnsureUser(ctx, msg.Channel, msg.SenderID)
	if err != nil {
		g.emitError(msg, err)
		return
	}

	conv, err := g.store.EnsureConversation(ctx, user.ID, msg.Channel, msg.ChatID)
	if err != nil {
		g.emitError(msg, err)
		return
	}

	resp, err := g.orch.Process(ctx, user.ID, conv.ID, msg.Content, msg.Metadata)
	if err != nil {
		g.emitError(msg, err)
		return
	}

	g.playback(msg, resp)
}

// playback delivers a response as a human-paced event sequence:
// typing_start, then each chunk after its delay, then completion.
func (g *Gateway) playback(msg bus.InboundMessage, resp orchestrator.Response) {
	agent := string(resp.Agent)

	g.bus.DispatchEvent(bus.StreamEvent{
		Type:           bus.EventTypingStart,
		Channel:        msg.Channel,
		ChatID:         msg.ChatID,
		AgentType:      agent,
		EstimatedDelay: resp.Timing.TotalDelay,
	})

	total := len(resp.Timing.Chunks)
	for i, chunk := range resp.Timing.Chunks {
		if i < len(resp.Timing.ChunkDelays) {
			g.sleep(time.Duration(resp.Timing.ChunkDelays[i] * float64(time.Second)))
		}
		g.bus.DispatchEvent(bus.StreamEvent{
			Type:        bus.EventMessageChunk,
			Channel:     msg.Channel,
			ChatID:      msg.ChatID,
			AgentType:   agent,
			Chunk:       chunk,
			ChunkIndex:  i,
			TotalChunks: total,
			IsFinal:     i == total-1,
		})
	}

	g.bus.DispatchEvent(bus.StreamEvent{
		Type:       bus.EventMessageComplete,
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		AgentType:  agent,
		Confidence: resp.Confidence,
		Metadata:   resp.Metadata,
	})
}

func (g *Gateway) emitError(msg bus.InboundMessage, err error) {
	g.logger.Error("pipeline error", "channel", msg.Channel, "chat", msg.ChatID, "err", err)
	g.bus.DispatchEvent(bus.StreamEvent{
		Type:    bus.EventError,
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Error:   orchestrator.FallbackReply,
		Details: err.Error(),
	})
}

func (g *Gateway) Shutdown() error {
	if g.timers != nil {
		g.timers.Stop()
	}
	_ = g.channels.StopAll()
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			g.logger.Warn("close store", "err", err)
		}
	}
	g.logger.Info("shutdown complete")
	return nil
}
