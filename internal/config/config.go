package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultChatModel     = "gpt-4o-mini"
	DefaultMaxTokens     = 1024
	DefaultTemperature   = 0.7
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 18520
	DefaultBufSize       = 100
	DefaultChunkSize     = 500
	DefaultChunkOverlap  = 50
	DefaultTimerInterval = "30s"
	DefaultFollowupDelay = "24h"
	DefaultHistoryWindow = 5
)

type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Channels     ChannelsConfig     `json:"channels"`
	OpenAI       OpenAIConfig       `json:"openai"`
	Store        StoreConfig        `json:"store"`
	RAG          RAGConfig          `json:"rag"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Timers       TimersConfig       `json:"timers"`
}

type GatewayConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	BufSize int    `json:"bufSize,omitempty"`
}

type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram"`
	WebSocket WebSocketConfig `json:"websocket"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebSocketConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
}

type OpenAIConfig struct {
	APIKey         string  `json:"apiKey"`
	BaseURL        string  `json:"baseUrl,omitempty"`
	ChatModel      string  `json:"chatModel,omitempty"`
	EmbeddingModel string  `json:"embeddingModel,omitempty"`
	MaxTokens      int     `json:"maxTokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type RAGConfig struct {
	Path         string `json:"path,omitempty"`
	ChunkSize    int    `json:"chunkSize,omitempty"`
	ChunkOverlap int    `json:"chunkOverlap,omitempty"`
}

type OrchestratorConfig struct {
	FollowupDelay string `json:"followupDelay,omitempty"`
	HistoryWindow int    `json:"historyWindow,omitempty"`
}

type TimersConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:    DefaultHost,
			Port:    DefaultPort,
			BufSize: DefaultBufSize,
		},
		Channels: ChannelsConfig{},
		OpenAI: OpenAIConfig{
			ChatModel:   DefaultChatModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(ConfigDir(), "glowchat.db"),
		},
		RAG: RAGConfig{
			Path:         filepath.Join(ConfigDir(), "knowledge"),
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Orchestrator: OrchestratorConfig{
			FollowupDelay: DefaultFollowupDelay,
			HistoryWindow: DefaultHistoryWindow,
		},
		Timers: TimersConfig{
			Enabled:  true,
			Interval: DefaultTimerInterval,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".glowchat")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("GLOWCHAT_OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = key
	}
	if url := os.Getenv("GLOWCHAT_OPENAI_BASE_URL"); url != "" {
		cfg.OpenAI.BaseURL = url
	}
	if model := os.Getenv("GLOWCHAT_CHAT_MODEL"); model != "" {
		cfg.OpenAI.ChatModel = model
	}
	if token := os.Getenv("GLOWCHAT_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
		cfg.Channels.Telegram.Enabled = true
	}
	if dbPath := os.Getenv("GLOWCHAT_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if ragPath := os.Getenv("GLOWCHAT_RAG_PATH"); ragPath != "" {
		cfg.RAG.Path = ragPath
	}
	if port := os.Getenv("GLOWCHAT_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if enabled := os.Getenv("GLOWCHAT_TIMERS_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Timers.Enabled = parsed
		}
	}

	if cfg.Gateway.BufSize <= 0 {
		cfg.Gateway.BufSize = DefaultBufSize
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = DefaultChatModel
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.Orchestrator.HistoryWindow <= 0 {
		cfg.Orchestrator.HistoryWindow = DefaultHistoryWindow
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

// FollowupDelayDuration parses the configured followup delay, falling
// back to the default on bad input.
func (c OrchestratorConfig) FollowupDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.FollowupDelay)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultFollowupDelay)
	}
	return d
}

// IntervalDuration parses the configured timer poll interval.
func (c TimersConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimerInterval)
	}
	return d
}
