package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/glowvn/glowchat/internal/bus"
	"github.com/glowvn/glowchat/internal/config"
	"github.com/glowvn/glowchat/internal/gateway"
	"github.com/glowvn/glowchat/internal/store"
)

// GatewayFactory creates a Gateway instance (allows mocking in tests)
type GatewayFactory func(cfg *config.Config, logger *log.Logger) (*gateway.Gateway, error)

// DefaultGatewayFactory builds the real OpenAI-backed gateway
func DefaultGatewayFactory(cfg *config.Config, logger *log.Logger) (*gateway.Gateway, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'glowchat onboard' or set GLOWCHAT_OPENAI_API_KEY / OPENAI_API_KEY")
	}
	return gateway.New(cfg, logger)
}

// ChatOptions for running the chat REPL with custom dependencies
type ChatOptions struct {
	GatewayFactory GatewayFactory
	Stdin          io.Reader
	Stdout         io.Writer
	Stderr         io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "glowchat",
	Short: "glowchat - Vietnamese cosmetics sales assistant",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the full gateway (channels + followup timers)",
	RunE:  runServe,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in single message or REPL mode",
	RunE:  runChat,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and knowledge directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show glowchat status",
	RunE:  runStatus,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Ingest markdown or text files into the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var messageFlag string

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	rootCmd.AddCommand(serveCmd, chatCmd, onboardCmd, statusCmd, ingestCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := DefaultGatewayFactory(cfg, log.Default())
	if err != nil {
		return err
	}

	return gw.Run(context.Background())
}

// runChat is the command handler that uses default options
func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{})
}

// runChatWithOptions runs the chat loop with injectable dependencies for testing
func runChatWithOptions(opts ChatOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.GatewayFactory
	if factory == nil {
		factory = DefaultGatewayFactory
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// The REPL talks straight to the pipeline; channels stay off.
	cfg.Channels = config.ChannelsConfig{}
	cfg.Timers.Enabled = false

	gw, err := factory(cfg, log.New(io.Discard))
	if err != nil {
		return err
	}
	defer gw.Shutdown()

	gw.Bus().SubscribeStream("cli", func(ev bus.StreamEvent) {
		switch ev.Type {
		case bus.EventMessageChunk:
			fmt.Fprintln(stdout, ev.Chunk)
		case bus.EventError:
			fmt.Fprintf(stderr, "Error: %s\n", ev.Details)
			fmt.Fprintln(stdout, ev.Error)
		}
	})

	ctx := context.Background()
	send := func(text string) {
		gw.Handle(ctx, bus.InboundMessage{
			Channel:  "cli",
			SenderID: "cli",
			ChatID:   "cli",
			Content:  text,
		})
	}

	// Single message mode
	if messageFlag != "" {
		send(messageFlag)
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "glowchat (type 'exit' to quit)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		send(input)
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, _ := config.LoadConfig()
	if err := os.MkdirAll(cfg.RAG.Path, 0755); err != nil {
		return fmt.Errorf("create knowledge dir: %w", err)
	}

	writeIfNotExists(filepath.Join(cfg.RAG.Path, "README.md"), defaultKnowledgeMD)

	fmt.Printf("Knowledge directory ready: %s\n", cfg.RAG.Path)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your OpenAI API key\n", cfgPath)
	fmt.Println("  2. Or set GLOWCHAT_OPENAI_API_KEY environment variable")
	fmt.Println("  3. Run 'glowchat ingest <file.md>' to load product knowledge")
	fmt.Println("  4. Run 'glowchat chat -m \"xin chào\"' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Database: %s\n", cfg.Store.DBPath)
	fmt.Printf("Knowledge: %s\n", cfg.RAG.Path)
	fmt.Printf("Model: %s\n", cfg.OpenAI.ChatModel)
	if cfg.OpenAI.APIKey != "" && len(cfg.OpenAI.APIKey) > 8 {
		masked := cfg.OpenAI.APIKey[:4] + "..." + cfg.OpenAI.APIKey[len(cfg.OpenAI.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.OpenAI.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("WebSocket: enabled=%v\n", cfg.Channels.WebSocket.Enabled)
	fmt.Printf("Timers: enabled=%v interval=%s\n", cfg.Timers.Enabled, cfg.Timers.IntervalDuration())

	if _, err := os.Stat(cfg.Store.DBPath); err != nil {
		fmt.Println("Database: not found (run 'glowchat serve' or 'glowchat chat' to create)")
		return nil
	}

	st, err := store.OpenSQLite(cfg.Store.DBPath, log.New(io.Discard))
	if err != nil {
		fmt.Printf("Database: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		fmt.Printf("Stats: error (%v)\n", err)
		return nil
	}
	fmt.Printf("Users: %d\n", stats.Users)
	fmt.Printf("Conversations: %d\n", stats.Conversations)
	fmt.Printf("Messages: %d\n", stats.Messages)
	fmt.Printf("Facts: %d (%d unconfirmed)\n", stats.Facts, stats.Unconfirmed)
	fmt.Printf("Pending timers: %d\n", stats.PendingTimers)
	fmt.Printf("Pending handoffs: %d\n", stats.PendingHandoffs)

	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Channels = config.ChannelsConfig{}
	cfg.Timers.Enabled = false

	gw, err := DefaultGatewayFactory(cfg, log.New(io.Discard))
	if err != nil {
		return err
	}
	defer gw.Shutdown()

	knowledge := gw.Knowledge()
	if knowledge == nil {
		return fmt.Errorf("knowledge base unavailable at %s", cfg.RAG.Path)
	}

	ctx := context.Background()
	files, err := collectIngestFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .md or .txt files found")
	}

	for _, path := range files {
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := knowledge.IngestFile(ctx, path, title)
		if err != nil {
			fmt.Printf("  %s: error (%v)\n", path, err)
			continue
		}
		if res.AlreadyExists {
			fmt.Printf("  %s: unchanged\n", path)
			continue
		}
		fmt.Printf("  %s: %d chunks\n", path, res.ChunksCreated)
	}
	return nil
}

// collectIngestFiles expands directories into their .md and .txt files.
func collectIngestFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".md", ".txt":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return files, nil
}

func writeIfNotExists(path, content string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = os.WriteFile(path, []byte(content), 0644)
		fmt.Printf("  Created: %s\n", path)
	}
}

const defaultKnowledgeMD = `# Knowledge base

Drop product and policy documents here as .md or .txt files, then run:

    glowchat ingest ~/.glowchat/knowledge

Each file becomes a searchable document. Suggested content:

- Product catalogs with ingredients, prices and usage instructions
- Shipping and return policies
- Skincare routines by skin type
- Frequently asked questions with canonical answers
`
