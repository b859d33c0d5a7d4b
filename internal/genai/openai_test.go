package genai

import (
	"context"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(ClientConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if c.chatModel != DefaultChatModel {
		t.Errorf("chat model = %s, want %s", c.chatModel, DefaultChatModel)
	}
	if string(c.embeddingModel) != DefaultEmbeddingModel {
		t.Errorf("embedding model = %s, want %s", c.embeddingModel, DefaultEmbeddingModel)
	}
	if c.maxTokens != DefaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", c.maxTokens, DefaultMaxTokens)
	}
}

func TestGeneratorFunc(t *testing.T) {
	g := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	out, err := g.Generate(context.Background(), "xin chào")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out != "echo: xin chào" {
		t.Errorf("Generate = %q", out)
	}
}
