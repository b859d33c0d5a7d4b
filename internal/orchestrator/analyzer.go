package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/glowvn/glowchat/internal/genai"
)

const analysisPrompt = `Phân tích tin nhắn sau và trả về JSON với các thông tin:
- type: loại tin nhắn (greeting, question, complaint, purchase_intent, personal_info, followup, goodbye)
- intent: ý định chính của người dùng
- sentiment: cảm xúc (positive, negative, neutral)
- urgency: mức độ khẩn cấp (low, medium, high)
- entities: các thực thể quan trọng được đề cập
- requires_human: có cần chuyển cho con người không (true/false)

Tin nhắn: "%s"

Context: %s

Trả về chỉ JSON, không có text khác:`

// Analyzer classifies inbound messages with a model call. It absorbs
// every failure into the safe default so routing always has an
// analysis to work with.
type Analyzer struct {
	generator genai.Generator
	logger    *log.Logger
}

func NewAnalyzer(generator genai.Generator, logger *log.Logger) *Analyzer {
	return &Analyzer{
		generator: generator,
		logger:    logger.With("component", "analyzer"),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, message string, meta map[string]any) Analysis {
	metaJSON, err := json.Marshal(meta)
	if err != nil || meta == nil {
		metaJSON = []byte("{}")
	}

	raw, err := a.generator.Generate(ctx, fmt.Sprintf(analysisPrompt, message, metaJSON))
	if err != nil {
		a.logger.Warn("analysis generation failed", "err", err)
		return defaultAnalysis()
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		a.logger.Warn("analysis parse failed", "err", err)
		return defaultAnalysis()
	}
	return analysis
}

// parseAnalysis decodes the model's JSON, tolerating markdown code
// fences around it. Missing fields fall back to the default values.
func parseAnalysis(raw string) (Analysis, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	analysis := defaultAnalysis()
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if !validMessageType(analysis.Type) {
		analysis.Type = TypeQuestion
	}
	if analysis.Entities == nil {
		analysis.Entities = []string{}
	}
	return analysis, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func validMessageType(t string) bool {
	switch t {
	case TypeGreeting, TypeQuestion, TypeComplaint, TypePurchaseIntent,
		TypePersonalInfo, TypeFollowup, TypeGoodbye:
		return true
	}
	return false
}
