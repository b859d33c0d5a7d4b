// Package timing converts generated replies into human-paced delivery
// schedules: a typing delay, natural chunk boundaries, and a per-chunk
// delay distribution.
package timing

import (
	"math"
	"regexp"
	"strings"
)

// Complexity classifies how heavy a reply is to "type".
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Pattern is a named typing-speed profile.
type Pattern string

const (
	PatternFast     Pattern = "fast"
	PatternNormal   Pattern = "normal"
	PatternSlow     Pattern = "slow"
	PatternThinking Pattern = "thinking"
)

const (
	// MinDelay and MaxDelay bound the total typing delay in seconds.
	MinDelay = 0.5
	MaxDelay = 8.0

	// DefaultMaxChunkLen is the chunk size cap used when splitting replies.
	DefaultMaxChunkLen = 200
)

// Profile is the computed delivery schedule for one reply. ChunkDelays has
// the same length as Chunks and sums to TotalDelay.
type Profile struct {
	TotalDelay  float64
	Complexity  Complexity
	Pattern     Pattern
	Chunks      []string
	ChunkDelays []float64
}

// words per minute for each pattern
var typingSpeeds = map[Pattern]float64{
	PatternFast:     70,
	PatternNormal:   50,
	PatternSlow:     30,
	PatternThinking: 25,
}

var complexityFactors = map[Complexity]float64{
	ComplexitySimple:  0.8,
	ComplexityMedium:  1.0,
	ComplexityComplex: 1.3,
}

var baseThinking = map[Complexity]float64{
	ComplexitySimple:  0.2,
	ComplexityMedium:  0.5,
	ComplexityComplex: 1.0,
}

// Phrases that read like the writer paused to think.
var thinkingPhrases = []string{
	"hmm", "well", "actually", "let me think", "you know",
	"basically", "essentially", "obviously", "clearly",
	"để mình xem", "thực ra", "à mà",
}

// Base pattern per agent; unknown agents type at normal speed.
var agentPatterns = map[string]Pattern{
	"discovery":        PatternNormal,
	"customer_service": PatternFast,
	"sales":            PatternFast,
	"handoff_human":    PatternSlow,
	"followup":         PatternNormal,
	"general_chat":     PatternNormal,
}

var (
	sentenceSplitRe = regexp.MustCompile(`([.!?]+)`)
	digitRe         = regexp.MustCompile(`\d`)
)

// Engine computes delivery schedules. It is stateless and safe for
// concurrent use.
type Engine struct {
	maxChunkLen int
}

// NewEngine returns an Engine with the given chunk cap; maxChunkLen <= 0
// falls back to DefaultMaxChunkLen.
func NewEngine(maxChunkLen int) *Engine {
	if maxChunkLen <= 0 {
		maxChunkLen = DefaultMaxChunkLen
	}
	return &Engine{maxChunkLen: maxChunkLen}
}

// Simulate produces the full Profile for a reply from the given agent.
func (e *Engine) Simulate(message, agentType string) Profile {
	complexity := DetermineComplexity(message)
	pattern := DeterminePattern(agentType, complexity)
	total := CalculateDelay(message, complexity, pattern)
	chunks := SplitMessage(message, e.maxChunkLen)
	return Profile{
		TotalDelay:  total,
		Complexity:  complexity,
		Pattern:     pattern,
		Chunks:      chunks,
		ChunkDelays: DistributeDelay(chunks, total),
	}
}

// DetermineComplexity classifies a message by word and sentence count.
func DetermineComplexity(message string) Complexity {
	wordCount := len(strings.Fields(message))
	sentenceCount := 0
	for _, s := range sentenceSplitRe.Split(message, -1) {
		if strings.TrimSpace(s) != "" {
			sentenceCount++
		}
	}

	switch {
	case wordCount <= 10 && sentenceCount <= 1:
		return ComplexitySimple
	case wordCount <= 50 && sentenceCount <= 3:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

// DeterminePattern picks the agent's base pattern, escalated one step
// slower for complex replies (fast->normal, normal->thinking).
func DeterminePattern(agentType string, complexity Complexity) Pattern {
	pattern, ok := agentPatterns[agentType]
	if !ok {
		pattern = PatternNormal
	}
	if complexity == ComplexityComplex {
		switch pattern {
		case PatternFast:
			return PatternNormal
		case PatternNormal:
			return PatternThinking
		}
	}
	return pattern
}

// CalculateDelay returns the total typing delay in seconds, clamped to
// [MinDelay, MaxDelay] and rounded to one decimal.
func CalculateDelay(message string, complexity Complexity, pattern Pattern) float64 {
	wordCount := float64(len(strings.Fields(message)))
	wpm := typingSpeeds[pattern]
	if wpm == 0 {
		wpm = typingSpeeds[PatternNormal]
	}

	typing := (wordCount / wpm) * 60 * complexityFactors[complexity]
	total := typing + thinkingTime(message, complexity) + pauseTime(message)

	total = math.Max(MinDelay, math.Min(total, MaxDelay))
	return math.Round(total*10) / 10
}

func thinkingTime(message string, complexity Complexity) float64 {
	t := baseThinking[complexity]

	lower := strings.ToLower(message)
	for _, phrase := range thinkingPhrases {
		if strings.Contains(lower, phrase) {
			t += 0.3
		}
	}
	if strings.Contains(message, "?") {
		t += 0.5
	}
	if digitRe.MatchString(message) {
		t += 0.3
	}
	return t
}

func pauseTime(message string) float64 {
	t := 0.0
	for _, r := range message {
		switch r {
		case '.', '!', '?':
			t += 0.3
		case ':', ';':
			t += 0.1
		case '\n':
			t += 0.2
		}
	}
	return t
}

// SplitMessage breaks a reply into chunks of at most maxLength characters,
// keeping whole sentences together when possible. A sentence longer than
// maxLength falls back to a word split, and a single overlong word is cut
// hard. Empty chunks are dropped.
func SplitMessage(message string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultMaxChunkLen
	}
	if len(message) <= maxLength {
		if strings.TrimSpace(message) == "" {
			return nil
		}
		return []string{message}
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(message) {
		// A sentence over the cap can never pack: fall back to words.
		if len(sentence) > maxLength {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, splitByWords(sentence, maxLength)...)
			continue
		}
		if len(current)+len(sentence) <= maxLength {
			current += sentence
			continue
		}
		chunks = append(chunks, current)
		current = sentence
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// splitSentences splits on terminal punctuation, keeping the delimiter
// attached to its sentence.
func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	delims := sentenceSplitRe.FindAllString(text, -1)

	sentences := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(delims) {
			part += delims[i]
		}
		if part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

func splitByWords(text string, maxLength int) []string {
	var chunks []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if len(candidate) <= maxLength {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
			current = word
			continue
		}
		// Single word over the cap: hard character cut.
		for len(word) > maxLength {
			chunks = append(chunks, word[:maxLength])
			word = word[maxLength:]
		}
		current = word
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// DistributeDelay spreads totalDelay across chunks proportionally to
// character length. The last chunk absorbs the remainder so the delays
// always sum to totalDelay, floored at 0.1s.
func DistributeDelay(chunks []string, totalDelay float64) []float64 {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) == 1 {
		return []float64{totalDelay}
	}

	totalLen := 0
	for _, c := range chunks {
		totalLen += len(c)
	}

	delays := make([]float64, 0, len(chunks))
	remaining := totalDelay
	for _, c := range chunks[:len(chunks)-1] {
		d := totalDelay * float64(len(c)) / float64(totalLen)
		delays = append(delays, d)
		remaining -= d
	}
	delays = append(delays, math.Max(0.1, remaining))
	return delays
}
