package rag

import (
	"regexp"
	"strings"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	minChunkLen         = 50
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// ChunkText splits text into overlapping chunks on sentence
// boundaries. Consecutive chunks share overlap words so retrieval
// does not lose context at the seams. Chunks shorter than 50 bytes
// are dropped.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}

	var chunks []string
	var current string

	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if len(current)+len(sentence) > chunkSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))

			if overlap > 0 {
				words := strings.Fields(current)
				if len(words) > overlap {
					words = words[len(words)-overlap:]
				}
				current = strings.Join(words, " ") + " " + sentence
			} else {
				current = sentence
			}
			continue
		}

		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}

	if s := strings.TrimSpace(current); s != "" {
		chunks = append(chunks, s)
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if len(c) > minChunkLen {
			kept = append(kept, c)
		}
	}
	return kept
}
