// Package rag stores product and policy knowledge as embedded chunks
// and retrieves the most similar ones to ground replies.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	chromem "github.com/philippgille/chromem-go"

	"github.com/glowvn/glowchat/internal/genai"
)

const (
	collectionName          = "knowledge"
	DefaultTopK             = 5
	DefaultThreshold        = 0.7
	contextThreshold        = 0.6
	DefaultMaxContextLength = 2000
)

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	ChunkID    string
	Content    string
	Similarity float32
	Title      string
	SourceURL  string
	Metadata   map[string]string
}

// IngestResult reports what an ingestion run produced.
type IngestResult struct {
	DocumentID    string
	ChunksCreated int
	AlreadyExists bool
}

// Service wraps an embedded chromem vector store.
type Service struct {
	db           *chromem.DB
	col          *chromem.Collection
	chunkSize    int
	chunkOverlap int
	logger       *log.Logger
}

type Config struct {
	Path         string
	ChunkSize    int
	ChunkOverlap int
}

// NewService opens (or creates) the vector store at cfg.Path. An empty
// path keeps everything in memory, which tests rely on.
func NewService(cfg Config, embedder genai.Embedder, logger *log.Logger) (*Service, error) {
	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
	}

	embed := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	})
	col, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap <= 0 {
		chunkOverlap = DefaultChunkOverlap
	}

	return &Service{
		db:           db,
		col:          col,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger.With("component", "rag"),
	}, nil
}

// IngestText chunks, embeds and stores one document. Documents are
// deduplicated by content hash.
func (s *Service) IngestText(ctx context.Context, title, sourceURL, text string) (IngestResult, error) {
	text = normalizeWhitespace(text)
	if len(text) < 100 {
		return IngestResult{}, fmt.Errorf("document content too short")
	}

	sum := sha256.Sum256([]byte(text))
	docID := hex.EncodeToString(sum[:])

	if _, err := s.col.GetByID(ctx, chunkID(docID, 0)); err == nil {
		s.logger.Info("document already ingested", "title", title)
		return IngestResult{DocumentID: docID, AlreadyExists: true}, nil
	}

	chunks := ChunkText(text, s.chunkSize, s.chunkOverlap)
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      chunkID(docID, i),
			Content: chunk,
			Metadata: map[string]string{
				"document_id": docID,
				"title":       title,
				"source_url":  sourceURL,
			},
		})
	}
	if len(docs) == 0 {
		return IngestResult{DocumentID: docID}, nil
	}

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return IngestResult{}, fmt.Errorf("add documents: %w", err)
	}

	s.logger.Info("document ingested", "title", title, "chunks", len(docs))
	return IngestResult{DocumentID: docID, ChunksCreated: len(docs)}, nil
}

// IngestFile reads a file and ingests its content. The file name
// serves as title when none is given.
func (s *Service) IngestFile(ctx context.Context, path, title string) (IngestResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("read file: %w", err)
	}
	if title == "" {
		title = filepath.Base(path)
	}
	return s.IngestText(ctx, title, "", string(content))
}

// Search embeds the query and returns up to topK chunks at or above
// the similarity threshold, best first.
func (s *Service) Search(ctx context.Context, query string, topK int, threshold float32) ([]SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if n := s.col.Count(); n < topK {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := s.col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	var out []SearchResult
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		out = append(out, SearchResult{
			ChunkID:    r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Title:      r.Metadata["title"],
			SourceURL:  r.Metadata["source_url"],
			Metadata:   r.Metadata,
		})
	}

	s.logger.Debug("search completed", "query", truncate(query, 100), "results", len(out))
	return out, nil
}

// ContextForQuery assembles retrieved chunks into a prompt context
// block, truncated to maxLength bytes. Retrieval failures degrade to
// an empty context rather than breaking the reply.
func (s *Service) ContextForQuery(ctx context.Context, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxContextLength
	}

	results, err := s.Search(ctx, query, DefaultTopK, contextThreshold)
	if err != nil {
		s.logger.Error("context retrieval failed", "err", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var parts []string
	length := 0
	for _, r := range results {
		content := r.Content
		if length+len(content) > maxLength {
			remaining := maxLength - length
			if remaining > 100 {
				parts = append(parts, fmt.Sprintf("[Score: %.2f] %s...", r.Similarity, content[:remaining]))
			}
			break
		}
		parts = append(parts, fmt.Sprintf("[Score: %.2f] %s", r.Similarity, content))
		length += len(content)
	}

	return strings.Join(parts, "\n\n")
}

func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s-%d", docID, index)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
