package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/ragflow"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/cache"
)

const (
	defaultTopK     = 10
	maxTopK         = 50
	previewRunes    = 200
	chunkCacheTTL   = 10 * time.Minute
	defaultStatsTop = 10
)

// SearchService runs retrieval queries against a knowledge base, records
// usage, and serves chunk previews.
type SearchService struct {
	db    *gorm.DB
	scope *ScopeService
	rag   RAG
	cache *cache.RedisCache // optional; nil disables preview caching
}

func NewSearchService(db *gorm.DB, scope *ScopeService, rag RAG, c *cache.RedisCache) *SearchService {
	return &SearchService{db: db, scope: scope, rag: rag, cache: c}
}

// SearchInput is one retrieval query.
type SearchInput struct {
	Hint                ScopeHint
	Question            string
	TopK                int
	SimilarityThreshold *float64
	Highlight           bool
}

// SearchHit is one scored fragment, joined back to the local document row
// when the fragment's remote document is known here.
type SearchHit struct {
	Rank         int     `json:"rank"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
	Highlight    string  `json:"highlight,omitempty"`
	Preview      string  `json:"preview"`
	DocumentID   int64   `json:"document_id,omitempty"`
	DocumentName string  `json:"document_name,omitempty"`
	CaseLocator  string  `json:"case_locator"`
}

// SearchResult is the full answer to one query.
type SearchResult struct {
	Question string      `json:"question"`
	KBID     int64       `json:"kb_id"`
	Total    int         `json:"total"`
	Hits     []SearchHit `json:"hits"`
}

// Search resolves the actor's knowledge base, queries the retrieval index,
// and appends a usage log row. Only teachers and students are logged; admin
// queries are treated as operational.
func (s *SearchService) Search(ctx context.Context, actor *Actor, in SearchInput) (*SearchResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, apperr.InvalidInput("question is required")
	}
	topK := in.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	kb, err := s.scope.ResolveKB(actor, in.Hint)
	if err != nil {
		return nil, err
	}
	if kb.RagflowDatasetID == "" {
		return nil, apperr.Conflict("knowledge base has no dataset")
	}

	chunks, total, err := s.rag.Retrieve(ctx, ragflow.RetrievalRequest{
		Question:            question,
		DatasetIDs:          []string{kb.RagflowDatasetID},
		TopK:                topK,
		SimilarityThreshold: in.SimilarityThreshold,
		Highlight:           in.Highlight,
	})
	if err != nil {
		return nil, apperr.Upstream("retrieval failed", err)
	}

	hits := s.formatHits(kb, chunks)
	s.logSearch(actor, kb.ID, question, topK, len(hits))

	return &SearchResult{Question: question, KBID: kb.ID, Total: total, Hits: hits}, nil
}

// formatHits joins retrieved chunks against local document rows by the
// remote document id, so the UI can link straight to stored files.
func (s *SearchService) formatHits(kb *model.KnowledgeBase, chunks []ragflow.RetrievedChunk) []SearchHit {
	remoteIDs := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if ch.DocumentID != "" {
			remoteIDs = append(remoteIDs, ch.DocumentID)
		}
	}

	docsByRemote := map[string]model.Document{}
	if len(remoteIDs) > 0 {
		var docs []model.Document
		if err := s.db.Where("kb_id = ? AND ragflow_document_id IN ?", kb.ID, remoteIDs).Find(&docs).Error; err == nil {
			for _, d := range docs {
				if d.RagflowDocumentID != nil {
					docsByRemote[*d.RagflowDocumentID] = d
				}
			}
		}
	}

	hits := make([]SearchHit, 0, len(chunks))
	for i, ch := range chunks {
		hit := SearchHit{
			Rank:        i + 1,
			Score:       ch.Similarity,
			Content:     ch.Content,
			Highlight:   ch.Highlight,
			Preview:     preview(ch.Content),
			CaseLocator: fmt.Sprintf("%s/%s/%s", kb.RagflowDatasetID, ch.DocumentID, ch.ID),
		}
		if doc, ok := docsByRemote[ch.DocumentID]; ok {
			hit.DocumentID = doc.ID
			hit.DocumentName = doc.OriginalName
		} else if ch.DocumentN != "" {
			hit.DocumentName = ch.DocumentN
		}
		hits = append(hits, hit)
	}
	return hits
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}

// logSearch appends a usage row. Admin searches log with both actor columns
// empty so they still count toward totals. Logging failures never fail the
// search.
func (s *SearchService) logSearch(actor *Actor, kbID int64, query string, topK, results int) {
	entry := model.SearchLog{KBID: kbID, Query: query, TopK: topK, ResultCount: results}
	switch actor.Role {
	case model.RoleTeacher:
		id := actor.ID
		entry.TeacherID = &id
	case model.RoleStudent:
		id := actor.ID
		entry.StudentID = &id
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("failed to record search log: %v", err)
	}
}

// ChunkPreview returns the full content of one indexed chunk, cached briefly
// since the review UI tends to open the same chunks repeatedly.
func (s *SearchService) ChunkPreview(ctx context.Context, actor *Actor, documentID int64, chunkID string) (string, error) {
	var doc model.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("document not found")
		}
		return "", apperr.Internal("", err)
	}
	kb, err := s.scope.AuthorizeKB(actor, doc.KBID)
	if err != nil {
		return "", err
	}
	if doc.RagflowDocumentID == nil {
		return "", apperr.Conflict("document is not indexed")
	}

	cacheKey := fmt.Sprintf("chunk:%s:%s:%s", kb.RagflowDatasetID, *doc.RagflowDocumentID, chunkID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			return cached, nil
		}
	}

	chunks, err := s.rag.ListChunks(ctx, kb.RagflowDatasetID, *doc.RagflowDocumentID, 1, 100)
	if err != nil {
		return "", apperr.Upstream("failed to fetch chunks", err)
	}
	for _, ch := range chunks {
		if ch.ID == chunkID {
			if s.cache != nil {
				if err := s.cache.Set(ctx, cacheKey, ch.Content, chunkCacheTTL); err != nil {
					log.Printf("failed to cache chunk preview: %v", err)
				}
			}
			return ch.Content, nil
		}
	}
	return "", apperr.NotFound("chunk not found")
}
