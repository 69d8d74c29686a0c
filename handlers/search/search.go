package search

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/handlers"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/response"
)

// SearchHandler serves retrieval queries and usage reporting.
type SearchHandler struct {
	auth   *services.AuthService
	search *services.SearchService
}

func NewSearchHandler(auth *services.AuthService, search *services.SearchService) *SearchHandler {
	return &SearchHandler{auth: auth, search: search}
}

type searchRequest struct {
	Question            string   `json:"question"`
	ClassCode           string   `json:"class_code"`
	KBID                int64    `json:"kb_id"`
	TopK                int      `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	Highlight           bool     `json:"highlight"`
}

// Search runs one retrieval query against the actor's knowledge base.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.search.Search(c.Context(), actor, services.SearchInput{
		Hint:                services.ScopeHint{ClassCode: req.ClassCode, KBID: req.KBID},
		Question:            req.Question,
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
		Highlight:           req.Highlight,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, result)
}

// Logs returns search history visible to the actor.
func (h *SearchHandler) Logs(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	filter := services.LogFilter{
		KBID:     int64(c.QueryInt("kb_id", 0)),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return response.BadRequest(c, "from must be YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return response.BadRequest(c, "to must be YYYY-MM-DD")
		}
		filter.To = &t
	}

	result, err := h.search.Logs(actor, filter)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, result.Logs, result.Pagination)
}

// Stats aggregates search usage for admins.
func (h *SearchHandler) Stats(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	stats, err := h.search.Stats(actor, int64(c.QueryInt("kb_id", 0)), c.QueryInt("days", 30))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, stats)
}

// ChunkPreview returns the full content of one indexed chunk.
func (h *SearchHandler) ChunkPreview(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}
	chunkID := c.Params("chunk_id")
	if chunkID == "" {
		return response.BadRequest(c, "Chunk id is required")
	}

	content, err := h.search.ChunkPreview(c.Context(), actor, int64(id), chunkID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"chunk_id": chunkID, "content": content})
}
