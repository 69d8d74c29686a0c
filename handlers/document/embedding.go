package document

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/handlers"
	"github.com/casehub/casehub/utils/response"
)

type embedRequest struct {
	ChunkMethod string `json:"chunk_method"`
}

// Embed pushes an approved document into the retrieval index.
func (h *DocumentHandler) Embed(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	var req embedRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return response.BadRequest(c, "Invalid request body")
	}

	task, err := h.embedding.Run(c.Context(), actor, int64(id), req.ChunkMethod)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, task)
}

// EmbeddingTasks returns the indexing history for one document.
func (h *DocumentHandler) EmbeddingTasks(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	tasks, err := h.embedding.Tasks(actor, int64(id))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, tasks)
}
