package document

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/handlers"
	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/response"
)

type decisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// ListPending returns the admin review queue.
func (h *DocumentHandler) ListPending(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	result, err := h.audits.ListPending(actor, services.PendingFilter{
		Hint:     handlers.ScopeHintFromQuery(c),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, result.Documents, result.Pagination)
}

// Decide records an approval or rejection for a pending document.
func (h *DocumentHandler) Decide(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	doc, err := h.audits.Decide(c.Context(), actor, int64(id), model.AuditDecision(req.Decision), req.Reason)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, doc)
}

// ListDecided returns past review decisions.
func (h *DocumentHandler) ListDecided(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	result, err := h.audits.ListDecided(actor, services.DecidedFilter{
		Hint:     handlers.ScopeHintFromQuery(c),
		Decision: c.Query("decision"),
		Filename: c.Query("filename"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, result.Audits, result.Pagination)
}

// AuditDetail returns one review decision with its document and reviewer.
func (h *DocumentHandler) AuditDetail(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("audit_id")
	if err != nil {
		return response.BadRequest(c, "Invalid audit id")
	}

	audit, err := h.audits.Detail(actor, int64(id))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, audit)
}

// AuditHistory returns the decision trail for one document.
func (h *DocumentHandler) AuditHistory(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	audits, err := h.audits.History(actor, int64(id))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, audits)
}
