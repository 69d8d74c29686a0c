package conversation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/handlers"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/response"
)

// ConversationHandler serves the chat thread endpoints.
type ConversationHandler struct {
	auth          *services.AuthService
	conversations *services.ConversationService
}

func NewConversationHandler(auth *services.AuthService, conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{auth: auth, conversations: conversations}
}

type createRequest struct {
	Name         string `json:"name"`
	ClassCode    string `json:"class_code"`
	KBID         int64  `json:"kb_id"`
	ModelName    string `json:"model_name"`
	SystemPrompt string `json:"system_prompt"`
}

// Create opens a new conversation on the actor's knowledge base.
func (h *ConversationHandler) Create(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	conv, err := h.conversations.Create(c.Context(), actor, services.CreateConversationInput{
		Hint:         services.ScopeHint{ClassCode: req.ClassCode, KBID: req.KBID},
		Name:         req.Name,
		ModelName:    req.ModelName,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, conv)
}

// List returns the actor's conversations.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	result, err := h.conversations.List(actor, services.ConversationFilter{
		KBID:            int64(c.QueryInt("kb_id")),
		Keyword:         c.Query("keyword"),
		WithLastMessage: c.QueryBool("with_last_message"),
		Page:            c.QueryInt("page", 1),
		PageSize:        c.QueryInt("page_size", 20),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, result.Conversations, result.Pagination)
}

// Get returns one conversation with its messages.
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	conv, err := h.conversations.Get(actor, int64(id))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, conv)
}

type messageRequest struct {
	Content string `json:"content"`
}

// SendMessage posts a question and returns both turns.
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	userMsg, assistantMsg, err := h.conversations.SendMessage(c.Context(), actor, int64(id), req.Content)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
	})
}

// UpdateSettings applies new retrieval settings to the thread.
func (h *ConversationHandler) UpdateSettings(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	var req services.ConversationSettings
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	conv, err := h.conversations.UpdateSettings(c.Context(), actor, int64(id), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, conv)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename changes the thread name.
func (h *ConversationHandler) Rename(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	conv, err := h.conversations.Rename(c.Context(), actor, int64(id), req.Name)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, conv)
}

// Clear wipes the thread's message history.
func (h *ConversationHandler) Clear(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	if err := h.conversations.Clear(c.Context(), actor, int64(id)); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// Delete removes the thread.
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid conversation id")
	}

	if err := h.conversations.Delete(c.Context(), actor, int64(id)); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
