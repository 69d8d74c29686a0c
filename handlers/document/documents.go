package document

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/casehub/casehub/handlers"
	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services"
	"github.com/casehub/casehub/utils/response"
)

// DocumentHandler serves the document lifecycle endpoints.
type DocumentHandler struct {
	auth      *services.AuthService
	documents *services.DocumentService
	audits    *services.AuditService
	embedding *services.EmbeddingService
}

func NewDocumentHandler(auth *services.AuthService, documents *services.DocumentService, audits *services.AuditService, embedding *services.EmbeddingService) *DocumentHandler {
	return &DocumentHandler{
		auth:      auth,
		documents: documents,
		audits:    audits,
		embedding: embedding,
	}
}

// Upload accepts a multipart file upload into the actor's knowledge base.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "A file upload is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Unable to read uploaded file")
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return response.BadRequest(c, "Unable to read uploaded file")
	}

	hint := handlers.ScopeHintFromQuery(c)
	if v := c.FormValue("class_code"); v != "" {
		hint.ClassCode = v
	}
	if v, err := strconv.ParseInt(c.FormValue("kb_id"), 10, 64); err == nil {
		hint.KBID = v
	}

	result, err := h.documents.Upload(c.Context(), actor, services.UploadInput{
		Hint:     hint,
		Filename: fileHeader.Filename,
		Content:  content,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, result)
}

// List returns documents visible to the actor with status and name filters.
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	var statuses []model.DocumentStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := model.ParseDocumentStatus(strings.TrimSpace(part))
			if !ok {
				return response.BadRequest(c, "Unknown status filter: "+part)
			}
			statuses = append(statuses, st)
		}
	}

	result, err := h.documents.List(actor, services.ListFilter{
		Hint:     handlers.ScopeHintFromQuery(c),
		Statuses: statuses,
		Filename: c.Query("filename"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, result.Documents, result.Pagination)
}

// Search finds documents by name within the actor's scope.
func (h *DocumentHandler) Search(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}

	docs, err := h.documents.SearchByName(actor, services.SearchByNameInput{
		Hint:            handlers.ScopeHintFromQuery(c),
		Name:            c.Query("name"),
		IncludePending:  c.QueryBool("include_pending"),
		IncludeRejected: c.QueryBool("include_rejected"),
		Limit:           c.QueryInt("limit", 20),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, docs)
}

// Get returns one document's metadata.
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	detail, err := h.documents.Detail(actor, int64(id))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, detail)
}

// Content streams the stored file back to the caller.
func (h *DocumentHandler) Content(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	doc, data, err := h.documents.Content(c.Context(), actor, int64(id))
	if err != nil {
		return response.FromError(c, err)
	}

	disposition := "attachment"
	if c.QueryBool("inline") {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition,
		disposition+`; filename="`+safeASCIIFilename(doc.OriginalName)+`"; filename*=UTF-8''`+url.PathEscape(doc.OriginalName))
	return c.Send(data)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename changes a document's display name.
func (h *DocumentHandler) Rename(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	doc, err := h.documents.Rename(c.Context(), actor, int64(id), req.Name)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, doc)
}

// safeASCIIFilename strips characters that would break a quoted
// Content-Disposition filename; the filename* parameter carries the real name.
func safeASCIIFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Delete removes a document everywhere.
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	actor, err := handlers.RequireActor(c, h.auth)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := c.ParamsInt("id")
	if err != nil {
		return response.BadRequest(c, "Invalid document id")
	}

	if err := h.documents.Delete(c.Context(), actor, int64(id)); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
