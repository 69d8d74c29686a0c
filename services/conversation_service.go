package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/ragflow"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/response"
)

// defaultSystemPrompt instructs the assistant to answer strictly from the
// retrieved knowledge. The {knowledge} placeholder is where RAGFlow injects
// retrieved chunks.
const defaultSystemPrompt = "You are a knowledge base assistant. Answer the question using only the provided knowledge. " +
	"If the knowledge does not contain the answer, say so.\n\nKnowledge:\n{knowledge}"

// ConversationService manages chat threads over a knowledge base. The local
// row is the source of truth; the RAGFlow chat assistant and session behind
// it are created on demand and rebuilt whenever the upstream loses them.
type ConversationService struct {
	db    *gorm.DB
	scope *ScopeService
	rag   RAG
}

func NewConversationService(db *gorm.DB, scope *ScopeService, rag RAG) *ConversationService {
	return &ConversationService{db: db, scope: scope, rag: rag}
}

// CreateConversationInput opens a new thread.
type CreateConversationInput struct {
	Hint         ScopeHint
	Name         string
	ModelName    string
	SystemPrompt string
}

// Create opens a conversation for a teacher or student on their knowledge
// base. The upstream assistant is created eagerly so the first message does
// not pay the setup cost, but a failure there only logs: SendMessage will
// rebuild it.
func (s *ConversationService) Create(ctx context.Context, actor *Actor, in CreateConversationInput) (*model.Conversation, error) {
	if actor.Role != model.RoleTeacher && actor.Role != model.RoleStudent {
		return nil, apperr.Forbidden("only teachers and students can start conversations")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidInput("name is required")
	}

	kb, err := s.scope.ResolveKB(actor, in.Hint)
	if err != nil {
		return nil, err
	}

	conv := &model.Conversation{
		KBID:                kb.ID,
		Name:                name,
		ModelName:           in.ModelName,
		TopN:                5,
		SimilarityThreshold: 0.2,
		ShowCitations:       true,
		SystemPrompt:        normalizePrompt(in.SystemPrompt),
	}
	switch actor.Role {
	case model.RoleTeacher:
		id := actor.ID
		conv.OwnerTeacherID = &id
	case model.RoleStudent:
		id := actor.ID
		conv.OwnerStudentID = &id
	}

	if err := s.db.Create(conv).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	if err := s.ensureChat(ctx, conv, kb); err != nil {
		log.Printf("deferred chat setup for conversation %d: %v", conv.ID, err)
	}
	return conv, nil
}

// normalizePrompt guarantees the prompt carries the {knowledge} placeholder,
// appending a knowledge section when the caller's prompt lacks one.
func normalizePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	if !strings.Contains(prompt, "{knowledge}") {
		prompt += "\n\nKnowledge:\n{knowledge}"
	}
	return prompt
}

// List returns the actor's own conversations, most recently updated first.
// ConversationFilter narrows a conversation listing.
type ConversationFilter struct {
	KBID            int64
	Keyword         string
	WithLastMessage bool
	Page            int
	PageSize        int
}

// ConversationListResult is one page of conversations.
type ConversationListResult struct {
	Conversations []model.Conversation
	Pagination    response.PaginationMeta
}

func (s *ConversationService) List(actor *Actor, filter ConversationFilter) (*ConversationListResult, error) {
	query := s.db.Model(&model.Conversation{})
	switch actor.Role {
	case model.RoleTeacher:
		query = query.Where("owner_teacher_id = ?", actor.ID)
	case model.RoleStudent:
		query = query.Where("owner_student_id = ?", actor.ID)
	default:
		return nil, apperr.Forbidden("only teachers and students have conversations")
	}
	if filter.KBID != 0 {
		query = query.Where("kb_id = ?", filter.KBID)
	}
	if filter.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+filter.Keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	meta := response.CalculatePagination(filter.Page, filter.PageSize, total)
	var convs []model.Conversation
	err := query.Order("updated_at DESC").
		Offset((meta.CurrentPage - 1) * meta.PerPage).
		Limit(meta.PerPage).
		Find(&convs).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	if filter.WithLastMessage {
		for i := range convs {
			var last model.Message
			err := s.db.Where("conversation_id = ?", convs[i].ID).
				Order("created_at DESC, id DESC").
				First(&last).Error
			if err == nil {
				convs[i].Messages = []model.Message{last}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Internal("", err)
			}
		}
	}
	return &ConversationListResult{Conversations: convs, Pagination: meta}, nil
}

// Get returns one conversation with its message history.
func (s *ConversationService) Get(actor *Actor, conversationID int64) (*model.Conversation, error) {
	conv, err := s.owned(actor, conversationID)
	if err != nil {
		return nil, err
	}
	var messages []model.Message
	if err := s.db.Where("conversation_id = ?", conv.ID).Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	conv.Messages = messages
	return conv, nil
}

// SendMessage posts the user's question and returns both the persisted user
// turn and the assistant's reply. The user message survives even when the
// upstream completion fails, so the thread shows what was asked.
func (s *ConversationService) SendMessage(ctx context.Context, actor *Actor, conversationID int64, content string) (*model.Message, *model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperr.InvalidInput("message content is required")
	}

	conv, err := s.owned(actor, conversationID)
	if err != nil {
		return nil, nil, err
	}
	kb, err := s.scope.AuthorizeKB(actor, conv.KBID)
	if err != nil {
		return nil, nil, err
	}

	userMsg := &model.Message{
		ConversationID: conv.ID,
		SenderRole:     model.SenderUser,
		Content:        content,
	}
	if err := s.db.Create(userMsg).Error; err != nil {
		return nil, nil, apperr.Internal("", err)
	}

	if err := s.ensureChat(ctx, conv, kb); err != nil {
		return userMsg, nil, apperr.Upstream("chat assistant unavailable", err)
	}
	if err := s.ensureSession(ctx, conv); err != nil {
		return userMsg, nil, apperr.Upstream("chat session unavailable", err)
	}

	completion, err := s.rag.Complete(ctx, conv.RagflowChatID, conv.RagflowSessionID, content)
	if err != nil {
		// A stale session is rebuilt once before giving up.
		if rebuildErr := s.rebuildSession(ctx, conv); rebuildErr == nil {
			completion, err = s.rag.Complete(ctx, conv.RagflowChatID, conv.RagflowSessionID, content)
		}
		if err != nil {
			return userMsg, nil, apperr.Upstream("completion failed", err)
		}
	}

	assistantMsg := &model.Message{
		ConversationID: conv.ID,
		SenderRole:     model.SenderAssistant,
		Content:        completion.Answer,
	}
	if len(completion.Reference) > 0 {
		assistantMsg.Reference = datatypes.JSON(completion.Reference)
	}
	if err := s.db.Create(assistantMsg).Error; err != nil {
		return userMsg, nil, apperr.Internal("", err)
	}
	s.db.Model(conv).Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP"))

	return userMsg, assistantMsg, nil
}

// ConversationSettings are the tunables a user may change on their thread.
type ConversationSettings struct {
	ModelName           *string  `json:"model_name"`
	TopN                *int     `json:"top_n"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	ShowCitations       *bool    `json:"show_citations"`
	SystemPrompt        *string  `json:"system_prompt"`
}

// UpdateSettings applies new retrieval settings locally and pushes them to
// the upstream assistant when one exists.
func (s *ConversationService) UpdateSettings(ctx context.Context, actor *Actor, conversationID int64, in ConversationSettings) (*model.Conversation, error) {
	conv, err := s.owned(actor, conversationID)
	if err != nil {
		return nil, err
	}

	if in.ModelName != nil {
		conv.ModelName = *in.ModelName
	}
	if in.TopN != nil {
		if *in.TopN < 1 || *in.TopN > 30 {
			return nil, apperr.InvalidInput("top_n must be between 1 and 30")
		}
		conv.TopN = *in.TopN
	}
	if in.SimilarityThreshold != nil {
		if *in.SimilarityThreshold < 0 || *in.SimilarityThreshold > 1 {
			return nil, apperr.InvalidInput("similarity_threshold must be between 0 and 1")
		}
		conv.SimilarityThreshold = *in.SimilarityThreshold
	}
	if in.ShowCitations != nil {
		conv.ShowCitations = *in.ShowCitations
	}
	if in.SystemPrompt != nil {
		conv.SystemPrompt = normalizePrompt(*in.SystemPrompt)
	}

	if conv.RagflowChatID != "" {
		if err := s.rag.UpdateChat(ctx, conv.RagflowChatID, conv.Name, s.chatSettings(conv)); err != nil {
			return nil, apperr.Upstream("failed to update chat assistant", err)
		}
	}

	if err := s.db.Save(conv).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	return conv, nil
}

// Rename changes the thread name, upstream first so a RAGFlow failure leaves
// both sides consistent.
func (s *ConversationService) Rename(ctx context.Context, actor *Actor, conversationID int64, name string) (*model.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidInput("name is required")
	}
	conv, err := s.owned(actor, conversationID)
	if err != nil {
		return nil, err
	}

	if conv.RagflowChatID != "" && conv.RagflowSessionID != "" {
		if err := s.rag.RenameSession(ctx, conv.RagflowChatID, conv.RagflowSessionID, name); err != nil {
			return nil, apperr.Upstream("failed to rename chat session", err)
		}
	}

	if err := s.db.Model(conv).Update("name", name).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	conv.Name = name
	return conv, nil
}

// Clear deletes the message history. The upstream session is replaced with a
// fresh one so the assistant also forgets the thread.
func (s *ConversationService) Clear(ctx context.Context, actor *Actor, conversationID int64) error {
	conv, err := s.owned(actor, conversationID)
	if err != nil {
		return err
	}

	if err := s.db.Where("conversation_id = ?", conv.ID).Delete(&model.Message{}).Error; err != nil {
		return apperr.Internal("", err)
	}

	if conv.RagflowChatID != "" && conv.RagflowSessionID != "" {
		if err := s.rebuildSession(ctx, conv); err != nil {
			log.Printf("failed to rebuild session for conversation %d: %v", conv.ID, err)
		}
	}
	return nil
}

// Delete removes the thread and its upstream assistant.
func (s *ConversationService) Delete(ctx context.Context, actor *Actor, conversationID int64) error {
	conv, err := s.owned(actor, conversationID)
	if err != nil {
		return err
	}

	if conv.RagflowChatID != "" {
		if err := s.rag.DeleteChats(ctx, []string{conv.RagflowChatID}); err != nil {
			log.Printf("failed to delete chat assistant %s: %v", conv.RagflowChatID, err)
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, conv.ID).Error
	})
	if err != nil {
		return apperr.Internal("", err)
	}
	return nil
}

// owned loads a conversation and enforces that the actor owns it.
func (s *ConversationService) owned(actor *Actor, conversationID int64) (*model.Conversation, error) {
	var conv model.Conversation
	if err := s.db.First(&conv, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, apperr.Internal("", err)
	}
	owner := conv.Owner()
	if owner.Role != actor.Role || owner.ID != actor.ID {
		return nil, apperr.Forbidden("not your conversation")
	}
	return &conv, nil
}

func (s *ConversationService) chatSettings(conv *model.Conversation) ragflow.ChatSettings {
	return ragflow.ChatSettings{
		ModelName:           conv.ModelName,
		SystemPrompt:        conv.SystemPrompt,
		TopN:                conv.TopN,
		SimilarityThreshold: conv.SimilarityThreshold,
		ShowCitations:       conv.ShowCitations,
	}
}

// ensureChat creates the upstream assistant when the conversation has none.
// Assistant names are globally unique on the RAGFlow side, so the class code
// and a short random suffix are folded in.
func (s *ConversationService) ensureChat(ctx context.Context, conv *model.Conversation, kb *model.KnowledgeBase) error {
	if conv.RagflowChatID != "" {
		return nil
	}
	if kb.RagflowDatasetID == "" {
		return fmt.Errorf("knowledge base %d has no dataset", kb.ID)
	}

	var class model.Class
	if err := s.db.First(&class, kb.ClassID).Error; err != nil {
		return err
	}

	chatName := fmt.Sprintf("%s-%s-%s", class.ClassCode, conv.Name, uuid.NewString()[:8])
	chatID, err := s.rag.CreateChat(ctx, chatName, []string{kb.RagflowDatasetID}, s.chatSettings(conv))
	if err != nil {
		return err
	}
	if err := s.db.Model(conv).Update("ragflow_chat_id", chatID).Error; err != nil {
		return err
	}
	conv.RagflowChatID = chatID
	return nil
}

// ensureSession opens an upstream session when the conversation has none.
func (s *ConversationService) ensureSession(ctx context.Context, conv *model.Conversation) error {
	if conv.RagflowSessionID != "" {
		return nil
	}
	sessionID, err := s.rag.CreateSession(ctx, conv.RagflowChatID, conv.Name)
	if err != nil {
		return err
	}
	if err := s.db.Model(conv).Update("ragflow_session_id", sessionID).Error; err != nil {
		return err
	}
	conv.RagflowSessionID = sessionID
	return nil
}

// rebuildSession discards the current upstream session and opens a new one.
func (s *ConversationService) rebuildSession(ctx context.Context, conv *model.Conversation) error {
	if conv.RagflowChatID == "" {
		return fmt.Errorf("conversation %d has no chat assistant", conv.ID)
	}
	if conv.RagflowSessionID != "" {
		if err := s.rag.DeleteSessions(ctx, conv.RagflowChatID, []string{conv.RagflowSessionID}); err != nil {
			log.Printf("failed to delete stale session %s: %v", conv.RagflowSessionID, err)
		}
		conv.RagflowSessionID = ""
	}
	return s.ensureSession(ctx, conv)
}
