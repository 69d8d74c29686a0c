package model

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation is a chat thread bound to one knowledge base. Exactly one of
// the two owner columns is set. The RAGFlow chat assistant and session are
// created lazily and rebuilt whenever the upstream loses them.
type Conversation struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	OwnerTeacherID      *int64    `gorm:"index" json:"owner_teacher_id,omitempty"`
	OwnerStudentID      *int64    `gorm:"index" json:"owner_student_id,omitempty"`
	KBID                int64     `gorm:"column:kb_id;index;not null" json:"kb_id"`
	Name                string    `gorm:"type:varchar(128);not null" json:"name"`
	RagflowChatID       string    `gorm:"type:varchar(64)" json:"ragflow_chat_id,omitempty"`
	RagflowSessionID    string    `gorm:"type:varchar(64)" json:"ragflow_session_id,omitempty"`
	ModelName           string    `gorm:"type:varchar(128)" json:"model_name,omitempty"`
	TopN                int       `gorm:"not null;default:5" json:"top_n"`
	SimilarityThreshold float64   `gorm:"type:decimal(4,3);not null;default:0.2" json:"similarity_threshold"`
	ShowCitations       bool      `gorm:"not null;default:true" json:"show_citations"`
	SystemPrompt        string    `gorm:"type:text" json:"system_prompt,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	KnowledgeBase *KnowledgeBase `gorm:"foreignKey:KBID" json:"knowledge_base,omitempty"`
	Messages      []Message      `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// Owner returns the tagged owner reference.
func (c *Conversation) Owner() Uploader {
	switch {
	case c.OwnerTeacherID != nil:
		return Uploader{Role: RoleTeacher, ID: *c.OwnerTeacherID}
	case c.OwnerStudentID != nil:
		return Uploader{Role: RoleStudent, ID: *c.OwnerStudentID}
	}
	return Uploader{}
}

// SenderRole tags a message with its author side.
type SenderRole string

const (
	SenderUser      SenderRole = "user"
	SenderAssistant SenderRole = "assistant"
	SenderSystem    SenderRole = "system"
)

// Message is one turn in a conversation. Reference carries the upstream
// citation payload verbatim for assistant turns.
type Message struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	ConversationID int64          `gorm:"index;not null" json:"conversation_id"`
	SenderRole     SenderRole     `gorm:"type:varchar(16);not null" json:"sender_role"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Reference      datatypes.JSON `gorm:"type:json" json:"reference,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
