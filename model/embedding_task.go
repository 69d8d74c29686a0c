package model

import "time"

// EmbeddingTaskStatus tracks one indexing attempt against RAGFlow.
type EmbeddingTaskStatus string

const (
	EmbeddingTaskQueued  EmbeddingTaskStatus = "queued"
	EmbeddingTaskRunning EmbeddingTaskStatus = "running"
	EmbeddingTaskSuccess EmbeddingTaskStatus = "success"
	EmbeddingTaskFailed  EmbeddingTaskStatus = "failed"
)

// EmbeddingTask records one attempt to push an approved document into the
// retrieval index. The document's own status only advances to embedded when
// the task finishes successfully.
type EmbeddingTask struct {
	ID                   int64               `gorm:"primaryKey" json:"id"`
	DocumentID           int64               `gorm:"index;not null" json:"document_id"`
	TriggeredByTeacherID int64               `gorm:"index;not null" json:"triggered_by_teacher_id"`
	ChunkMethod          string              `gorm:"type:varchar(32);not null;default:table" json:"chunk_method"`
	Status               EmbeddingTaskStatus `gorm:"type:varchar(16);index;not null;default:queued" json:"status"`
	RagflowTaskID        string              `gorm:"type:varchar(64)" json:"ragflow_task_id,omitempty"`
	StartedAt            *time.Time          `json:"started_at,omitempty"`
	FinishedAt           *time.Time          `json:"finished_at,omitempty"`
	Message              string              `gorm:"type:text" json:"message,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`

	Document  *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	TriggerBy *Teacher  `gorm:"foreignKey:TriggeredByTeacherID" json:"triggered_by,omitempty"`
}
