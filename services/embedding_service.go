package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/apperr"
)

// EmbeddingService pushes approved documents into the retrieval index.
type EmbeddingService struct {
	db    *gorm.DB
	scope *ScopeService
	store ObjectStore
	rag   RAG
}

func NewEmbeddingService(db *gorm.DB, scope *ScopeService, store ObjectStore, rag RAG) *EmbeddingService {
	return &EmbeddingService{db: db, scope: scope, store: store, rag: rag}
}

// Run indexes one approved document. The task row is committed as running
// before any upstream call so a crash leaves a visible trace; on success the
// document advances to embedded, on failure it stays approved and the task
// records the error.
//
// Re-running after a partial failure is safe: a document that already has a
// remote id skips the upload and only retries parsing.
func (s *EmbeddingService) Run(ctx context.Context, actor *Actor, documentID int64, chunkMethod string) (*model.EmbeddingTask, error) {
	if actor.Role != model.RoleTeacher {
		return nil, apperr.Forbidden("only teachers can trigger indexing")
	}

	var doc model.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document not found")
		}
		return nil, apperr.Internal("", err)
	}
	kb, err := s.scope.AuthorizeKB(actor, doc.KBID)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusApproved && doc.Status != model.DocumentStatusEmbedded {
		return nil, apperr.Conflict("only approved documents can be indexed")
	}
	if kb.RagflowDatasetID == "" {
		return nil, apperr.Conflict("knowledge base has no dataset")
	}

	if chunkMethod == "" {
		chunkMethod = "table"
	}
	now := time.Now()
	task := &model.EmbeddingTask{
		DocumentID:           doc.ID,
		TriggeredByTeacherID: actor.ID,
		ChunkMethod:          chunkMethod,
		Status:               model.EmbeddingTaskRunning,
		StartedAt:            &now,
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	if err := s.index(ctx, &doc, kb, task); err != nil {
		finished := time.Now()
		s.db.Model(task).Updates(map[string]interface{}{
			"status":      model.EmbeddingTaskFailed,
			"finished_at": finished,
			"message":     err.Error(),
		})
		return nil, apperr.Upstream("indexing failed", err)
	}

	finished := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(task).Updates(map[string]interface{}{
			"status":      model.EmbeddingTaskSuccess,
			"finished_at": finished,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&doc).Update("status", model.DocumentStatusEmbedded).Error
	})
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	task.Status = model.EmbeddingTaskSuccess
	task.FinishedAt = &finished
	return task, nil
}

func (s *EmbeddingService) index(ctx context.Context, doc *model.Document, kb *model.KnowledgeBase, task *model.EmbeddingTask) error {
	remoteID := ""
	if doc.RagflowDocumentID != nil {
		remoteID = *doc.RagflowDocumentID
	}

	if remoteID == "" {
		content, err := s.store.Get(ctx, s.store.KnowledgeBucket(), doc.StoragePath)
		if err != nil {
			return err
		}
		remoteID, err = s.rag.UploadDocument(ctx, kb.RagflowDatasetID, doc.OriginalName, content)
		if err != nil {
			return err
		}
		if err := s.db.Model(doc).Update("ragflow_document_id", remoteID).Error; err != nil {
			return err
		}
		doc.RagflowDocumentID = &remoteID
	}

	task.RagflowTaskID = remoteID
	s.db.Model(task).Update("ragflow_task_id", remoteID)

	return s.rag.ParseDocuments(ctx, kb.RagflowDatasetID, []string{remoteID})
}

// Tasks returns the indexing history for one document, newest first.
func (s *EmbeddingService) Tasks(actor *Actor, documentID int64) ([]model.EmbeddingTask, error) {
	var doc model.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document not found")
		}
		return nil, apperr.Internal("", err)
	}
	if _, err := s.scope.AuthorizeKB(actor, doc.KBID); err != nil {
		return nil, err
	}

	var tasks []model.EmbeddingTask
	if err := s.db.Where("document_id = ?", documentID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, apperr.Internal("", err)
	}
	return tasks, nil
}
