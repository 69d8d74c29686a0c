package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/response"
)

// AuditService implements the admin review workflow over pending documents.
type AuditService struct {
	db    *gorm.DB
	scope *ScopeService
	store ObjectStore
}

func NewAuditService(db *gorm.DB, scope *ScopeService, store ObjectStore) *AuditService {
	return &AuditService{db: db, scope: scope, store: store}
}

// Decide records an admin's approval or rejection of a pending document.
//
// Approval moves the stored object from the pending bucket into the
// knowledge bucket before anything is committed; if the move fails the
// document stays pending and the decision is not recorded. The audit row
// and the status change commit together.
func (s *AuditService) Decide(ctx context.Context, actor *Actor, documentID int64, decision model.AuditDecision, reason string) (*model.Document, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can review documents")
	}
	if decision != model.AuditDecisionApproved && decision != model.AuditDecisionRejected {
		return nil, apperr.InvalidInput("decision must be approved or rejected")
	}

	var doc model.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document not found")
		}
		return nil, apperr.Internal("", err)
	}
	if doc.Status != model.DocumentStatusPending {
		return nil, apperr.Conflict("document is not pending review")
	}

	newStatus := model.DocumentStatusRejected
	if decision == model.AuditDecisionApproved {
		newStatus = model.DocumentStatusApproved

		// Copy-then-delete so a crash between the two leaves the object
		// readable in at least one bucket.
		if err := s.store.Copy(ctx, s.store.PendingBucket(), s.store.KnowledgeBucket(), doc.StoragePath); err != nil {
			return nil, apperr.Upstream("failed to move file into knowledge storage", err)
		}
		if err := s.store.Remove(ctx, s.store.PendingBucket(), doc.StoragePath); err != nil {
			return nil, apperr.Upstream("failed to remove file from pending storage", err)
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		audit := &model.DocumentAudit{
			DocumentID: doc.ID,
			AdminID:    actor.ID,
			Decision:   decision,
			Reason:     reason,
		}
		if err := tx.Create(audit).Error; err != nil {
			return err
		}
		return tx.Model(&doc).Update("status", newStatus).Error
	})
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	doc.Status = newStatus
	return &doc, nil
}

// PendingFilter narrows the review queue.
type PendingFilter struct {
	Hint     ScopeHint
	Page     int
	PageSize int
}

// ListPending returns the admin review queue, oldest uploads first.
func (s *AuditService) ListPending(actor *Actor, filter PendingFilter) (*ListResult, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can review documents")
	}

	scope, err := s.scope.ResolveListScope(actor, filter.Hint)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&model.Document{}).Where("status = ?", model.DocumentStatusPending)
	if !scope.Unscoped {
		query = query.Where("kb_id IN ?", scope.KBIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	meta := response.CalculatePagination(filter.Page, filter.PageSize, total)
	var docs []model.Document
	err = query.Order("uploaded_at ASC").
		Offset((meta.CurrentPage - 1) * meta.PerPage).
		Limit(meta.PerPage).
		Find(&docs).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	return &ListResult{Documents: docs, Pagination: meta}, nil
}

// DecidedFilter narrows the decided-audit listing.
type DecidedFilter struct {
	Hint     ScopeHint
	Decision string
	Filename string
	Page     int
	PageSize int
}

// AuditListResult is one page of review decisions.
type AuditListResult struct {
	Audits     []model.DocumentAudit
	Pagination response.PaginationMeta
}

// ListDecided returns past review decisions, newest first. Admin only.
func (s *AuditService) ListDecided(actor *Actor, filter DecidedFilter) (*AuditListResult, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can view review decisions")
	}

	scope, err := s.scope.ResolveListScope(actor, filter.Hint)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&model.DocumentAudit{}).
		Joins("JOIN documents ON documents.id = document_audits.document_id")
	if !scope.Unscoped {
		query = query.Where("documents.kb_id IN ?", scope.KBIDs)
	}
	if filter.Decision != "" {
		if filter.Decision != string(model.AuditDecisionApproved) && filter.Decision != string(model.AuditDecisionRejected) {
			return nil, apperr.InvalidInput("decision must be approved or rejected")
		}
		query = query.Where("document_audits.decision = ?", filter.Decision)
	}
	if filter.Filename != "" {
		query = query.Where("documents.original_name LIKE ?", "%"+filter.Filename+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	meta := response.CalculatePagination(filter.Page, filter.PageSize, total)
	var audits []model.DocumentAudit
	err = query.Preload("Admin").Preload("Document").
		Order("document_audits.decided_at DESC").
		Offset((meta.CurrentPage - 1) * meta.PerPage).
		Limit(meta.PerPage).
		Find(&audits).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	return &AuditListResult{Audits: audits, Pagination: meta}, nil
}

// Detail returns one review decision with its document and reviewer. Admin only.
func (s *AuditService) Detail(actor *Actor, auditID int64) (*model.DocumentAudit, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can view review decisions")
	}

	var audit model.DocumentAudit
	err := s.db.Preload("Admin").Preload("Document").First(&audit, auditID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("audit record not found")
		}
		return nil, apperr.Internal("", err)
	}
	return &audit, nil
}

// History returns the decision trail for one document, newest first.
func (s *AuditService) History(actor *Actor, documentID int64) ([]model.DocumentAudit, error) {
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

	var audits []model.DocumentAudit
	err := s.db.Preload("Admin").
		Where("document_id = ?", documentID).
		Order("decided_at DESC").
		Find(&audits).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	return audits, nil
}
