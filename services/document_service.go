package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/storage"
	"github.com/casehub/casehub/utils/apperr"
	"github.com/casehub/casehub/utils/pdfvalidation"
	"github.com/casehub/casehub/utils/response"
)

// allowedExtensions are the file types accepted into a knowledge base.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// DocumentService owns the document lifecycle: upload into review, listing,
// content access, rename and removal. Approval itself lives in AuditService.
type DocumentService struct {
	db    *gorm.DB
	scope *ScopeService
	store ObjectStore
	rag   RAG
}

func NewDocumentService(db *gorm.DB, scope *ScopeService, store ObjectStore, rag RAG) *DocumentService {
	return &DocumentService{db: db, scope: scope, store: store, rag: rag}
}

// UploadInput is one file heading into a knowledge base.
type UploadInput struct {
	Hint     ScopeHint
	Filename string
	Content  []byte
}

// UploadResult reports the stored document. ContentDuplicate warns that
// another live document in the same knowledge base has identical bytes; the
// upload still succeeds and the colliding document is named so the caller
// can point at it.
type UploadResult struct {
	Document              *model.Document `json:"document"`
	ContentDuplicate      bool            `json:"content_duplicate"`
	DuplicateDocumentID   *int64          `json:"duplicate_document_id,omitempty"`
	DuplicateDocumentName string          `json:"duplicate_document_name,omitempty"`
}

// Upload stores a file and registers it in the review pipeline. Student
// uploads land in the pending bucket awaiting an admin decision; teacher and
// admin uploads go straight into the knowledge bucket as approved.
//
// A live document with the same original name in the knowledge base is a
// conflict. A rejected one is reused in place: same row, fresh object, so the
// name becomes available again without losing audit history.
func (s *DocumentService) Upload(ctx context.Context, actor *Actor, in UploadInput) (*UploadResult, error) {
	name := strings.TrimSpace(in.Filename)
	if name == "" || len(in.Content) == 0 {
		return nil, apperr.InvalidInput("a non-empty file is required")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return nil, apperr.InvalidInput("unsupported file type: " + ext)
	}
	if ext == ".pdf" {
		result, err := pdfvalidation.ValidatePDFBytes(in.Content, pdfvalidation.KnowledgeDocLimits)
		if err != nil {
			return nil, apperr.Internal("", err)
		}
		if !result.Valid {
			return nil, apperr.InvalidInput(result.Error)
		}
	}

	kb, err := s.scope.ResolveKB(actor, in.Hint)
	if err != nil {
		return nil, err
	}

	// A same-name document that is not rejected blocks the upload; a
	// rejected one frees its slot for reuse.
	var existing model.Document
	err = s.db.Where("kb_id = ? AND original_name = ?", kb.ID, name).First(&existing).Error
	var reuse *model.Document
	switch {
	case err == nil && existing.Status != model.DocumentStatusRejected:
		return nil, apperr.Conflict("a document with this name already exists")
	case err == nil:
		reuse = &existing
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal("", err)
	}

	sum := sha256.Sum256(in.Content)
	contentHash := hex.EncodeToString(sum[:])

	// Identical bytes elsewhere in the knowledge base are advisory only;
	// the earliest colliding document is reported back by id and name.
	dupQuery := s.db.Where("kb_id = ? AND content_hash = ? AND status <> ?", kb.ID, contentHash, model.DocumentStatusRejected)
	if reuse != nil {
		dupQuery = dupQuery.Where("id <> ?", reuse.ID)
	}
	var duplicate model.Document
	foundDuplicate := true
	if err := dupQuery.Order("uploaded_at ASC").First(&duplicate).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Internal("", err)
		}
		foundDuplicate = false
	}

	bucket := s.store.PendingBucket()
	status := model.DocumentStatusPending
	if actor.Role == model.RoleTeacher || actor.Role == model.RoleAdmin {
		bucket = s.store.KnowledgeBucket()
		status = model.DocumentStatusApproved
	}

	key := storage.GenerateKey(kb.ID, name)
	contentType := storage.GetContentType(name)
	if err := s.store.Put(ctx, bucket, key, in.Content, contentType); err != nil {
		return nil, apperr.Upstream("failed to store file", err)
	}

	doc, err := s.persistUpload(ctx, actor, kb, reuse, persistedUpload{
		originalName: name,
		key:          key,
		contentHash:  contentHash,
		mimeType:     contentType,
		size:         int64(len(in.Content)),
		status:       status,
	})
	if err != nil {
		// The object was written before the row; take it back out.
		if rmErr := s.store.Remove(ctx, bucket, key); rmErr != nil {
			log.Printf("upload cleanup failed for %s/%s: %v", bucket, key, rmErr)
		}
		return nil, err
	}

	result := &UploadResult{Document: doc, ContentDuplicate: foundDuplicate}
	if foundDuplicate {
		result.DuplicateDocumentID = &duplicate.ID
		result.DuplicateDocumentName = duplicate.OriginalName
	}
	return result, nil
}

type persistedUpload struct {
	originalName string
	key          string
	contentHash  string
	mimeType     string
	size         int64
	status       model.DocumentStatus
}

func (s *DocumentService) persistUpload(ctx context.Context, actor *Actor, kb *model.KnowledgeBase, reuse *model.Document, up persistedUpload) (*model.Document, error) {
	var doc *model.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if reuse != nil {
			// The rejected predecessor's object is gone once this upload
			// takes its slot.
			oldKey := reuse.StoragePath
			reuse.Filename = up.originalName
			reuse.SizeBytes = up.size
			reuse.MimeType = up.mimeType
			reuse.ContentHash = up.contentHash
			reuse.RagflowDocumentID = nil
			reuse.Status = up.status
			reuse.StoragePath = up.key
			// The slot carries a fresh upload now; it sorts as new again.
			reuse.UploadedAt = time.Now()
			reuse.SetUploader(model.Uploader{Role: actor.Role, ID: actor.ID})
			if err := tx.Save(reuse).Error; err != nil {
				return err
			}
			doc = reuse
			if oldKey != "" && oldKey != up.key {
				if err := s.store.Remove(ctx, s.store.PendingBucket(), oldKey); err != nil {
					log.Printf("failed to remove replaced object %s: %v", oldKey, err)
				}
			}
			return nil
		}

		d := &model.Document{
			KBID:         kb.ID,
			Filename:     up.originalName,
			OriginalName: up.originalName,
			SizeBytes:    up.size,
			MimeType:     up.mimeType,
			ContentHash:  up.contentHash,
			Status:       up.status,
			StoragePath:  up.key,
		}
		d.SetUploader(model.Uploader{Role: actor.Role, ID: actor.ID})
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent same-name upload.
			return nil, apperr.Conflict("a document with this name already exists")
		}
		return nil, apperr.Internal("", err)
	}
	return doc, nil
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Hint     ScopeHint
	Statuses []model.DocumentStatus
	Filename string
	Page     int
	PageSize int
}

// ListResult is one page of documents.
type ListResult struct {
	Documents  []model.Document        `json:"documents"`
	Pagination response.PaginationMeta `json:"pagination"`
}

// List returns documents visible to the actor. Without an explicit status
// filter only live content (approved, embedded) is shown; pending and
// rejected rows are reserved for admins.
func (s *DocumentService) List(actor *Actor, filter ListFilter) (*ListResult, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []model.DocumentStatus{model.DocumentStatusApproved, model.DocumentStatusEmbedded}
	}
	if actor.Role != model.RoleAdmin {
		for _, st := range statuses {
			if st == model.DocumentStatusPending || st == model.DocumentStatusRejected {
				return nil, apperr.Forbidden("only admins can list pending or rejected documents")
			}
		}
	}

	scope, err := s.scope.ResolveListScope(actor, filter.Hint)
	if err != nil {
		return nil, err
	}

	query := s.db.Model(&model.Document{}).Where("status IN ?", statuses)
	if !scope.Unscoped {
		query = query.Where("kb_id IN ?", scope.KBIDs)
	}
	if filter.Filename != "" {
		query = query.Where("original_name LIKE ?", "%"+filter.Filename+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	meta := response.CalculatePagination(filter.Page, filter.PageSize, total)
	var docs []model.Document
	err = query.Order("uploaded_at DESC").
		Offset((meta.CurrentPage - 1) * meta.PerPage).
		Limit(meta.PerPage).
		Find(&docs).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}

	return &ListResult{Documents: docs, Pagination: meta}, nil
}

// SearchByNameInput narrows a name search within the resolved scope.
type SearchByNameInput struct {
	Hint            ScopeHint
	Name            string
	IncludePending  bool
	IncludeRejected bool
	Limit           int
}

// SearchByName finds documents whose name contains the query, scoped to one
// knowledge base. Pending rows are visible to teachers and admins on request;
// rejected rows only to admins.
func (s *DocumentService) SearchByName(actor *Actor, in SearchByNameInput) ([]model.Document, error) {
	if in.Name == "" {
		return nil, apperr.InvalidInput("name is required")
	}
	if in.IncludePending && actor.Role == model.RoleStudent {
		return nil, apperr.Forbidden("students cannot search pending documents")
	}
	if in.IncludeRejected && actor.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can search rejected documents")
	}

	kb, err := s.scope.ResolveKB(actor, in.Hint)
	if err != nil {
		return nil, err
	}

	statuses := []model.DocumentStatus{model.DocumentStatusApproved, model.DocumentStatusEmbedded}
	if in.IncludePending {
		statuses = append(statuses, model.DocumentStatusPending)
	}
	if in.IncludeRejected {
		statuses = append(statuses, model.DocumentStatusRejected)
	}

	limit := in.Limit
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var docs []model.Document
	err = s.db.Where("kb_id = ? AND status IN ?", kb.ID, statuses).
		Where("original_name LIKE ?", "%"+in.Name+"%").
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	return docs, nil
}

// UploaderInfo resolves the uploader reference into a displayable account.
type UploaderInfo struct {
	Role      model.Role `json:"role"`
	ID        int64      `json:"id"`
	AccountNo string     `json:"account_no"`
	Name      string     `json:"name"`
}

// DocumentDetail is the full per-document view: the row with its class and
// knowledge base, the resolved uploader, and where to fetch the bytes.
type DocumentDetail struct {
	Document   *model.Document `json:"document"`
	Uploader   *UploaderInfo   `json:"uploader,omitempty"`
	ContentURL string          `json:"content_url"`
}

// Detail returns one document with its knowledge base, class and uploader
// resolved.
func (s *DocumentService) Detail(actor *Actor, documentID int64) (*DocumentDetail, error) {
	doc, _, err := s.authorizedDocument(actor, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Preload("KnowledgeBase.Class").First(doc, doc.ID).Error; err != nil {
		return nil, apperr.Internal("", err)
	}

	detail := &DocumentDetail{
		Document:   doc,
		ContentURL: fmt.Sprintf("/api/v1/documents/%d/content", doc.ID),
	}
	if up := doc.Uploader(); !up.IsZero() {
		info := &UploaderInfo{Role: up.Role, ID: up.ID}
		switch up.Role {
		case model.RoleAdmin:
			var a model.Admin
			if err := s.db.First(&a, up.ID).Error; err == nil {
				info.AccountNo, info.Name = a.AdminNo, a.Name
			}
		case model.RoleTeacher:
			var tr model.Teacher
			if err := s.db.First(&tr, up.ID).Error; err == nil {
				info.AccountNo, info.Name = tr.TeacherNo, tr.Name
			}
		case model.RoleStudent:
			var st model.Student
			if err := s.db.First(&st, up.ID).Error; err == nil {
				info.AccountNo, info.Name = st.StudentNo, st.Name
			}
		}
		detail.Uploader = info
	}
	return detail, nil
}

// Content returns the stored file bytes. Students may only read live
// documents; the review states stay between uploader, teacher and admin.
func (s *DocumentService) Content(ctx context.Context, actor *Actor, documentID int64) (*model.Document, []byte, error) {
	doc, _, err := s.authorizedDocument(actor, documentID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role == model.RoleStudent &&
		doc.Status != model.DocumentStatusApproved && doc.Status != model.DocumentStatusEmbedded {
		if up := doc.Uploader(); up.Role != model.RoleStudent || up.ID != actor.ID {
			return nil, nil, apperr.Forbidden("")
		}
	}

	data, err := s.store.Get(ctx, s.bucketFor(doc.Status), doc.StoragePath)
	if err != nil {
		return nil, nil, apperr.Upstream("failed to fetch file", err)
	}
	return doc, data, nil
}

// Rename changes a document's display name. The previous name is snapshotted
// as a version row, and the indexed copy is renamed when one exists.
func (s *DocumentService) Rename(ctx context.Context, actor *Actor, documentID int64, newName string) (*model.Document, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, apperr.InvalidInput("name is required")
	}

	doc, kb, err := s.authorizedDocument(actor, documentID)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleStudent {
		return nil, apperr.Forbidden("students cannot rename documents")
	}
	if newName == doc.OriginalName {
		return doc, nil
	}

	var clash int64
	err = s.db.Model(&model.Document{}).
		Where("kb_id = ? AND original_name = ? AND status <> ? AND id <> ?",
			doc.KBID, newName, model.DocumentStatusRejected, doc.ID).
		Count(&clash).Error
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if clash > 0 {
		return nil, apperr.Conflict("a document with this name already exists")
	}

	if doc.RagflowDocumentID != nil && kb.RagflowDatasetID != "" {
		if err := s.rag.RenameDocument(ctx, kb.RagflowDatasetID, *doc.RagflowDocumentID, newName); err != nil {
			return nil, apperr.Upstream("failed to rename indexed document", err)
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var lastVersion int
		row := tx.Model(&model.DocumentVersion{}).
			Where("document_id = ?", doc.ID).
			Select("COALESCE(MAX(version_no), 0)").
			Row()
		if err := row.Scan(&lastVersion); err != nil {
			return err
		}
		version := &model.DocumentVersion{
			DocumentID:  doc.ID,
			VersionNo:   lastVersion + 1,
			Filename:    doc.OriginalName,
			StoragePath: doc.StoragePath,
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}
		return tx.Model(doc).Updates(map[string]interface{}{
			"original_name": newName,
			"filename":      newName,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("a document with this name already exists")
		}
		return nil, apperr.Internal("", err)
	}

	doc.OriginalName = newName
	doc.Filename = newName
	return doc, nil
}

// Delete removes a document everywhere: the retrieval index, the object
// store, and the database with its audit, version and task history.
func (s *DocumentService) Delete(ctx context.Context, actor *Actor, documentID int64) error {
	doc, kb, err := s.authorizedDocument(actor, documentID)
	if err != nil {
		return err
	}
	if actor.Role == model.RoleStudent {
		return apperr.Forbidden("students cannot delete documents")
	}

	if doc.RagflowDocumentID != nil && kb.RagflowDatasetID != "" {
		if err := s.rag.DeleteDocuments(ctx, kb.RagflowDatasetID, []string{*doc.RagflowDocumentID}); err != nil {
			// The local copy still goes away; the orphaned index entry is
			// harmless and gets cleaned up by the next dataset rebuild.
			log.Printf("failed to delete indexed document %s: %v", *doc.RagflowDocumentID, err)
		}
	}

	if err := s.store.Remove(ctx, s.bucketFor(doc.Status), doc.StoragePath); err != nil {
		return apperr.Upstream("failed to delete stored file", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.DocumentAudit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.DocumentVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.EmbeddingTask{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, doc.ID).Error
	})
	if err != nil {
		return apperr.Internal("", err)
	}
	return nil
}

// authorizedDocument loads a document and verifies the actor can reach its
// knowledge base.
func (s *DocumentService) authorizedDocument(actor *Actor, documentID int64) (*model.Document, *model.KnowledgeBase, error) {
	var doc model.Document
	if err := s.db.First(&doc, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("document not found")
		}
		return nil, nil, apperr.Internal("", err)
	}
	kb, err := s.scope.AuthorizeKB(actor, doc.KBID)
	if err != nil {
		return nil, nil, err
	}
	return &doc, kb, nil
}

// bucketFor maps a document status to the bucket its object lives in.
// Pending and rejected objects stay in the pending bucket; approval moves
// the object into the knowledge bucket.
func (s *DocumentService) bucketFor(status model.DocumentStatus) string {
	if status == model.DocumentStatusPending || status == model.DocumentStatusRejected {
		return s.store.PendingBucket()
	}
	return s.store.KnowledgeBucket()
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
