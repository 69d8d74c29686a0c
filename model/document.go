package model

import "time"

// DocumentStatus tracks a document through the review pipeline.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
	DocumentStatusEmbedded DocumentStatus = "embedded"
)

// ParseDocumentStatus validates a status value coming from a request filter.
func ParseDocumentStatus(s string) (DocumentStatus, bool) {
	switch DocumentStatus(s) {
	case DocumentStatusPending, DocumentStatusApproved, DocumentStatusRejected, DocumentStatusEmbedded:
		return DocumentStatus(s), true
	}
	return "", false
}

// Document is a file registered in a knowledge base. OriginalName must be
// unique within the knowledge base across every status except rejected;
// a rejected row is reused in place when the same name is uploaded again.
//
// Exactly one of the three uploader columns is set, depending on the role
// that performed the upload; use Uploader/SetUploader rather than touching
// the columns directly.
type Document struct {
	ID                int64          `gorm:"primaryKey" json:"id"`
	KBID              int64          `gorm:"column:kb_id;index;not null;uniqueIndex:uq_documents_kb_original_name" json:"kb_id"`
	Filename          string         `gorm:"type:varchar(255);not null" json:"filename"`
	OriginalName      string         `gorm:"type:varchar(255);not null;uniqueIndex:uq_documents_kb_original_name" json:"original_name"`
	UploaderAdminID   *int64         `gorm:"index" json:"uploader_admin_id,omitempty"`
	UploaderTeacherID *int64         `gorm:"index" json:"uploader_teacher_id,omitempty"`
	UploaderStudentID *int64         `gorm:"index" json:"uploader_student_id,omitempty"`
	SizeBytes         int64          `gorm:"not null" json:"size_bytes"`
	MimeType          string         `gorm:"type:varchar(128)" json:"mime_type"`
	ContentHash       string         `gorm:"type:varchar(64);index" json:"content_hash"`
	RagflowDocumentID *string        `gorm:"type:varchar(64);uniqueIndex" json:"ragflow_document_id,omitempty"`
	Status            DocumentStatus `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	StoragePath       string         `gorm:"type:varchar(512);not null" json:"storage_path"`
	UploadedAt        time.Time      `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	KnowledgeBase *KnowledgeBase `gorm:"foreignKey:KBID" json:"knowledge_base,omitempty"`
}

// Uploader returns the tagged uploader reference, or the zero value when no
// uploader column is set.
func (d *Document) Uploader() Uploader {
	switch {
	case d.UploaderAdminID != nil:
		return Uploader{Role: RoleAdmin, ID: *d.UploaderAdminID}
	case d.UploaderTeacherID != nil:
		return Uploader{Role: RoleTeacher, ID: *d.UploaderTeacherID}
	case d.UploaderStudentID != nil:
		return Uploader{Role: RoleStudent, ID: *d.UploaderStudentID}
	}
	return Uploader{}
}

// SetUploader clears all three uploader columns and sets the one matching u.
func (d *Document) SetUploader(u Uploader) {
	d.UploaderAdminID, d.UploaderTeacherID, d.UploaderStudentID = nil, nil, nil
	id := u.ID
	switch u.Role {
	case RoleAdmin:
		d.UploaderAdminID = &id
	case RoleTeacher:
		d.UploaderTeacherID = &id
	case RoleStudent:
		d.UploaderStudentID = &id
	}
}

// AuditDecision is the outcome an admin records for a pending document.
type AuditDecision string

const (
	AuditDecisionApproved AuditDecision = "approved"
	AuditDecisionRejected AuditDecision = "rejected"
)

// DocumentAudit records one review decision. Rows are append-only.
type DocumentAudit struct {
	ID         int64         `gorm:"primaryKey" json:"id"`
	DocumentID int64         `gorm:"index;not null" json:"document_id"`
	AdminID    int64         `gorm:"index;not null" json:"admin_id"`
	Decision   AuditDecision `gorm:"type:varchar(16);not null" json:"decision"`
	Reason     string        `gorm:"type:text" json:"reason,omitempty"`
	DecidedAt  time.Time     `gorm:"autoCreateTime" json:"decided_at"`

	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	Admin    *Admin    `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
}

// DocumentVersion snapshots a document's name and storage path before a
// rename, so earlier labels stay recoverable.
type DocumentVersion struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	DocumentID  int64     `gorm:"index;not null" json:"document_id"`
	VersionNo   int       `gorm:"not null" json:"version_no"`
	Filename    string    `gorm:"type:varchar(255);not null" json:"filename"`
	StoragePath string    `gorm:"type:varchar(512);not null" json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}
