package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/casehub/model"
)

func newAuditWorld(t *testing.T) (*AuditService, *DocumentService, *fakeStore, fixtures) {
	t.Helper()
	db := testDB(t)
	f := seedFixtures(t, db)
	store := newFakeStore()
	scope := NewScopeService(db)
	docs := NewDocumentService(db, scope, store, newFakeRAG())
	return NewAuditService(db, scope, store), docs, store, f
}

func TestDecideApprovalMovesObject(t *testing.T) {
	audits, docs, store, f := newAuditWorld(t)
	ctx := context.Background()

	up, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "p.txt", Content: []byte("p")})
	require.NoError(t, err)

	doc, err := audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecisionApproved, "looks good")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusApproved, doc.Status)

	// Object moved pending -> knowledge.
	_, err = store.Get(ctx, "knowledge", doc.StoragePath)
	assert.NoError(t, err)
	_, err = store.Get(ctx, "pending", doc.StoragePath)
	assert.Error(t, err)

	var audit model.DocumentAudit
	require.NoError(t, audits.db.Where("document_id = ?", doc.ID).First(&audit).Error)
	assert.Equal(t, model.AuditDecisionApproved, audit.Decision)
	assert.Equal(t, "looks good", audit.Reason)
	assert.Equal(t, f.Admin.ID, audit.AdminID)
}

func TestDecideRejectionKeepsObjectInPending(t *testing.T) {
	audits, docs, store, f := newAuditWorld(t)
	ctx := context.Background()

	up, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "p.txt", Content: []byte("p")})
	require.NoError(t, err)

	doc, err := audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecisionRejected, "off topic")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusRejected, doc.Status)

	_, err = store.Get(ctx, "pending", doc.StoragePath)
	assert.NoError(t, err, "rejected objects stay in the pending bucket")
	assert.Zero(t, store.copies)
}

func TestDecideGuards(t *testing.T) {
	audits, docs, _, f := newAuditWorld(t)
	ctx := context.Background()

	up, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "p.txt", Content: []byte("p")})
	require.NoError(t, err)

	// Only admins decide.
	_, err = audits.Decide(ctx, f.teacher1Actor(), up.Document.ID, model.AuditDecisionApproved, "")
	requireStatus(t, err, 403)

	// A decision can only be made once.
	_, err = audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecisionApproved, "")
	require.NoError(t, err)
	_, err = audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecisionRejected, "")
	requireStatus(t, err, 409)

	// Unknown decisions are rejected.
	_, err = audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecision("maybe"), "")
	requireStatus(t, err, 400)
}

func TestListPendingIsAdminOnlyOldestFirst(t *testing.T) {
	audits, docs, _, f := newAuditWorld(t)
	ctx := context.Background()

	_, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "first.txt", Content: []byte("1")})
	require.NoError(t, err)
	_, err = docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "second.txt", Content: []byte("2")})
	require.NoError(t, err)

	_, err = audits.ListPending(f.teacher1Actor(), PendingFilter{})
	requireStatus(t, err, 403)

	result, err := audits.ListPending(f.adminActor(), PendingFilter{})
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "first.txt", result.Documents[0].OriginalName)
}

func TestListDecidedFiltersAndOrder(t *testing.T) {
	audits, docs, _, f := newAuditWorld(t)
	ctx := context.Background()

	first, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "first.txt", Content: []byte("1")})
	require.NoError(t, err)
	second, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "second.txt", Content: []byte("2")})
	require.NoError(t, err)

	_, err = audits.Decide(ctx, f.adminActor(), first.Document.ID, model.AuditDecisionApproved, "")
	require.NoError(t, err)
	_, err = audits.Decide(ctx, f.adminActor(), second.Document.ID, model.AuditDecisionRejected, "dup")
	require.NoError(t, err)

	_, err = audits.ListDecided(f.teacher1Actor(), DecidedFilter{})
	requireStatus(t, err, 403)

	result, err := audits.ListDecided(f.adminActor(), DecidedFilter{})
	require.NoError(t, err)
	require.Len(t, result.Audits, 2)
	require.NotNil(t, result.Audits[0].Document)
	require.NotNil(t, result.Audits[0].Admin)

	rejected, err := audits.ListDecided(f.adminActor(), DecidedFilter{Decision: "rejected"})
	require.NoError(t, err)
	require.Len(t, rejected.Audits, 1)
	assert.Equal(t, second.Document.ID, rejected.Audits[0].DocumentID)

	byName, err := audits.ListDecided(f.adminActor(), DecidedFilter{Filename: "first"})
	require.NoError(t, err)
	require.Len(t, byName.Audits, 1)
	assert.Equal(t, first.Document.ID, byName.Audits[0].DocumentID)

	_, err = audits.ListDecided(f.adminActor(), DecidedFilter{Decision: "maybe"})
	requireStatus(t, err, 400)
}

func TestAuditDetail(t *testing.T) {
	audits, docs, _, f := newAuditWorld(t)
	ctx := context.Background()

	up, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "p.txt", Content: []byte("p")})
	require.NoError(t, err)
	_, err = audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecisionApproved, "fine")
	require.NoError(t, err)

	var row model.DocumentAudit
	require.NoError(t, audits.db.Where("document_id = ?", up.Document.ID).First(&row).Error)

	_, err = audits.Detail(f.teacher1Actor(), row.ID)
	requireStatus(t, err, 403)

	audit, err := audits.Detail(f.adminActor(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, "fine", audit.Reason)
	require.NotNil(t, audit.Document)
	assert.Equal(t, "p.txt", audit.Document.OriginalName)

	_, err = audits.Detail(f.adminActor(), 99999)
	requireStatus(t, err, 404)
}

func TestDecideApprovalStorageFailureLeavesPending(t *testing.T) {
	audits, docs, store, f := newAuditWorld(t)
	ctx := context.Background()

	up, err := docs.Upload(ctx, f.studentActor(), UploadInput{Filename: "p.txt", Content: []byte("p")})
	require.NoError(t, err)

	store.failCopy = true
	_, err = audits.Decide(ctx, f.adminActor(), up.Document.ID, model.AuditDecisionApproved, "")
	requireStatus(t, err, 502)

	// Nothing was committed: the document is still pending with no audit
	// row, and the object never left the pending bucket.
	var doc model.Document
	require.NoError(t, audits.db.First(&doc, up.Document.ID).Error)
	assert.Equal(t, model.DocumentStatusPending, doc.Status)

	var auditCount int64
	require.NoError(t, audits.db.Model(&model.DocumentAudit{}).Where("document_id = ?", doc.ID).Count(&auditCount).Error)
	assert.Zero(t, auditCount)

	_, err = store.Get(ctx, "pending", doc.StoragePath)
	assert.NoError(t, err)

	// The decision goes through once the store recovers.
	store.failCopy = false
	decided, err := audits.Decide(ctx, f.adminActor(), doc.ID, model.AuditDecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusApproved, decided.Status)
}
