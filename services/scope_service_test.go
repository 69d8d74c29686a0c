package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/casehub/utils/apperr"
)

func TestResolveKBStudentLockedToOwnClass(t *testing.T) {
	db := testDB(t)
	f := seedFixtures(t, db)
	scope := NewScopeService(db)

	kb, err := scope.ResolveKB(f.studentActor(), ScopeHint{})
	require.NoError(t, err)
	assert.Equal(t, f.KB1.ID, kb.ID)

	// Hints pointing at another class are rejected, not silently honored.
	_, err = scope.ResolveKB(f.studentActor(), ScopeHint{ClassCode: f.Class2.ClassCode})
	requireStatus(t, err, 403)

	_, err = scope.ResolveKB(f.studentActor(), ScopeHint{KBID: f.KB2.ID})
	requireStatus(t, err, 403)

	// Naming their own class is fine.
	kb, err = scope.ResolveKB(f.studentActor(), ScopeHint{ClassCode: f.Class1.ClassCode})
	require.NoError(t, err)
	assert.Equal(t, f.KB1.ID, kb.ID)
}

func TestResolveKBTeacherAutoSelect(t *testing.T) {
	db := testDB(t)
	f := seedFixtures(t, db)
	scope := NewScopeService(db)

	// One class: auto-selected.
	kb, err := scope.ResolveKB(f.teacher1Actor(), ScopeHint{})
	require.NoError(t, err)
	assert.Equal(t, f.KB1.ID, kb.ID)

	// Two classes and no hint: ambiguous.
	_, err = scope.ResolveKB(f.teacher2Actor(), ScopeHint{})
	requireStatus(t, err, 400)

	// Two classes with a hint: resolved.
	kb, err = scope.ResolveKB(f.teacher2Actor(), ScopeHint{ClassCode: f.Class3.ClassCode})
	require.NoError(t, err)
	assert.Equal(t, f.KB3.ID, kb.ID)

	// A class the teacher does not own is forbidden.
	_, err = scope.ResolveKB(f.teacher1Actor(), ScopeHint{ClassCode: f.Class2.ClassCode})
	requireStatus(t, err, 403)
}

func TestResolveKBAdminMustNameAClass(t *testing.T) {
	db := testDB(t)
	f := seedFixtures(t, db)
	scope := NewScopeService(db)

	_, err := scope.ResolveKB(f.adminActor(), ScopeHint{})
	requireStatus(t, err, 400)

	kb, err := scope.ResolveKB(f.adminActor(), ScopeHint{ClassCode: f.Class2.ClassCode})
	require.NoError(t, err)
	assert.Equal(t, f.KB2.ID, kb.ID)

	_, err = scope.ResolveKB(f.adminActor(), ScopeHint{ClassCode: "NOPE"})
	requireStatus(t, err, 404)
}

func TestResolveListScope(t *testing.T) {
	db := testDB(t)
	f := seedFixtures(t, db)
	scope := NewScopeService(db)

	// Admin without a hint lists everything.
	ls, err := scope.ResolveListScope(f.adminActor(), ScopeHint{})
	require.NoError(t, err)
	assert.True(t, ls.Unscoped)

	// A teacher with several classes lists all of them.
	ls, err = scope.ResolveListScope(f.teacher2Actor(), ScopeHint{})
	require.NoError(t, err)
	assert.False(t, ls.Unscoped)
	assert.ElementsMatch(t, []int64{f.KB2.ID, f.KB3.ID}, ls.KBIDs)

	// Students always collapse to their own knowledge base.
	ls, err = scope.ResolveListScope(f.studentActor(), ScopeHint{})
	require.NoError(t, err)
	assert.Equal(t, []int64{f.KB1.ID}, ls.KBIDs)
}

func TestAuthorizeKB(t *testing.T) {
	db := testDB(t)
	f := seedFixtures(t, db)
	scope := NewScopeService(db)

	_, err := scope.AuthorizeKB(f.adminActor(), f.KB3.ID)
	require.NoError(t, err)

	_, err = scope.AuthorizeKB(f.teacher1Actor(), f.KB2.ID)
	requireStatus(t, err, 403)

	_, err = scope.AuthorizeKB(f.studentActor(), f.KB1.ID)
	require.NoError(t, err)

	_, err = scope.AuthorizeKB(f.studentActor(), f.KB2.ID)
	requireStatus(t, err, 403)
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected an application error, got %v", err)
	require.Equal(t, status, e.Status, "wrong status for %v", err)
}
