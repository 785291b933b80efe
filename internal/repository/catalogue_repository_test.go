package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

func TestRoleListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	now := time.Now()
	active := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE 1=1 AND active = $1 AND LOWER(name) LIKE $2 ORDER BY name ASC LIMIT 10 OFFSET 10")).
		WithArgs(true, "%doc%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "active", "created_at", "updated_at"}).
			AddRow("r1", "Doctor", nil, true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roles WHERE 1=1 AND active = $1")).
		WithArgs(true, "%doc%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	roles, total, err := repo.List(context.Background(), models.RoleFilter{Active: &active, Search: "Doc", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleDeleteCascades(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM permissions WHERE role_id = $1")).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_roles WHERE role_id = $1")).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM roles WHERE id = $1")).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentDeleteMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM permissions WHERE document_id = $1")).WithArgs("d404").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM module_documents WHERE document_id = $1")).WithArgs("d404").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).WithArgs("d404").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "d404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListByIDsShortCircuits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	docs, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListByPathAllowsDuplicates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE path = $1 ORDER BY id")).
		WithArgs("/patients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "path", "display_order", "active", "created_at", "updated_at"}).
			AddRow("d1", "Patient List", "/patients", 1, true, now, now).
			AddRow("d2", "Patient List (legacy)", "/patients", 9, false, now, now))

	docs, err := repo.ListByPath(context.Background(), "/patients")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.False(t, docs[1].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM modules WHERE id = $1")).WithArgs("m404").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "m404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleListActiveOrdersForPresentation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM modules WHERE active = TRUE ORDER BY display_order ASC, name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "display_order", "active", "created_at", "updated_at"}).
			AddRow("m1", "Patient Management", nil, 1, true, now, now))

	modules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, "Patient Management", modules[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		page, size     int
		limit, offset int
	}{
		{0, 0, 20, 0},
		{3, 10, 10, 20},
		{1, 500, 20, 0},
		{-2, 5, 5, 0},
	}
	for _, tc := range cases {
		limit, offset := pageBounds(tc.page, tc.size)
		assert.Equal(t, tc.limit, limit)
		assert.Equal(t, tc.offset, offset)
	}
}
