package interests

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreateAndGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO interests \(id, type, name\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("i-1", "project", "apollo").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, type, name FROM interests WHERE id = \$1`).
		WithArgs("i-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "name"}).AddRow("i-1", "project", "apollo"))

	in := &models.Interest{ID: "i-1", Type: "project", Name: "apollo"}
	require.NoError(t, repo.Create(context.Background(), in))

	got, err := repo.GetByID(context.Background(), "i-1")
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, type, name FROM interests`).
		WithArgs("i-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "i-404")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGrantAndHasGrant(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT INTO interest_grants .* ON CONFLICT DO NOTHING`).
		WithArgs("i-1", "u-2", common.CapabilityDeleteArtefact).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)SELECT EXISTS \(.*FROM interest_grants g\s+JOIN users u`).
		WithArgs("i-1", "bob", common.CapabilityDeleteArtefact).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, repo.Grant(context.Background(), &models.InterestGrant{
		InterestID: "i-1", UserID: "u-2", Capability: common.CapabilityDeleteArtefact,
	}))

	ok, err := repo.HasGrant(context.Background(), "i-1", "bob", common.CapabilityDeleteArtefact)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasGrant_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("db down"))

	_, err := repo.HasGrant(context.Background(), "i-1", "u-2", common.CapabilityReadArtefact)
	assert.ErrorContains(t, err, "db down")
}
