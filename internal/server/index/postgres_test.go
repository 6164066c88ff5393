package index

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newwaysadmin/slipsync/internal/server/models"
)

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgres(db), mock, db
}

func TestPostgresUpsert(t *testing.T) {
	idx, mock, db := newPostgresWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`INSERT INTO project_index .* ON CONFLICT \(id\).*DO UPDATE SET .*`)
	mock.ExpectExec(q.String()).
		WithArgs("P1", int64(100), 2, "somchai", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := idx.Upsert(context.Background(), models.MetadataEntry{
		ID:           "P1",
		LastModified: 100,
		BillCount:    2,
		OwnerName:    "somchai",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertDBError(t *testing.T) {
	idx, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO project_index`).
		WillReturnError(errors.New("connection refused"))

	err := idx.Upsert(context.Background(), models.MetadataEntry{ID: "P1"})
	assert.Error(t, err)
}

func TestPostgresList(t *testing.T) {
	idx, mock, db := newPostgresWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "last_modified", "bill_count", "owner_name", "is_closed"}).
		AddRow("P1", int64(100), 1, "a", false).
		AddRow("P2", int64(200), 0, "b", true)

	mock.ExpectQuery(`SELECT id, last_modified, bill_count, owner_name, is_closed FROM project_index`).
		WillReturnRows(rows)

	entries, err := idx.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "P1", entries[0].ID)
	assert.True(t, entries[1].IsClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}
