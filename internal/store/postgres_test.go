package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var snapshotColumns = []string{"id", "query", "body", "result_count", "captured_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS search_snapshots`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO search_snapshots`).
		WithArgs(pgxmock.AnyArg(), "para", []byte(paraBody), 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap, err := s.SaveSnapshot(context.Background(), "para", []byte(paraBody), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "para", snap.Query)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MigrateStoresBodyAsBytes(t *testing.T) {
	assert.Contains(t, postgresMigration, "body         BYTEA NOT NULL")
	assert.NotContains(t, postgresMigration, "JSONB")
}

func TestPostgresStore_BodyKeepsKeyOrder(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO search_snapshots`).
		WithArgs(pgxmock.AnyArg(), "ibu", []byte(unsortedBody), 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id, query, body, result_count, captured_at FROM search_snapshots`).
		WithArgs("ibu").
		WillReturnRows(pgxmock.NewRows(snapshotColumns).
			AddRow("snap-1", "ibu", []byte(unsortedBody), 1, now))

	_, err := s.SaveSnapshot(context.Background(), "ibu", []byte(unsortedBody), 1)
	require.NoError(t, err)

	snap, err := s.LatestSnapshot(context.Background(), "ibu")
	require.NoError(t, err)
	require.NotNil(t, snap)

	results, err := snap.Results()
	require.NoError(t, err)
	require.Len(t, results, 1)
	strengths, ok := results[0].Strengths("tablet")
	require.True(t, ok)
	assert.Equal(t, []string{"500mg", "250mg"}, strengths.Keys())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO search_snapshots`).
		WithArgs(pgxmock.AnyArg(), "para", []byte(paraBody), 1, pgxmock.AnyArg()).
		WillReturnError(errors.New("connection lost"))

	_, err := s.SaveSnapshot(context.Background(), "para", []byte(paraBody), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert snapshot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, query, body, result_count, captured_at FROM search_snapshots`).
		WithArgs("para").
		WillReturnRows(pgxmock.NewRows(snapshotColumns).
			AddRow("snap-1", "para", []byte(paraBody), 1, now))

	snap, err := s.LatestSnapshot(context.Background(), "para")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, paraBody, string(snap.Body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, query, body, result_count, captured_at FROM search_snapshots`).
		WithArgs("aspirin").
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.LatestSnapshot(context.Background(), "aspirin")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSnapshot(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots_WithQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE query = \$3 ORDER BY captured_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0, "para").
		WillReturnRows(pgxmock.NewRows(snapshotColumns).
			AddRow("snap-2", "para", []byte(paraBody), 1, now).
			AddRow("snap-1", "para", []byte(paraBody), 1, now.Add(-time.Minute)))

	snaps, err := s.ListSnapshots(context.Background(), SnapshotFilter{Query: "para", Limit: 10})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-2", snaps[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSnapshots_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`ORDER BY captured_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(defaultListLimit, 0).
		WillReturnRows(pgxmock.NewRows(snapshotColumns))

	snaps, err := s.ListSnapshots(context.Background(), SnapshotFilter{})
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSnapshotsBefore(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := time.Now()

	mock.ExpectExec(`DELETE FROM search_snapshots WHERE captured_at < \$1`).
		WithArgs(cutoff.UTC()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteSnapshotsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
