package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockActorStore(t *testing.T) (*ActorStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &ActorStore{db: sqlx.NewDb(db, "postgres")}, mock
}

func TestActorStoreGetNotFound(t *testing.T) {
	store, mock := newMockActorStore(t)
	mock.ExpectQuery("SELECT .* FROM actors").
		WithArgs("T_abc", "T").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := store.Get(context.Background(), "T", "T_abc")
	require.True(t, apierr.Is(err, apierr.CodeNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActorStoreGetFound(t *testing.T) {
	store, mock := newMockActorStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"db_id", "tenant", "id", "name", "image", "owner", "api_server",
		"stateless", "default_environment", "status", "state", "created_at"}
	mock.ExpectQuery("SELECT .* FROM actors").
		WithArgs("T_abc", "T").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"T_abc", "T", "abc", "f", "hello:1", "alice", "https://api",
			false, []byte("{}"), "SUBMITTED", []byte("{}"), now))

	got, err := store.Get(context.Background(), "T", "T_abc")
	require.NoError(t, err)
	require.Equal(t, "f", got.Name)
	require.Equal(t, actor.StatusSubmitted, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActorStoreUpdateNoRowsIsNotFound(t *testing.T) {
	store, mock := newMockActorStore(t)
	mock.ExpectExec("UPDATE actors SET").
		WithArgs("hello:2", "T_abc", "T").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), "T", "T_abc", "image", "hello:2")
	require.True(t, apierr.Is(err, apierr.CodeNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
