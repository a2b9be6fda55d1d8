// Package postgres implements the five store contracts on top of
// PostgreSQL, using sqlx for struct scanning and named-parameter queries.
// Each store contract gets its own small type sharing one connection pool,
// rather than one type implementing all five interfaces: ActorStore.Get and
// ExecutionStore.Get have different signatures and cannot both be methods
// of a single Go type.
package postgres

import (
	"database/sql"

	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
	"github.com/tacc-cloud/abaco/internal/app/domain/worker"
	"github.com/tacc-cloud/abaco/internal/app/storage"
	"github.com/jmoiron/sqlx"
)

// ActorStore implements storage.ActorStore over PostgreSQL.
type ActorStore struct{ db *sqlx.DB }

// ExecutionStore implements storage.ExecutionStore over PostgreSQL.
type ExecutionStore struct{ db *sqlx.DB }

// WorkerStore implements storage.WorkerStore over PostgreSQL.
type WorkerStore struct{ db *sqlx.DB }

// LogStore implements storage.LogStore over PostgreSQL.
type LogStore struct{ db *sqlx.DB }

// PermissionStore implements storage.PermissionStore over PostgreSQL.
type PermissionStore struct{ db *sqlx.DB }

var (
	_ storage.ActorStore      = (*ActorStore)(nil)
	_ storage.ExecutionStore  = (*ExecutionStore)(nil)
	_ storage.WorkerStore     = (*WorkerStore)(nil)
	_ storage.LogStore        = (*LogStore)(nil)
	_ storage.PermissionStore = (*PermissionStore)(nil)
)

// NewStores wraps an existing *sql.DB (as opened by
// internal/platform/database) with sqlx and builds every store contract
// against it.
func NewStores(db *sql.DB) storage.Stores {
	sx := sqlx.NewDb(db, "postgres")
	return storage.Stores{
		Actors:      &ActorStore{db: sx},
		Executions:  &ExecutionStore{db: sx},
		Workers:     &WorkerStore{db: sx},
		Logs:        &LogStore{db: sx},
		Permissions: &PermissionStore{db: sx},
	}
}

// toStatusString normalizes the polymorphic status value a store Update
// call may receive (the typed enum from any of the three domains, or a
// plain string) into the text this package persists.
func toStatusString(value interface{}) string {
	switch v := value.(type) {
	case actor.Status:
		return string(v)
	case execution.Status:
		return string(v)
	case worker.Status:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}
