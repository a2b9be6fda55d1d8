// Package storage defines the five store contracts (actors, executions,
// workers, logs, permissions) and the atomic per-field update primitive
// they all share, matching C1 of the control plane design: interface
// objects over get/set/update/delete/items so the same calling code runs
// against an in-memory map in tests and a distributed KV in production.
package storage

import (
	"context"

	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/domain/worker"
)

// ActorStore is the tenant-scoped view over actors_store (key = db_id).
// Get/Update/Delete all take the tenant explicitly. When the stored record's
// tenant does not match, Get and Update return apierr.NotFound and Delete
// leaves the record in place and returns nil, closing the "no tenant check
// on get_dbid" gap.
type ActorStore interface {
	Get(ctx context.Context, tenant, dbID string) (*actor.Actor, error)
	Set(ctx context.Context, a *actor.Actor) error
	Update(ctx context.Context, tenant, dbID, field string, value interface{}) error
	Delete(ctx context.Context, tenant, dbID string) error
	List(ctx context.Context, tenant string) ([]*actor.Actor, error)
}

// ExecutionStore is the tenant-scoped view over executions_store (key =
// actor_db_id -> map of execution_id -> record).
type ExecutionStore interface {
	Get(ctx context.Context, actorDBID, executionID string) (*execution.Execution, error)
	Set(ctx context.Context, e *execution.Execution) error
	Update(ctx context.Context, actorDBID, executionID, field string, value interface{}) error
	Delete(ctx context.Context, actorDBID, executionID string) error
	List(ctx context.Context, actorDBID string) ([]*execution.Execution, error)
	// DeleteAllForActor removes every execution belonging to actorDBID; part
	// of the DELETE-cascade (see Open Question decision #3 in SPEC_FULL.md).
	DeleteAllForActor(ctx context.Context, actorDBID string) error
}

// WorkerStore is the view over the worker population of an actor.
type WorkerStore interface {
	Get(ctx context.Context, actorDBID, workerID string) (*worker.Worker, error)
	// Request atomically reserves a new worker id and inserts a REQUESTED record.
	Request(ctx context.Context, w *worker.Worker) error
	Update(ctx context.Context, actorDBID, workerID, field string, value interface{}) error
	Delete(ctx context.Context, actorDBID, workerID string) error
	List(ctx context.Context, actorDBID string) ([]*worker.Worker, error)
	DeleteAllForActor(ctx context.Context, actorDBID string) error
}

// LogStore is the view over logs_store (key = execution_id).
type LogStore interface {
	Get(ctx context.Context, executionID string) (string, error)
	Set(ctx context.Context, executionID, text string) error
	Append(ctx context.Context, executionID, text string) error
	Delete(ctx context.Context, executionID string) error
}

// PermissionStore is the view over permissions_store (key = actor_db_id ->
// map of user -> level).
type PermissionStore interface {
	Get(ctx context.Context, actorDBID, user string) (permission.Level, error)
	Set(ctx context.Context, actorDBID, user string, level permission.Level) error
	Delete(ctx context.Context, actorDBID, user string) error
	DeleteAll(ctx context.Context, actorDBID string) error
	List(ctx context.Context, actorDBID string) ([]permission.Grant, error)
}

// Stores bundles the five store contracts the rest of the application
// depends on. A nil field is filled in with the in-memory implementation by
// applyDefaults, matching the teacher's functional-option wiring pattern.
type Stores struct {
	Actors      ActorStore
	Executions  ExecutionStore
	Workers     WorkerStore
	Logs        LogStore
	Permissions PermissionStore
}

// applyDefaults fills any nil store field with an in-memory implementation.
func (s *Stores) applyDefaults() {
	mem := NewMemoryStores()
	if s.Actors == nil {
		s.Actors = mem.Actors
	}
	if s.Executions == nil {
		s.Executions = mem.Executions
	}
	if s.Workers == nil {
		s.Workers = mem.Workers
	}
	if s.Logs == nil {
		s.Logs = mem.Logs
	}
	if s.Permissions == nil {
		s.Permissions = mem.Permissions
	}
}

// Normalize returns a Stores value with every nil field replaced by the
// in-memory default, for use by callers building an Application without
// wiring every store explicitly (tests, single-process dev mode).
func Normalize(s Stores) Stores {
	s.applyDefaults()
	return s
}
