package storage

import (
	"context"
	"sync"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/domain/worker"
)

// NewMemoryStores builds a fresh, empty set of in-memory stores. A single
// mutex per store is sufficient: spec.md §5 requires per-key atomic update,
// not high-throughput fine-grained locking, and leaf records are small maps.
func NewMemoryStores() Stores {
	return Stores{
		Actors:      newMemoryActorStore(),
		Executions:  newMemoryExecutionStore(),
		Workers:     newMemoryWorkerStore(),
		Logs:        newMemoryLogStore(),
		Permissions: newMemoryPermissionStore(),
	}
}

// --- actors ---

type memoryActorStore struct {
	mu    sync.Mutex
	byKey map[string]*actor.Actor
}

func newMemoryActorStore() *memoryActorStore {
	return &memoryActorStore{byKey: map[string]*actor.Actor{}}
}

func (s *memoryActorStore) Get(_ context.Context, tenant, dbID string) (*actor.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byKey[dbID]
	if !ok || a.Tenant != tenant {
		return nil, apierr.NotFound("actor %s not found", dbID)
	}
	cp := *a
	return &cp, nil
}

func (s *memoryActorStore) Set(_ context.Context, a *actor.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.byKey[a.DBID] = &cp
	return nil
}

func (s *memoryActorStore) Update(_ context.Context, tenant, dbID, field string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byKey[dbID]
	if !ok || a.Tenant != tenant {
		return apierr.NotFound("actor %s not found", dbID)
	}
	cp := *a
	if err := setActorField(&cp, field, value); err != nil {
		return err
	}
	s.byKey[dbID] = &cp
	return nil
}

func (s *memoryActorStore) Delete(_ context.Context, tenant, dbID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byKey[dbID]
	if !ok || a.Tenant != tenant {
		return nil
	}
	delete(s.byKey, dbID)
	return nil
}

func (s *memoryActorStore) List(_ context.Context, tenant string) ([]*actor.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*actor.Actor, 0)
	for _, a := range s.byKey {
		if a.Tenant == tenant {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListAll enumerates every actor regardless of tenant. It exists for the
// worker-population sweep (internal/app/services/workers), which needs to
// walk the whole fleet rather than one tenant at a time; it is reached via
// an optional type assertion so the sweep still runs against the in-memory
// backend used in tests without widening the core ActorStore contract.
func (s *memoryActorStore) ListAll(_ context.Context) ([]*actor.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*actor.Actor, 0, len(s.byKey))
	for _, a := range s.byKey {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func setActorField(a *actor.Actor, field string, value interface{}) error {
	switch field {
	case "status":
		if s, ok := value.(actor.Status); ok {
			a.Status = s
		} else if str, ok := value.(string); ok {
			a.Status = actor.Status(str)
		} else {
			return apierr.Internal(nil, "invalid status value %v", value)
		}
	case "image":
		s, _ := value.(string)
		a.Image = s
	case "state":
		m, _ := value.(map[string]interface{})
		a.State = m
	case "owner":
		s, _ := value.(string)
		a.Owner = s
	case "api_server":
		s, _ := value.(string)
		a.APIServer = s
	default:
		return apierr.Internal(nil, "unknown actor field %q", field)
	}
	return nil
}

// --- executions ---

type memoryExecutionStore struct {
	mu        sync.Mutex
	byActorID map[string]map[string]*execution.Execution
}

func newMemoryExecutionStore() *memoryExecutionStore {
	return &memoryExecutionStore{byActorID: map[string]map[string]*execution.Execution{}}
}

func (s *memoryExecutionStore) Get(_ context.Context, actorDBID, executionID string) (*execution.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[actorDBID]
	if !ok {
		return nil, apierr.NotFound("execution %s not found", executionID)
	}
	e, ok := bucket[executionID]
	if !ok {
		return nil, apierr.NotFound("execution %s not found", executionID)
	}
	cp := *e
	return &cp, nil
}

func (s *memoryExecutionStore) Set(_ context.Context, e *execution.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[e.ActorID]
	if !ok {
		bucket = map[string]*execution.Execution{}
		s.byActorID[e.ActorID] = bucket
	}
	cp := *e
	bucket[e.ID] = &cp
	return nil
}

func (s *memoryExecutionStore) Update(_ context.Context, actorDBID, executionID, field string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[actorDBID]
	if !ok {
		return apierr.NotFound("execution %s not found", executionID)
	}
	e, ok := bucket[executionID]
	if !ok {
		return apierr.NotFound("execution %s not found", executionID)
	}
	cp := *e
	if err := setExecutionField(&cp, field, value); err != nil {
		return err
	}
	bucket[executionID] = &cp
	return nil
}

func (s *memoryExecutionStore) Delete(_ context.Context, actorDBID, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.byActorID[actorDBID]; ok {
		delete(bucket, executionID)
	}
	return nil
}

func (s *memoryExecutionStore) List(_ context.Context, actorDBID string) ([]*execution.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*execution.Execution, 0)
	for _, e := range s.byActorID[actorDBID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryExecutionStore) DeleteAllForActor(_ context.Context, actorDBID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byActorID, actorDBID)
	return nil
}

func setExecutionField(e *execution.Execution, field string, value interface{}) error {
	switch field {
	case "status":
		if s, ok := value.(execution.Status); ok {
			e.Status = s
		} else if str, ok := value.(string); ok {
			e.Status = execution.Status(str)
		} else {
			return apierr.Internal(nil, "invalid status value %v", value)
		}
	case "runtime_ms":
		v, _ := toInt64(value)
		e.RuntimeMS = v
	case "cpu":
		v, _ := toInt64(value)
		e.CPU = v
	case "io":
		v, _ := toInt64(value)
		e.IO = v
	default:
		return apierr.Internal(nil, "unknown execution field %q", field)
	}
	return nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// --- workers ---

type memoryWorkerStore struct {
	mu        sync.Mutex
	byActorID map[string]map[string]*worker.Worker
}

func newMemoryWorkerStore() *memoryWorkerStore {
	return &memoryWorkerStore{byActorID: map[string]map[string]*worker.Worker{}}
}

func (s *memoryWorkerStore) Get(_ context.Context, actorDBID, workerID string) (*worker.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[actorDBID]
	if !ok {
		return nil, apierr.Worker("worker %s not found", workerID)
	}
	w, ok := bucket[workerID]
	if !ok {
		return nil, apierr.Worker("worker %s not found", workerID)
	}
	cp := *w
	return &cp, nil
}

func (s *memoryWorkerStore) Request(_ context.Context, w *worker.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[w.ActorID]
	if !ok {
		bucket = map[string]*worker.Worker{}
		s.byActorID[w.ActorID] = bucket
	}
	cp := *w
	bucket[w.ID] = &cp
	return nil
}

func (s *memoryWorkerStore) Update(_ context.Context, actorDBID, workerID, field string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[actorDBID]
	if !ok {
		return apierr.Worker("worker %s not found", workerID)
	}
	w, ok := bucket[workerID]
	if !ok {
		return apierr.Worker("worker %s not found", workerID)
	}
	cp := *w
	if err := setWorkerField(&cp, field, value); err != nil {
		return err
	}
	bucket[workerID] = &cp
	return nil
}

func (s *memoryWorkerStore) Delete(_ context.Context, actorDBID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.byActorID[actorDBID]; ok {
		delete(bucket, workerID)
	}
	return nil
}

func (s *memoryWorkerStore) List(_ context.Context, actorDBID string) ([]*worker.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*worker.Worker, 0)
	for _, w := range s.byActorID[actorDBID] {
		cp := *w
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryWorkerStore) DeleteAllForActor(_ context.Context, actorDBID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byActorID, actorDBID)
	return nil
}

func setWorkerField(w *worker.Worker, field string, value interface{}) error {
	switch field {
	case "status":
		var next worker.Status
		if s, ok := value.(worker.Status); ok {
			next = s
		} else if str, ok := value.(string); ok {
			next = worker.Status(str)
		} else {
			return apierr.Internal(nil, "invalid status value %v", value)
		}
		if err := w.CanTransitionTo(next); err != nil {
			return err
		}
		w.Status = next
	case "host":
		s, _ := value.(string)
		w.Host = s
	case "image":
		s, _ := value.(string)
		w.Image = s
	default:
		return apierr.Internal(nil, "unknown worker field %q", field)
	}
	return nil
}

// --- logs ---

type memoryLogStore struct {
	mu   sync.Mutex
	byID map[string]string
}

func newMemoryLogStore() *memoryLogStore {
	return &memoryLogStore{byID: map[string]string{}}
}

func (s *memoryLogStore) Get(_ context.Context, executionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.byID[executionID]
	if !ok {
		return "", apierr.NotFound("logs for execution %s not found", executionID)
	}
	return text, nil
}

func (s *memoryLogStore) Set(_ context.Context, executionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[executionID] = text
	return nil
}

func (s *memoryLogStore) Append(_ context.Context, executionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[executionID] += text
	return nil
}

func (s *memoryLogStore) Delete(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, executionID)
	return nil
}

// --- permissions ---

type memoryPermissionStore struct {
	mu        sync.Mutex
	byActorID map[string]map[string]permission.Level
}

func newMemoryPermissionStore() *memoryPermissionStore {
	return &memoryPermissionStore{byActorID: map[string]map[string]permission.Level{}}
}

func (s *memoryPermissionStore) Get(_ context.Context, actorDBID, user string) (permission.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[actorDBID]
	if !ok {
		return permission.None, nil
	}
	lvl, ok := bucket[user]
	if !ok {
		return permission.None, nil
	}
	return lvl, nil
}

func (s *memoryPermissionStore) Set(_ context.Context, actorDBID, user string, level permission.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.byActorID[actorDBID]
	if !ok {
		bucket = map[string]permission.Level{}
		s.byActorID[actorDBID] = bucket
	}
	bucket[user] = level
	return nil
}

func (s *memoryPermissionStore) Delete(_ context.Context, actorDBID, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.byActorID[actorDBID]; ok {
		delete(bucket, user)
	}
	return nil
}

func (s *memoryPermissionStore) DeleteAll(_ context.Context, actorDBID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byActorID, actorDBID)
	return nil
}

func (s *memoryPermissionStore) List(_ context.Context, actorDBID string) ([]permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]permission.Grant, 0)
	for user, lvl := range s.byActorID[actorDBID] {
		out = append(out, permission.Grant{User: user, ActorID: actorDBID, Level: lvl})
	}
	return out, nil
}
