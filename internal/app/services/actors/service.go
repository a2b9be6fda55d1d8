// Package actors implements C6: the actor lifecycle and messaging core, and
// wires in C5 (worker protocol) at the points the state machine requires it.
package actors

import (
	"time"

	"github.com/google/uuid"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/authz"
	"github.com/tacc-cloud/abaco/internal/app/channel"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/domain/worker"
	"github.com/tacc-cloud/abaco/internal/app/envelope"
	"github.com/tacc-cloud/abaco/internal/app/storage"
	"github.com/tacc-cloud/abaco/pkg/logger"

	"context"
)

// Service implements the actor lifecycle, messaging intake, and worker
// provisioning described by C5/C6, over a set of stores and a channel
// factory that are the only shared, concurrency-safe resources (spec.md
// §5: "no in-process locks; all mutual exclusion is delegated to the
// store's per-key atomic-update primitive").
type Service struct {
	stores   storage.Stores
	channels channel.Factory
	authz    *authz.Authorizer
	log      *logger.Logger
	keyCase  envelope.KeyCase
}

// New builds a Service. keyCase controls the C7 response key style
// (web.case config knob).
func New(stores storage.Stores, channels channel.Factory, az *authz.Authorizer, log *logger.Logger, keyCase envelope.KeyCase) *Service {
	if log == nil {
		log = logger.NewDefault("actors")
	}
	return &Service{
		stores:   storage.Normalize(stores),
		channels: channels,
		authz:    az,
		log:      log,
		keyCase:  keyCase,
	}
}

// CreateActor validates the request, mints an id, atomically grants the
// creator UPDATE (write-permission-first per spec.md §5's atomicity note),
// and inserts the actor record. Creation itself requires only
// authentication, no prior permission (spec.md §4.3).
func (s *Service) CreateActor(ctx context.Context, tenant, user string, req actor.Request) (*actor.Actor, error) {
	if err := req.ValidateCreate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	a := actor.New(tenant, id, req, firstNonEmpty(req.Owner, user), time.Now())

	if err := s.authz.Grant(ctx, a.DBID, user, permission.Update); err != nil {
		return nil, err
	}
	if err := s.stores.Actors.Set(ctx, a); err != nil {
		return nil, apierr.Internal(err, "persist actor %s", a.DBID)
	}
	return a, nil
}

// GetActor loads and authorizes a READ on one actor.
func (s *Service) GetActor(ctx context.Context, tenant, user, id string) (*actor.Actor, error) {
	dbID := actor.GetDBID(tenant, id)
	a, err := s.stores.Actors.Get(ctx, tenant, dbID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, tenant, a.Tenant, a.DBID, user, permission.Read); err != nil {
		return nil, err
	}
	return a, nil
}

// ListActors returns every actor in the tenant the caller can at least READ.
func (s *Service) ListActors(ctx context.Context, tenant, user string) ([]*actor.Actor, error) {
	all, err := s.stores.Actors.List(ctx, tenant)
	if err != nil {
		return nil, apierr.Internal(err, "list actors for tenant %s", tenant)
	}
	visible := make([]*actor.Actor, 0, len(all))
	for _, a := range all {
		if err := s.authz.Require(ctx, tenant, a.Tenant, a.DBID, user, permission.Read); err == nil {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// UpdateActor applies a PUT, requiring UPDATE. name is immutable and is
// cleared before applying (spec.md §4.4). An image change triggers the
// SUBMITTED reset and the C5 image rollout.
func (s *Service) UpdateActor(ctx context.Context, tenant, user, id string, req actor.Request) (*actor.Actor, error) {
	dbID := actor.GetDBID(tenant, id)
	a, err := s.stores.Actors.Get(ctx, tenant, dbID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, tenant, a.Tenant, a.DBID, user, permission.Update); err != nil {
		return nil, err
	}
	req.Name = ""
	imageChanged := a.ApplyUpdate(req)
	if err := s.stores.Actors.Set(ctx, a); err != nil {
		return nil, apierr.Internal(err, "persist actor update %s", a.DBID)
	}
	if imageChanged {
		if err := s.rolloutImage(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// DeleteActor performs the DELETE cascade in the required retry-safe order
// (spec.md §5): shutdown workers, delete executions (and their logs),
// delete the actor record, delete permissions. Every step is idempotent
// so a retried call after a partial failure converges.
func (s *Service) DeleteActor(ctx context.Context, tenant, user, id string) error {
	dbID := actor.GetDBID(tenant, id)
	a, err := s.stores.Actors.Get(ctx, tenant, dbID)
	if err != nil {
		return err
	}
	if err := s.authz.Require(ctx, tenant, a.Tenant, a.DBID, user, permission.Update); err != nil {
		return err
	}

	if err := s.shutdownAllWorkers(ctx, dbID); err != nil {
		return err
	}
	execs, err := s.stores.Executions.List(ctx, dbID)
	if err != nil {
		return apierr.Internal(err, "list executions for %s", dbID)
	}
	for _, e := range execs {
		if err := s.stores.Logs.Delete(ctx, e.ID); err != nil {
			return apierr.Internal(err, "delete logs for execution %s", e.ID)
		}
	}
	// Purges executions_store[db_id] too (SPEC_FULL.md Open Question
	// decision #3), not just the per-execution logs.
	if err := s.stores.Executions.DeleteAllForActor(ctx, dbID); err != nil {
		return apierr.Internal(err, "delete executions for %s", dbID)
	}
	if err := s.stores.Workers.DeleteAllForActor(ctx, dbID); err != nil {
		return apierr.Internal(err, "delete workers for %s", dbID)
	}
	if err := s.stores.Actors.Delete(ctx, tenant, dbID); err != nil {
		return apierr.Internal(err, "delete actor %s", dbID)
	}
	if err := s.stores.Permissions.DeleteAll(ctx, dbID); err != nil {
		return apierr.Internal(err, "delete permissions for %s", dbID)
	}
	return nil
}

// GetState fetches an actor's state blob, requiring READ.
func (s *Service) GetState(ctx context.Context, tenant, user, id string) (map[string]interface{}, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return nil, err
	}
	return a.State, nil
}

// SetState sets an actor's state blob, requiring UPDATE. Rejected on a
// stateless actor with Validation (400) — SPEC_FULL.md Open Question
// decision #1, deliberately diverging from the source's 404.
func (s *Service) SetState(ctx context.Context, tenant, user, id string, state map[string]interface{}) (*actor.Actor, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Update)
	if err != nil {
		return nil, err
	}
	if a.Stateless {
		return nil, apierr.Validation("actor %s is stateless, state cannot be set", a.ID)
	}
	a.State = state
	if err := s.stores.Actors.Update(ctx, tenant, a.DBID, "state", state); err != nil {
		return nil, apierr.Internal(err, "update state for %s", a.DBID)
	}
	return a, nil
}

// PostMessage implements the message-POST hot path, spec.md §4.6 steps 1-7.
func (s *Service) PostMessage(ctx context.Context, tenant, user, apiServer, jwtHeaderName, id string, body []byte, isJSONContentType bool, query map[string]string) (*execution.Execution, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Execute)
	if err != nil {
		return nil, err
	}

	payload, contentType := resolvePayload(body, isJSONContentType)

	meta := make(map[string]string, len(query)+4)
	for k, v := range query {
		if k == "message" {
			continue
		}
		meta[k] = v
	}
	meta["_abaco_username"] = user
	meta["_abaco_api_server"] = apiServer
	if jwtHeaderName != "" {
		meta["_abaco_jwt_header_name"] = jwtHeaderName
	}
	meta["_abaco_Content-Type"] = contentType

	execID := uuid.NewString()
	e := execution.New(execID, a.DBID, user, execID, time.Now())
	if err := s.stores.Executions.Set(ctx, e); err != nil {
		return nil, apierr.Internal(err, "create execution %s", execID)
	}
	meta["_abaco_execution_id"] = execID

	msgCh := s.channels.ActorMsgChannel(a.DBID)
	if err := msgCh.PutMsg(ctx, channel.Message{Payload: payload, Metadata: meta}); err != nil {
		return nil, apierr.Internal(err, "enqueue message for %s", a.DBID)
	}

	if err := s.ensureOneWorker(ctx, a); err != nil {
		return nil, err
	}
	return e, nil
}

// MessagesApproxLen reports the approximate inbox depth, requiring READ.
func (s *Service) MessagesApproxLen(ctx context.Context, tenant, user, id string) (int, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return 0, err
	}
	return s.channels.ActorMsgChannel(a.DBID).ApproxLen(ctx)
}

// GetExecutionsSummary computes the derived, read-only ExecutionsSummary
// projection, requiring READ.
func (s *Service) GetExecutionsSummary(ctx context.Context, tenant, user, id string) (execution.Summary, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return execution.Summary{}, err
	}
	execs, err := s.stores.Executions.List(ctx, a.DBID)
	if err != nil {
		return execution.Summary{}, apierr.Internal(err, "list executions for %s", a.DBID)
	}
	return execution.Summarize(execs), nil
}

// RecordExecutionStats is the internal intake endpoint the worker
// supervisor calls to report resource usage, requiring UPDATE.
func (s *Service) RecordExecutionStats(ctx context.Context, tenant, user, id, execID string, status execution.Status, stats execution.Stats) (*execution.Execution, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Update)
	if err != nil {
		return nil, err
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	e, err := s.stores.Executions.Get(ctx, a.DBID, execID)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Executions.Update(ctx, a.DBID, execID, "status", status); err != nil {
		return nil, apierr.Internal(err, "update execution %s status", execID)
	}
	if err := s.stores.Executions.Update(ctx, a.DBID, execID, "runtime_ms", stats.RuntimeMS); err != nil {
		return nil, apierr.Internal(err, "update execution %s runtime", execID)
	}
	if err := s.stores.Executions.Update(ctx, a.DBID, execID, "cpu", stats.CPU); err != nil {
		return nil, apierr.Internal(err, "update execution %s cpu", execID)
	}
	if err := s.stores.Executions.Update(ctx, a.DBID, execID, "io", stats.IO); err != nil {
		return nil, apierr.Internal(err, "update execution %s io", execID)
	}
	e.Status = status
	e.RuntimeMS = stats.RuntimeMS
	e.CPU = stats.CPU
	e.IO = stats.IO
	return e, nil
}

// GetExecution fetches a single execution record, requiring READ.
func (s *Service) GetExecution(ctx context.Context, tenant, user, id, execID string) (*execution.Execution, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return nil, err
	}
	return s.stores.Executions.Get(ctx, a.DBID, execID)
}

// GetExecutionLogs fetches the log blob for one execution, requiring READ.
func (s *Service) GetExecutionLogs(ctx context.Context, tenant, user, id, execID string) (string, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return "", err
	}
	if _, err := s.stores.Executions.Get(ctx, a.DBID, execID); err != nil {
		return "", err
	}
	return s.stores.Logs.Get(ctx, execID)
}

// ListWorkers lists an actor's workers, requiring READ.
func (s *Service) ListWorkers(ctx context.Context, tenant, user, id string) ([]*worker.Worker, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return nil, err
	}
	return s.stores.Workers.List(ctx, a.DBID)
}

// EnsureWorkers requests the worker population be at least num, requiring
// UPDATE. Exposed for POST /actors/{id}/workers.
func (s *Service) EnsureWorkers(ctx context.Context, tenant, user, id string, num int) ([]string, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Update)
	if err != nil {
		return nil, err
	}
	return s.ensureWorkers(ctx, a, num)
}

// GetWorker fetches one worker, requiring READ.
func (s *Service) GetWorker(ctx context.Context, tenant, user, id, workerID string) (*worker.Worker, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Read)
	if err != nil {
		return nil, err
	}
	return s.stores.Workers.Get(ctx, a.DBID, workerID)
}

// StopWorker signals one worker to shut down, requiring UPDATE.
func (s *Service) StopWorker(ctx context.Context, tenant, user, id, workerID string) error {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Update)
	if err != nil {
		return err
	}
	w, err := s.stores.Workers.Get(ctx, a.DBID, workerID)
	if err != nil {
		return err
	}
	return s.shutdownWorker(ctx, w)
}

// ListPermissions lists an actor's grants, requiring UPDATE (permissions
// are themselves access-control data).
func (s *Service) ListPermissions(ctx context.Context, tenant, user, id string) ([]permission.Grant, error) {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Update)
	if err != nil {
		return nil, err
	}
	return s.stores.Permissions.List(ctx, a.DBID)
}

// GrantPermission sets a user's permission level on an actor, requiring
// UPDATE from the caller.
func (s *Service) GrantPermission(ctx context.Context, tenant, user, id, targetUser string, level permission.Level) error {
	a, err := s.loadWithLevel(ctx, tenant, user, id, permission.Update)
	if err != nil {
		return err
	}
	return s.authz.Grant(ctx, a.DBID, targetUser, level)
}

// loadWithLevel is the shared "load actor, enforce tenant + minimum
// permission level" preamble every operation but create uses.
func (s *Service) loadWithLevel(ctx context.Context, tenant, user, id string, required permission.Level) (*actor.Actor, error) {
	dbID := actor.GetDBID(tenant, id)
	a, err := s.stores.Actors.Get(ctx, tenant, dbID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, tenant, a.Tenant, a.DBID, user, required); err != nil {
		return nil, err
	}
	return a, nil
}

// KeyCase exposes the configured response key style to the HTTP layer.
func (s *Service) KeyCase() envelope.KeyCase { return s.keyCase }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
