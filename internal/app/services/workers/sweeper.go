// Package workers implements the worker-population sweep: a periodic
// convergence nudge that re-ensures every READY-targeted actor still has at
// least one worker, guarding against a CommandChannel message dropped
// before any supervisor picked it up (spec.md §4.5: "all worker-facing
// operations are fire-and-forget"; this is the safety net for the case
// where the fire-and-forget message never lands).
package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	core "github.com/tacc-cloud/abaco/internal/app/core/service"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/metrics"
	"github.com/tacc-cloud/abaco/pkg/logger"
)

// sweepRetryPolicy retries a single actor's ensure once after a short
// backoff before logging it as a failed convergence attempt; worker
// provisioning is fire-and-forget (spec.md §4.5) so a bare retry is enough,
// no circuit breaking.
var sweepRetryPolicy = core.RetryPolicy{
	Attempts:       2,
	InitialBackoff: 200 * time.Millisecond,
	Multiplier:     1,
}

// lister is the optional capability a store may expose to enumerate every
// actor regardless of tenant; both the in-memory and Postgres ActorStore
// implementations satisfy it.
type lister interface {
	ListAll(ctx context.Context) ([]*actor.Actor, error)
}

// ensurer is the one operation the sweeper needs from the actors service; it
// is satisfied by *actors.Service without this package importing it back
// (actors already imports channel/storage/authz, and importing actors here
// would cycle through a shared "ensure worker" helper, so the dependency
// runs through this narrow interface instead).
type ensurer interface {
	EnsureOneWorkerForSweep(ctx context.Context, a *actor.Actor) error
}

// Sweeper runs EnsureOneWorkerForSweep against every READY actor on a cron
// schedule, via robfig/cron/v3, the way the teacher's package used the
// library for its own periodic reconciliation jobs.
type Sweeper struct {
	store    lister
	ensure   ensurer
	log      *logger.Logger
	schedule string
	hooks    core.ObservationHooks
	cron     *cron.Cron
	entryID  cron.EntryID
}

// New builds a Sweeper. schedule is a standard 5-field cron expression;
// callers typically use something like "*/30 * * * *".
func New(store lister, ensure ensurer, schedule string, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("worker-sweeper")
	}
	return &Sweeper{
		store:    store,
		ensure:   ensure,
		schedule: schedule,
		log:      log,
		hooks:    metrics.ObservationHooks("abaco", "workers", "sweep"),
	}
}

func (s *Sweeper) Name() string { return "worker-sweeper" }

// Start schedules the sweep; it does not block.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	id, err := s.cron.AddFunc(s.schedule, func() { s.sweepOnce(ctx) })
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	done := core.StartObservation(ctx, s.hooks, map[string]string{"actor_db_id": "sweep_run"})
	var sweepErr error
	defer func() { done(sweepErr) }()

	actors, err := s.store.ListAll(ctx)
	if err != nil {
		s.log.WithError(err).Error("sweep: list actors failed")
		sweepErr = err
		return
	}
	for _, a := range actors {
		if a.Status != actor.StatusReady {
			continue
		}
		actorDone := core.StartObservation(ctx, s.hooks, map[string]string{"actor_db_id": a.DBID})
		err := core.Retry(ctx, sweepRetryPolicy, func() error {
			return s.ensure.EnsureOneWorkerForSweep(ctx, a)
		})
		actorDone(err)
		if err != nil {
			s.log.WithField("actor", a.DBID).WithError(err).Warn("sweep: ensure worker failed")
		}
	}
}

// Descriptor advertises this as an engine-layer background service.
func (s *Sweeper) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         s.Name(),
		Domain:       "actors",
		Layer:        core.LayerEngine,
		Capabilities: []string{"worker-convergence-sweep"},
	}
}
