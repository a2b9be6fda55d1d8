package actors

import (
	"context"

	"github.com/google/uuid"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/channel"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/worker"
)

// ensureWorkers implements C5's "ensure at least N workers" intent: it is
// idempotent, fire-and-forget, and never blocks on a worker becoming ready.
// Returns the newly-requested worker ids (empty if current >= n).
func (s *Service) ensureWorkers(ctx context.Context, a *actor.Actor, n int) ([]string, error) {
	existing, err := s.stores.Workers.List(ctx, a.DBID)
	if err != nil {
		return nil, apierr.Worker("list workers for %s: %v", a.DBID, err)
	}
	current := len(existing)
	if current >= n {
		return nil, nil
	}
	newIDs := make([]string, 0, n-current)
	for i := 0; i < n-current; i++ {
		id := uuid.NewString()
		chName := "worker_" + id
		w := worker.Request(id, a.DBID, chName, a.Tenant, a.Image)
		if err := s.stores.Workers.Request(ctx, w); err != nil {
			return nil, apierr.Worker("request worker for %s: %v", a.DBID, err)
		}
		newIDs = append(newIDs, id)
	}
	cmd := s.channels.CommandChannel()
	if err := cmd.PutCmd(ctx, channelCommand(a, newIDs, n-current, false)); err != nil {
		return nil, apierr.Internal(err, "publish ensure-workers command for %s", a.DBID)
	}
	return newIDs, nil
}

// ensureOneWorker is the idempotent desired-state assertion the message-POST
// hot path calls unconditionally (spec.md §4.6 step 6).
func (s *Service) ensureOneWorker(ctx context.Context, a *actor.Actor) error {
	_, err := s.ensureWorkers(ctx, a, 1)
	return err
}

// EnsureOneWorkerForSweep exposes ensureOneWorker to the periodic
// worker-population sweep (internal/app/services/workers), which only needs
// the single-actor idempotent assertion, not the full Service surface.
func (s *Service) EnsureOneWorkerForSweep(ctx context.Context, a *actor.Actor) error {
	return s.ensureOneWorker(ctx, a)
}

// rolloutImage implements C5's "update image" intent, triggered when a PUT
// changes an actor's image: request worker ids sized to the current
// population (or at least one, per SPEC_FULL.md Open Question decision #2)
// and emit exactly one command with stop_existing=true.
func (s *Service) rolloutImage(ctx context.Context, a *actor.Actor) error {
	existing, err := s.stores.Workers.List(ctx, a.DBID)
	if err != nil {
		return apierr.Worker("list workers for %s: %v", a.DBID, err)
	}
	n := len(existing)
	if n < 1 {
		n = 1
	}
	newIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		chName := "worker_" + id
		w := worker.Request(id, a.DBID, chName, a.Tenant, a.Image)
		if err := s.stores.Workers.Request(ctx, w); err != nil {
			return apierr.Worker("request replacement worker for %s: %v", a.DBID, err)
		}
		newIDs = append(newIDs, id)
	}
	cmd := s.channels.CommandChannel()
	if err := cmd.PutCmd(ctx, channelCommand(a, newIDs, n, true)); err != nil {
		return apierr.Internal(err, "publish image-rollout command for %s", a.DBID)
	}
	return nil
}

// shutdownWorker sends a shutdown signal on one worker's private channel;
// the worker store record is left for the supervisor to retire.
func (s *Service) shutdownWorker(ctx context.Context, w *worker.Worker) error {
	if err := w.CanTransitionTo(worker.StatusShutdownRequested); err != nil {
		return err
	}
	ch := s.channels.WorkerChannel(w.ChName)
	if err := ch.Shutdown(ctx); err != nil {
		return apierr.Internal(err, "shutdown worker %s", w.ID)
	}
	return s.stores.Workers.Update(ctx, w.ActorID, w.ID, "status", worker.StatusShutdownRequested)
}

// shutdownAllWorkers iterates an actor's workers and signals each, the
// first step of the DELETE cascade (spec.md §5).
func (s *Service) shutdownAllWorkers(ctx context.Context, actorDBID string) error {
	workers, err := s.stores.Workers.List(ctx, actorDBID)
	if err != nil {
		return apierr.Worker("list workers for %s: %v", actorDBID, err)
	}
	for _, w := range workers {
		ch := s.channels.WorkerChannel(w.ChName)
		if err := ch.Shutdown(ctx); err != nil {
			return apierr.Internal(err, "shutdown worker %s", w.ID)
		}
		if err := s.stores.Workers.Update(ctx, actorDBID, w.ID, "status", worker.StatusShutdownRequested); err != nil {
			return apierr.Worker("mark worker %s shutdown-requested: %v", w.ID, err)
		}
	}
	return nil
}

// channelCommand builds the desired-state CommandChannel payload shared by
// ensureWorkers and rolloutImage.
func channelCommand(a *actor.Actor, workerIDs []string, num int, stopExisting bool) channel.Command {
	return channel.Command{
		ActorID:      a.DBID,
		WorkerIDs:    workerIDs,
		Image:        a.Image,
		Tenant:       a.Tenant,
		Num:          num,
		StopExisting: stopExisting,
	}
}
