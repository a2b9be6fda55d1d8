// Package worker defines the Worker entity: one container instance attached
// to an actor.
package worker

import (
	"encoding/json"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
)

// Status is the worker lifecycle state. The control plane writes REQUESTED
// when it requests a worker and SHUTDOWN_REQUESTED when it signals a
// shutdown; every other transition belongs to the (external) worker
// supervisor.
type Status string

const (
	StatusRequested         Status = "REQUESTED"
	StatusSpawning          Status = "SPAWNING"
	StatusReady             Status = "READY"
	StatusBusy              Status = "BUSY"
	StatusFinishing         Status = "FINISHING"
	StatusShutdownRequested Status = "SHUTDOWN_REQUESTED"
	StatusError             Status = "ERROR"
)

// Record is the string-keyed map representation stores operate on.
type Record = map[string]interface{}

// Worker represents one container instance attached to an actor.
type Worker struct {
	ID                  string    `json:"id"`
	ActorID             string    `json:"actor_id"`
	ChName              string    `json:"ch_name"`
	Status              Status    `json:"status"`
	Tenant              string    `json:"tenant"`
	Image               string    `json:"image"`
	Host                string    `json:"host"`
	LastHealthCheckTime time.Time `json:"last_health_check_time"`
}

// Request builds a freshly-requested worker record. chName is generated by
// the caller (a random, per-worker channel name).
func Request(id, actorDBID, chName, tenant, image string) *Worker {
	return &Worker{
		ID:      id,
		ActorID: actorDBID,
		ChName:  chName,
		Status:  StatusRequested,
		Tenant:  tenant,
		Image:   image,
	}
}

// CanTransitionTo enforces the one hard invariant the control plane itself
// must respect: a worker in SHUTDOWN_REQUESTED may never move back to READY.
func (w *Worker) CanTransitionTo(next Status) error {
	if w.Status == StatusShutdownRequested && next == StatusReady {
		return apierr.Conflict("worker %s: cannot return to READY after shutdown was requested", w.ID)
	}
	return nil
}

// ToRecord serializes the worker into a store record.
func (w *Worker) ToRecord() (Record, error) {
	buf, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FromRecord deserializes a store record back into a Worker.
func FromRecord(rec Record) (*Worker, error) {
	buf, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var w Worker
	if err := json.Unmarshal(buf, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Display is the public projection of a worker; ch_name is an internal
// routing detail and is withheld from the outbound display the way db_id is
// withheld from an actor's display.
type Display struct {
	ID                  string `json:"id"`
	Status              Status `json:"status"`
	Image               string `json:"image"`
	Host                string `json:"host"`
	LastHealthCheckTime string `json:"last_health_check_time,omitempty"`
}

func (w *Worker) Display() Display {
	d := Display{
		ID:     w.ID,
		Status: w.Status,
		Image:  w.Image,
		Host:   w.Host,
	}
	if !w.LastHealthCheckTime.IsZero() {
		d.LastHealthCheckTime = w.LastHealthCheckTime.UTC().Format(time.RFC3339)
	}
	return d
}
