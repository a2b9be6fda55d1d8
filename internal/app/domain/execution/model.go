// Package execution defines the Execution entity and its derived,
// on-demand summary projection.
package execution

import (
	"encoding/json"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
)

// Status is the execution lifecycle state.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusRunning   Status = "RUNNING"
	StatusComplete  Status = "COMPLETE"
	StatusFailed    Status = "FAILED"
)

// Record is the string-keyed map representation stores operate on.
type Record = map[string]interface{}

// Execution records one invocation of an actor.
type Execution struct {
	ID         string     `json:"id"`
	ActorID    string     `json:"actor_id"`
	Executor   string     `json:"executor"`
	Status     Status     `json:"status"`
	RuntimeMS  int64      `json:"runtime_ms"`
	CPU        int64      `json:"cpu"`
	IO         int64      `json:"io"`
	MessageID  string     `json:"message_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// New creates an execution in SUBMITTED status with zeroed resource
// accounting, as required by the message-POST hot path.
func New(id, actorDBID, executor, messageID string, now time.Time) *Execution {
	return &Execution{
		ID:        id,
		ActorID:   actorDBID,
		Executor:  executor,
		Status:    StatusSubmitted,
		MessageID: messageID,
		StartedAt: now,
	}
}

// Stats is the internal intake payload for recording resource usage.
type Stats struct {
	RuntimeMS int64 `json:"runtime"`
	CPU       int64 `json:"cpu"`
	IO        int64 `json:"io"`
}

// Validate enforces that the stats are non-negative, the Go equivalent of
// the source's string-to-int parse check. Absent fields decode as zero and
// pass.
func (s Stats) Validate() error {
	if s.RuntimeMS < 0 || s.CPU < 0 || s.IO < 0 {
		return apierr.Validation("runtime, cpu, and io must be non-negative")
	}
	return nil
}

// ToRecord serializes the execution into a store record.
func (e *Execution) ToRecord() (Record, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FromRecord deserializes a store record back into an Execution.
func FromRecord(rec Record) (*Execution, error) {
	buf, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var e Execution
	if err := json.Unmarshal(buf, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Display is the public projection of an execution.
type Display struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Executor   string `json:"executor"`
	Status     Status `json:"status"`
	RuntimeMS  int64  `json:"runtime_ms"`
	CPU        int64  `json:"cpu"`
	IO         int64  `json:"io"`
	MessageID  string `json:"message_id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func (e *Execution) Display() Display {
	d := Display{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Executor:  e.Executor,
		Status:    e.Status,
		RuntimeMS: e.RuntimeMS,
		CPU:       e.CPU,
		IO:        e.IO,
		MessageID: e.MessageID,
		StartedAt: e.StartedAt.UTC().Format(time.RFC3339),
	}
	if e.FinishedAt != nil {
		d.FinishedAt = e.FinishedAt.UTC().Format(time.RFC3339)
	}
	return d
}

// Summary is a derived, read-only projection over all executions of one
// actor: counts by status and resource totals. Computed on demand, never
// persisted.
type Summary struct {
	TotalCount     int            `json:"total_count"`
	CountByStatus  map[Status]int `json:"count_by_status"`
	TotalRuntimeMS int64          `json:"total_runtime_ms"`
	TotalCPU       int64          `json:"total_cpu"`
	TotalIO        int64          `json:"total_io"`
}

// Summarize computes a Summary over a slice of executions.
func Summarize(execs []*Execution) Summary {
	s := Summary{CountByStatus: map[Status]int{}}
	for _, e := range execs {
		s.TotalCount++
		s.CountByStatus[e.Status]++
		s.TotalRuntimeMS += e.RuntimeMS
		s.TotalCPU += e.CPU
		s.TotalIO += e.IO
	}
	return s
}
