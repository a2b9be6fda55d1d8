package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
)

type executionRow struct {
	ID         string       `db:"id"`
	ActorID    string       `db:"actor_id"`
	Executor   string       `db:"executor"`
	Status     string       `db:"status"`
	RuntimeMS  int64        `db:"runtime_ms"`
	CPU        int64        `db:"cpu"`
	IO         int64        `db:"io"`
	MessageID  string       `db:"message_id"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r executionRow) toDomain() *execution.Execution {
	e := &execution.Execution{
		ID:        r.ID,
		ActorID:   r.ActorID,
		Executor:  r.Executor,
		Status:    execution.Status(r.Status),
		RuntimeMS: r.RuntimeMS,
		CPU:       r.CPU,
		IO:        r.IO,
		MessageID: r.MessageID,
		StartedAt: r.StartedAt,
	}
	if r.FinishedAt.Valid {
		e.FinishedAt = &r.FinishedAt.Time
	}
	return e
}

func fromExecution(e *execution.Execution) executionRow {
	row := executionRow{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Executor:  e.Executor,
		Status:    string(e.Status),
		RuntimeMS: e.RuntimeMS,
		CPU:       e.CPU,
		IO:        e.IO,
		MessageID: e.MessageID,
		StartedAt: e.StartedAt,
	}
	if e.FinishedAt != nil {
		row.FinishedAt = sql.NullTime{Time: *e.FinishedAt, Valid: true}
	}
	return row
}

func (s *ExecutionStore) Get(ctx context.Context, actorDBID, executionID string) (*execution.Execution, error) {
	var row executionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, actor_id, executor, status, runtime_ms, cpu, io, message_id, started_at, finished_at
		FROM executions WHERE actor_id = $1 AND id = $2`, actorDBID, executionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("execution %s not found", executionID)
	}
	if err != nil {
		return nil, apierr.Internal(err, "get execution %s", executionID)
	}
	return row.toDomain(), nil
}

func (s *ExecutionStore) Set(ctx context.Context, e *execution.Execution) error {
	row := fromExecution(e)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO executions (id, actor_id, executor, status, runtime_ms, cpu, io, message_id, started_at, finished_at)
		VALUES (:id, :actor_id, :executor, :status, :runtime_ms, :cpu, :io, :message_id, :started_at, :finished_at)
		ON CONFLICT (actor_id, id) DO UPDATE SET
			status = EXCLUDED.status,
			runtime_ms = EXCLUDED.runtime_ms,
			cpu = EXCLUDED.cpu,
			io = EXCLUDED.io,
			finished_at = EXCLUDED.finished_at`, row)
	if err != nil {
		return apierr.Internal(err, "set execution %s", e.ID)
	}
	return nil
}

func (s *ExecutionStore) Update(ctx context.Context, actorDBID, executionID, field string, value interface{}) error {
	column, arg, err := executionUpdateColumn(field, value)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE executions SET `+column+` = $1 WHERE actor_id = $2 AND id = $3`, arg, actorDBID, executionID)
	if err != nil {
		return apierr.Internal(err, "update execution %s field %s", executionID, field)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("execution %s not found", executionID)
	}
	return nil
}

func executionUpdateColumn(field string, value interface{}) (string, interface{}, error) {
	switch field {
	case "status":
		return "status", toStatusString(value), nil
	case "runtime_ms":
		return "runtime_ms", value, nil
	case "cpu":
		return "cpu", value, nil
	case "io":
		return "io", value, nil
	default:
		return "", nil, apierr.Internal(nil, "unknown execution field %q", field)
	}
}

func (s *ExecutionStore) Delete(ctx context.Context, actorDBID, executionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE actor_id = $1 AND id = $2`, actorDBID, executionID)
	if err != nil {
		return apierr.Internal(err, "delete execution %s", executionID)
	}
	return nil
}

func (s *ExecutionStore) List(ctx context.Context, actorDBID string) ([]*execution.Execution, error) {
	var rows []executionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_id, executor, status, runtime_ms, cpu, io, message_id, started_at, finished_at
		FROM executions WHERE actor_id = $1`, actorDBID)
	if err != nil {
		return nil, apierr.Internal(err, "list executions for actor %s", actorDBID)
	}
	out := make([]*execution.Execution, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *ExecutionStore) DeleteAllForActor(ctx context.Context, actorDBID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE actor_id = $1`, actorDBID)
	if err != nil {
		return apierr.Internal(err, "delete executions for actor %s", actorDBID)
	}
	return nil
}
