package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/worker"
)

type workerRow struct {
	ID                  string       `db:"id"`
	ActorID             string       `db:"actor_id"`
	ChName              string       `db:"ch_name"`
	Status              string       `db:"status"`
	Tenant              string       `db:"tenant"`
	Image               string       `db:"image"`
	Host                string       `db:"host"`
	LastHealthCheckTime sql.NullTime `db:"last_health_check_time"`
}

func (r workerRow) toDomain() *worker.Worker {
	w := &worker.Worker{
		ID:      r.ID,
		ActorID: r.ActorID,
		ChName:  r.ChName,
		Status:  worker.Status(r.Status),
		Tenant:  r.Tenant,
		Image:   r.Image,
		Host:    r.Host,
	}
	if r.LastHealthCheckTime.Valid {
		w.LastHealthCheckTime = r.LastHealthCheckTime.Time
	}
	return w
}

func fromWorker(w *worker.Worker) workerRow {
	row := workerRow{
		ID:      w.ID,
		ActorID: w.ActorID,
		ChName:  w.ChName,
		Status:  string(w.Status),
		Tenant:  w.Tenant,
		Image:   w.Image,
		Host:    w.Host,
	}
	if !w.LastHealthCheckTime.IsZero() {
		row.LastHealthCheckTime = sql.NullTime{Time: w.LastHealthCheckTime, Valid: true}
	}
	return row
}

func (s *WorkerStore) Get(ctx context.Context, actorDBID, workerID string) (*worker.Worker, error) {
	var row workerRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, actor_id, ch_name, status, tenant, image, host, last_health_check_time
		FROM workers WHERE actor_id = $1 AND id = $2`, actorDBID, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.Worker("worker %s not found", workerID)
	}
	if err != nil {
		return nil, apierr.Internal(err, "get worker %s", workerID)
	}
	return row.toDomain(), nil
}

// Request inserts a REQUESTED worker row. The primary key (actor_id, id)
// combined with id being caller-generated via uuid.NewString() is what
// gives "atomically reserve an id" its guarantee: two concurrent inserts
// with different ids never collide, and a duplicate id fails the insert.
func (s *WorkerStore) Request(ctx context.Context, w *worker.Worker) error {
	row := fromWorker(w)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO workers (id, actor_id, ch_name, status, tenant, image, host, last_health_check_time)
		VALUES (:id, :actor_id, :ch_name, :status, :tenant, :image, :host, :last_health_check_time)`, row)
	if err != nil {
		return apierr.Internal(err, "request worker for actor %s", w.ActorID)
	}
	return nil
}

func (s *WorkerStore) Update(ctx context.Context, actorDBID, workerID, field string, value interface{}) error {
	column, arg, err := workerUpdateColumn(field, value)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE workers SET `+column+` = $1 WHERE actor_id = $2 AND id = $3`, arg, actorDBID, workerID)
	if err != nil {
		return apierr.Internal(err, "update worker %s field %s", workerID, field)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.Worker("worker %s not found", workerID)
	}
	return nil
}

func workerUpdateColumn(field string, value interface{}) (string, interface{}, error) {
	switch field {
	case "status":
		return "status", toStatusString(value), nil
	case "host":
		return "host", value, nil
	case "image":
		return "image", value, nil
	case "last_health_check_time":
		return "last_health_check_time", value, nil
	default:
		return "", nil, apierr.Internal(nil, "unknown worker field %q", field)
	}
}

func (s *WorkerStore) Delete(ctx context.Context, actorDBID, workerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE actor_id = $1 AND id = $2`, actorDBID, workerID)
	if err != nil {
		return apierr.Internal(err, "delete worker %s", workerID)
	}
	return nil
}

func (s *WorkerStore) List(ctx context.Context, actorDBID string) ([]*worker.Worker, error) {
	var rows []workerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_id, ch_name, status, tenant, image, host, last_health_check_time
		FROM workers WHERE actor_id = $1`, actorDBID)
	if err != nil {
		return nil, apierr.Internal(err, "list workers for actor %s", actorDBID)
	}
	out := make([]*worker.Worker, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *WorkerStore) DeleteAllForActor(ctx context.Context, actorDBID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE actor_id = $1`, actorDBID)
	if err != nil {
		return apierr.Internal(err, "delete workers for actor %s", actorDBID)
	}
	return nil
}
