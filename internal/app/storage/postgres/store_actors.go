package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
)

type actorRow struct {
	DBID               string    `db:"db_id"`
	Tenant             string    `db:"tenant"`
	ID                 string    `db:"id"`
	Name               string    `db:"name"`
	Image              string    `db:"image"`
	Owner              string    `db:"owner"`
	APIServer          string    `db:"api_server"`
	Stateless          bool      `db:"stateless"`
	DefaultEnvironment []byte    `db:"default_environment"`
	Status             string    `db:"status"`
	State              []byte    `db:"state"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r actorRow) toDomain() (*actor.Actor, error) {
	a := &actor.Actor{
		DBID:      r.DBID,
		Tenant:    r.Tenant,
		ID:        r.ID,
		Name:      r.Name,
		Image:     r.Image,
		Owner:     r.Owner,
		APIServer: r.APIServer,
		Stateless: r.Stateless,
		Status:    actor.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}
	if len(r.DefaultEnvironment) > 0 {
		if err := json.Unmarshal(r.DefaultEnvironment, &a.DefaultEnvironment); err != nil {
			return nil, err
		}
	}
	if len(r.State) > 0 {
		if err := json.Unmarshal(r.State, &a.State); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func fromActor(a *actor.Actor) (actorRow, error) {
	env, err := json.Marshal(a.DefaultEnvironment)
	if err != nil {
		return actorRow{}, err
	}
	state, err := json.Marshal(a.State)
	if err != nil {
		return actorRow{}, err
	}
	return actorRow{
		DBID:               a.DBID,
		Tenant:             a.Tenant,
		ID:                 a.ID,
		Name:               a.Name,
		Image:              a.Image,
		Owner:              a.Owner,
		APIServer:          a.APIServer,
		Stateless:          a.Stateless,
		DefaultEnvironment: env,
		Status:             string(a.Status),
		State:              state,
		CreatedAt:          a.CreatedAt,
	}, nil
}

func (s *ActorStore) Get(ctx context.Context, tenant, dbID string) (*actor.Actor, error) {
	var row actorRow
	err := s.db.GetContext(ctx, &row, `
		SELECT db_id, tenant, id, name, image, owner, api_server, stateless,
		       default_environment, status, state, created_at
		FROM actors WHERE db_id = $1 AND tenant = $2`, dbID, tenant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("actor %s not found", dbID)
	}
	if err != nil {
		return nil, apierr.Internal(err, "get actor %s", dbID)
	}
	return row.toDomain()
}

func (s *ActorStore) Set(ctx context.Context, a *actor.Actor) error {
	row, err := fromActor(a)
	if err != nil {
		return apierr.Internal(err, "encode actor %s", a.DBID)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO actors (db_id, tenant, id, name, image, owner, api_server, stateless,
		                     default_environment, status, state, created_at)
		VALUES (:db_id, :tenant, :id, :name, :image, :owner, :api_server, :stateless,
		        :default_environment, :status, :state, :created_at)
		ON CONFLICT (db_id) DO UPDATE SET
			image = EXCLUDED.image,
			owner = EXCLUDED.owner,
			api_server = EXCLUDED.api_server,
			default_environment = EXCLUDED.default_environment,
			status = EXCLUDED.status,
			state = EXCLUDED.state`, row)
	if err != nil {
		return apierr.Internal(err, "set actor %s", a.DBID)
	}
	return nil
}

func (s *ActorStore) Update(ctx context.Context, tenant, dbID, field string, value interface{}) error {
	column, arg, err := actorUpdateColumn(field, value)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE actors SET `+column+` = $1 WHERE db_id = $2 AND tenant = $3`, arg, dbID, tenant)
	if err != nil {
		return apierr.Internal(err, "update actor %s field %s", dbID, field)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("actor %s not found", dbID)
	}
	return nil
}

func actorUpdateColumn(field string, value interface{}) (string, interface{}, error) {
	switch field {
	case "status":
		return "status", toStatusString(value), nil
	case "image":
		return "image", value, nil
	case "owner":
		return "owner", value, nil
	case "api_server":
		return "api_server", value, nil
	case "state":
		buf, err := json.Marshal(value)
		if err != nil {
			return "", nil, apierr.Internal(err, "encode state")
		}
		return "state", buf, nil
	default:
		return "", nil, apierr.Internal(nil, "unknown actor field %q", field)
	}
}

func (s *ActorStore) Delete(ctx context.Context, tenant, dbID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM actors WHERE db_id = $1 AND tenant = $2`, dbID, tenant)
	if err != nil {
		return apierr.Internal(err, "delete actor %s", dbID)
	}
	return nil
}

// ListAll enumerates every actor across every tenant; reached through the
// same optional type assertion the in-memory store's ListAll satisfies, for
// the worker-population sweep.
func (s *ActorStore) ListAll(ctx context.Context) ([]*actor.Actor, error) {
	var rows []actorRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT db_id, tenant, id, name, image, owner, api_server, stateless,
		       default_environment, status, state, created_at
		FROM actors`)
	if err != nil {
		return nil, apierr.Internal(err, "list all actors")
	}
	out := make([]*actor.Actor, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, apierr.Internal(err, "decode actor %s", row.DBID)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *ActorStore) List(ctx context.Context, tenant string) ([]*actor.Actor, error) {
	var rows []actorRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT db_id, tenant, id, name, image, owner, api_server, stateless,
		       default_environment, status, state, created_at
		FROM actors WHERE tenant = $1`, tenant)
	if err != nil {
		return nil, apierr.Internal(err, "list actors for tenant %s", tenant)
	}
	out := make([]*actor.Actor, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, apierr.Internal(err, "decode actor %s", row.DBID)
		}
		out = append(out, a)
	}
	return out, nil
}
