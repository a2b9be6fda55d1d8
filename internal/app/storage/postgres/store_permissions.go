package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
)

func (s *PermissionStore) Get(ctx context.Context, actorDBID, user string) (permission.Level, error) {
	var level string
	err := s.db.GetContext(ctx, &level, `
		SELECT level FROM permissions WHERE actor_id = $1 AND "user" = $2`, actorDBID, user)
	if errors.Is(err, sql.ErrNoRows) {
		return permission.None, nil
	}
	if err != nil {
		return permission.None, apierr.Internal(err, "get permission for %s on %s", user, actorDBID)
	}
	return permission.Parse(level)
}

func (s *PermissionStore) Set(ctx context.Context, actorDBID, user string, level permission.Level) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO permissions (actor_id, "user", level) VALUES ($1, $2, $3)
		ON CONFLICT (actor_id, "user") DO UPDATE SET level = EXCLUDED.level`, actorDBID, user, level.String())
	if err != nil {
		return apierr.Internal(err, "set permission for %s on %s", user, actorDBID)
	}
	return nil
}

func (s *PermissionStore) Delete(ctx context.Context, actorDBID, user string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE actor_id = $1 AND "user" = $2`, actorDBID, user)
	if err != nil {
		return apierr.Internal(err, "delete permission for %s on %s", user, actorDBID)
	}
	return nil
}

func (s *PermissionStore) DeleteAll(ctx context.Context, actorDBID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE actor_id = $1`, actorDBID)
	if err != nil {
		return apierr.Internal(err, "delete permissions for %s", actorDBID)
	}
	return nil
}

func (s *PermissionStore) List(ctx context.Context, actorDBID string) ([]permission.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "user", level FROM permissions WHERE actor_id = $1`, actorDBID)
	if err != nil {
		return nil, apierr.Internal(err, "list permissions for %s", actorDBID)
	}
	defer rows.Close()

	out := make([]permission.Grant, 0)
	for rows.Next() {
		var user, levelStr string
		if err := rows.Scan(&user, &levelStr); err != nil {
			return nil, apierr.Internal(err, "scan permission row for %s", actorDBID)
		}
		lvl, err := permission.Parse(levelStr)
		if err != nil {
			return nil, apierr.Internal(err, "decode permission level for %s", user)
		}
		out = append(out, permission.Grant{User: user, ActorID: actorDBID, Level: lvl})
	}
	return out, rows.Err()
}
