package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
)

func (s *LogStore) Get(ctx context.Context, executionID string) (string, error) {
	var text string
	err := s.db.GetContext(ctx, &text, `SELECT text FROM execution_logs WHERE execution_id = $1`, executionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apierr.NotFound("logs for execution %s not found", executionID)
	}
	if err != nil {
		return "", apierr.Internal(err, "get logs for execution %s", executionID)
	}
	return text, nil
}

func (s *LogStore) Set(ctx context.Context, executionID, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (execution_id, text) VALUES ($1, $2)
		ON CONFLICT (execution_id) DO UPDATE SET text = EXCLUDED.text`, executionID, text)
	if err != nil {
		return apierr.Internal(err, "set logs for execution %s", executionID)
	}
	return nil
}

func (s *LogStore) Append(ctx context.Context, executionID, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (execution_id, text) VALUES ($1, $2)
		ON CONFLICT (execution_id) DO UPDATE SET text = execution_logs.text || EXCLUDED.text`, executionID, text)
	if err != nil {
		return apierr.Internal(err, "append logs for execution %s", executionID)
	}
	return nil
}

func (s *LogStore) Delete(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM execution_logs WHERE execution_id = $1`, executionID)
	if err != nil {
		return apierr.Internal(err, "delete logs for execution %s", executionID)
	}
	return nil
}
