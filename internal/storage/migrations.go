package storage

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it does not exist. The vector column requires
// the pgvector extension; enrollment works without vectors when the ONNX
// embedder is not configured.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id     TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			enrolled_at TIMESTAMPTZ NOT NULL,
			seq         BIGSERIAL
		)`,
		`CREATE TABLE IF NOT EXISTS signatures (
			user_id      TEXT PRIMARY KEY REFERENCES users (user_id),
			dhash        BIGINT NOT NULL,
			phash        BIGINT NOT NULL,
			aspect_ratio REAL NOT NULL,
			vec          vector(512)
		)`,
		`CREATE TABLE IF NOT EXISTS event_results (
			event_id     TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL,
			result       JSONB NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
