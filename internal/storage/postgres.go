package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/eventfaces/internal/config"
	"github.com/your-org/eventfaces/internal/events"
	"github.com/your-org/eventfaces/internal/gallery"
	"github.com/your-org/eventfaces/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Gallery ---

// Enroll inserts the user record and its signature in one transaction.
func (s *PostgresStore) Enroll(ctx context.Context, userID, name string, sig models.Signature) (string, error) {
	if userID == "" {
		userID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin enroll: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (user_id, name, enrolled_at) VALUES ($1, $2, $3)`,
		userID, name, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return "", gallery.ErrDuplicateUser
		}
		return "", fmt.Errorf("insert user: %w", err)
	}

	var vec *pgvector.Vector
	if len(sig.Vec) > 0 {
		v := pgvector.NewVector(sig.Vec)
		vec = &v
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO signatures (user_id, dhash, phash, aspect_ratio, vec) VALUES ($1, $2, $3, $4, $5)`,
		userID, int64(sig.DHash), int64(sig.PHash), sig.AspectRatio, vec)
	if err != nil {
		return "", fmt.Errorf("insert signature: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit enroll: %w", err)
	}
	return userID, nil
}

// Remove deletes the user record and its signature in one transaction, so a
// failed removal leaves both untouched.
func (s *PostgresStore) Remove(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM signatures WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete signature: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return gallery.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.user_id, u.name, u.enrolled_at, s.dhash, s.phash, s.aspect_ratio
		 FROM users u JOIN signatures s ON s.user_id = u.user_id
		 ORDER BY u.seq`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var dhash, phash int64
		if err := rows.Scan(&u.UserID, &u.Name, &u.EnrolledAt, &dhash, &phash, &u.Signature.AspectRatio); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Signature.DHash = uint64(dhash)
		u.Signature.PHash = uint64(phash)
		users = append(users, u)
	}
	return users, nil
}

func (s *PostgresStore) GetSignature(ctx context.Context, userID string) (models.Signature, error) {
	var sig models.Signature
	var dhash, phash int64
	var vec *pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT dhash, phash, aspect_ratio, vec FROM signatures WHERE user_id = $1`, userID,
	).Scan(&dhash, &phash, &sig.AspectRatio, &vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Signature{}, gallery.ErrNotFound
		}
		return models.Signature{}, fmt.Errorf("get signature: %w", err)
	}
	sig.DHash = uint64(dhash)
	sig.PHash = uint64(phash)
	if vec != nil {
		sig.Vec = vec.Slice()
	}
	return sig, nil
}

// Snapshot loads the whole gallery in enrollment order. Copy-on-read: the
// returned entries are detached from later enrollment or removal.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]gallery.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.user_id, u.name, s.dhash, s.phash, s.aspect_ratio, s.vec
		 FROM users u JOIN signatures s ON s.user_id = u.user_id
		 ORDER BY u.seq`)
	if err != nil {
		return nil, fmt.Errorf("snapshot gallery: %w", err)
	}
	defer rows.Close()

	var entries []gallery.Entry
	for rows.Next() {
		var e gallery.Entry
		var dhash, phash int64
		var vec *pgvector.Vector
		if err := rows.Scan(&e.UserID, &e.Name, &dhash, &phash, &e.Signature.AspectRatio, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		e.Signature.DHash = uint64(dhash)
		e.Signature.PHash = uint64(phash)
		if vec != nil {
			e.Signature.Vec = vec.Slice()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SearchSignatures finds enrolled users whose embedding is closest to the
// query vector, using pgvector cosine distance. Only usable when the ONNX
// embedder is configured and signatures carry vectors.
func (s *PostgresStore) SearchSignatures(ctx context.Context, embedding []float32, threshold float64, limit int) ([]SearchMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT s.user_id, u.name, 1 - (s.vec <=> $1) AS score
		 FROM signatures s
		 JOIN users u ON u.user_id = s.user_id
		 WHERE s.vec IS NOT NULL
		   AND 1 - (s.vec <=> $1) >= $2
		 ORDER BY s.vec <=> $1
		 LIMIT $3`,
		vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search signatures: %w", err)
	}
	defer rows.Close()

	var matches []SearchMatch
	for rows.Next() {
		var m SearchMatch
		if err := rows.Scan(&m.UserID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

type SearchMatch struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Score  float32 `json:"score"`
}

// --- Event results ---

// Save upserts the event's result: last write wins, no merge.
func (s *PostgresStore) Save(ctx context.Context, result models.EventResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal event result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO event_results (event_id, processed_at, result)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id) DO UPDATE SET processed_at = $2, result = $3`,
		result.EventID, result.ProcessedAt, payload)
	if err != nil {
		return fmt.Errorf("save event result: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, eventID string) (models.EventResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM event_results WHERE event_id = $1`, eventID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EventResult{}, events.ErrNoResult
		}
		return models.EventResult{}, fmt.Errorf("get event result: %w", err)
	}

	var result models.EventResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return models.EventResult{}, fmt.Errorf("unmarshal event result: %w", err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
