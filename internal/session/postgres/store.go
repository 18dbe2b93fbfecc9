/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package postgres provides a PostgreSQL-backed session store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/Seednode/escaperoom/internal/session"
	"github.com/Seednode/escaperoom/internal/session/postgres/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists session records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to connString and applies the embedded schema.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// IsDSN reports whether dsn should be opened with this package.
func IsDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (s *Store) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const selectSession = `SELECT id, session_key, name, mode, is_open, phase, step, score,
        solved_count, fastest_solve_ms, fastest_card_key, phase_started_at,
        created_at, updated_at
   FROM sessions
  WHERE session_key = $1`

func scanRecord(row pgx.Row) (session.Record, error) {
	var (
		record  session.Record
		mode    string
		phaseAt *time.Time
	)
	err := row.Scan(
		&record.ID,
		&record.Key,
		&record.Name,
		&mode,
		&record.Open,
		&record.Phase,
		&record.Step,
		&record.Score,
		&record.SolvedCount,
		&record.FastestSolveMs,
		&record.FastestCardKey,
		&phaseAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return session.Record{}, err
	}
	record.Mode = session.Mode(mode)
	if phaseAt != nil {
		record.PhaseStartedAt = phaseAt.UTC()
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

// CreateSession inserts a new session record.
func (s *Store) CreateSession(ctx context.Context, record session.Record) (session.Record, error) {
	record, err := session.Validate(record)
	if err != nil {
		return session.Record{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (session_key, name, mode, is_open, phase, step, score, solved_count,
		   fastest_solve_ms, fastest_card_key, phase_started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.Key, record.Name, string(record.Mode), record.Open, record.Phase, record.Step,
		record.Score, record.SolvedCount, record.FastestSolveMs, record.FastestCardKey,
		nullableTime(record.PhaseStartedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return session.Record{}, session.ErrAlreadyExists
		}
		return session.Record{}, fmt.Errorf("create session: %w", err)
	}
	return s.FindSessionByKey(ctx, record.Key)
}

// FindSessionByKey returns one session record.
func (s *Store) FindSessionByKey(ctx context.Context, key string) (session.Record, error) {
	record, err := scanRecord(s.pool.QueryRow(ctx, selectSession, strings.TrimSpace(key)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Record{}, session.ErrNotFound
		}
		return session.Record{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// UpdateSession writes the non-nil fields of update and returns the row as
// stored, using RETURNING so the write and the read cannot disagree.
func (s *Store) UpdateSession(ctx context.Context, key string, update session.Update) (session.Record, error) {
	if update.Empty() {
		return s.FindSessionByKey(ctx, key)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Open != nil {
		add("is_open", *update.Open)
	}
	if update.Phase != nil {
		add("phase", *update.Phase)
	}
	if update.Step != nil {
		add("step", *update.Step)
	}
	if update.Score != nil {
		add("score", *update.Score)
	}
	if update.SolvedCount != nil {
		add("solved_count", *update.SolvedCount)
	}
	if update.FastestSolveMs != nil {
		add("fastest_solve_ms", *update.FastestSolveMs)
	}
	if update.FastestCardKey != nil {
		add("fastest_card_key", *update.FastestCardKey)
	}
	if update.PhaseStartedAt != nil {
		add("phase_started_at", nullableTime(*update.PhaseStartedAt))
	}
	args = append(args, key)

	query := fmt.Sprintf(`UPDATE sessions SET %s, updated_at = now() WHERE session_key = $%d
	RETURNING id, session_key, name, mode, is_open, phase, step, score,
	          solved_count, fastest_solve_ms, fastest_card_key, phase_started_at,
	          created_at, updated_at`, strings.Join(sets, ", "), len(args))

	record, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Record{}, session.ErrNotFound
		}
		return session.Record{}, fmt.Errorf("update session: %w", err)
	}
	return record, nil
}

// CreateRating stores participant feedback for a session.
func (s *Store) CreateRating(ctx context.Context, rating session.Rating) error {
	if rating.Stars < 0 || rating.Stars > 5 {
		return fmt.Errorf("%w: stars must be between 0 and 5", session.ErrInvalid)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ratings (session_key, stars, comment) VALUES ($1, $2, $3)`,
		rating.SessionKey, rating.Stars, strings.TrimSpace(rating.Comment),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503 is foreign_key_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return session.ErrNotFound
		}
		return fmt.Errorf("create rating: %w", err)
	}
	return nil
}

var _ session.Admin = (*Store)(nil)
