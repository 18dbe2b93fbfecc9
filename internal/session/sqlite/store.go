/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Seednode/escaperoom/internal/session"
	"github.com/Seednode/escaperoom/internal/session/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists session records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const selectSession = `SELECT id, session_key, name, mode, is_open, phase, step, score,
        solved_count, fastest_solve_ms, fastest_card_key, phase_started_at,
        created_at, updated_at
   FROM sessions
  WHERE session_key = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (session.Record, error) {
	var (
		record    session.Record
		mode      string
		phaseAt   int64
		createdAt int64
		updatedAt int64
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return session.Record{}, err
	}
	record.Mode = session.Mode(mode)
	record.PhaseStartedAt = fromMillis(phaseAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// CreateSession inserts a new session record.
func (s *Store) CreateSession(ctx context.Context, record session.Record) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	record, err := session.Validate(record)
	if err != nil {
		return session.Record{}, err
	}
	now := s.now().UTC()

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (
		   session_key, name, mode, is_open, phase, step, score, solved_count,
		   fastest_solve_ms, fastest_card_key, phase_started_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Key,
		record.Name,
		string(record.Mode),
		record.Open,
		record.Phase,
		record.Step,
		record.Score,
		record.SolvedCount,
		record.FastestSolveMs,
		record.FastestCardKey,
		toMillis(record.PhaseStartedAt),
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return session.Record{}, session.ErrAlreadyExists
		}
		return session.Record{}, fmt.Errorf("create session: %w", err)
	}
	return s.FindSessionByKey(ctx, record.Key)
}

// FindSessionByKey returns one session record.
func (s *Store) FindSessionByKey(ctx context.Context, key string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	record, err := scanRecord(s.sqlDB.QueryRowContext(ctx, selectSession, strings.TrimSpace(key)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Record{}, session.ErrNotFound
		}
		return session.Record{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// UpdateSession writes the non-nil fields of update and returns the stored
// record as read back inside the same transaction.
func (s *Store) UpdateSession(ctx context.Context, key string, update session.Update) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}
	if update.Empty() {
		return s.FindSessionByKey(ctx, key)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
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
		add("phase_started_at", toMillis(*update.PhaseStartedAt))
	}
	add("updated_at", toMillis(s.now()))
	args = append(args, key)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return session.Record{}, fmt.Errorf("begin update session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE session_key = ?", args...)
	if err != nil {
		return session.Record{}, fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return session.Record{}, fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return session.Record{}, session.ErrNotFound
	}

	record, err := scanRecord(tx.QueryRowContext(ctx, selectSession, key))
	if err != nil {
		return session.Record{}, fmt.Errorf("reload session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return session.Record{}, fmt.Errorf("commit update session: %w", err)
	}
	return record, nil
}

// CreateRating stores participant feedback for a session.
func (s *Store) CreateRating(ctx context.Context, rating session.Rating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rating.Stars < 0 || rating.Stars > 5 {
		return fmt.Errorf("%w: stars must be between 0 and 5", session.ErrInvalid)
	}
	createdAt := rating.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO ratings (session_key, stars, comment, created_at) VALUES (?, ?, ?, ?)`,
		rating.SessionKey, rating.Stars, strings.TrimSpace(rating.Comment), toMillis(createdAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return session.ErrNotFound
		}
		return fmt.Errorf("create rating: %w", err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ session.Admin = (*Store)(nil)
