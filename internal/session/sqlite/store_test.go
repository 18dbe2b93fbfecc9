package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Seednode/escaperoom/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCreateAndFindSession(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, session.Record{Key: "abc", Name: "Friday team", Mode: session.ModeEscape})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "lobby", created.Phase)
	assert.False(t, created.Open)
	assert.False(t, created.CreatedAt.IsZero())

	found, err := store.FindSessionByKey(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, created, found)
	assert.Equal(t, session.ModeEscape, found.Mode)
}

func TestCreateSessionRejectsDuplicates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	_, err := store.CreateSession(ctx, session.Record{Key: "dup", Name: "one"})
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, session.Record{Key: "dup", Name: "two"})
	assert.ErrorIs(t, err, session.ErrAlreadyExists)
}

func TestCreateSessionValidates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	_, err := store.CreateSession(context.Background(), session.Record{Key: "x"})
	assert.ErrorIs(t, err, session.ErrInvalid)

	_, err = store.CreateSession(context.Background(), session.Record{Key: "x", Name: "n", Mode: "chess"})
	assert.ErrorIs(t, err, session.ErrInvalid)
}

func TestFindSessionNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	_, err := store.FindSessionByKey(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestUpdateSessionReturnsStoredRecord(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	_, err := store.CreateSession(ctx, session.Record{Key: "k", Name: "n"})
	require.NoError(t, err)

	started := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	updated, err := store.UpdateSession(ctx, "k", session.Update{
		Open:           session.Ptr(true),
		Phase:          session.Ptr("puzzle"),
		Score:          session.Ptr(10),
		SolvedCount:    session.Ptr(1),
		FastestSolveMs: session.Ptr(int64(4200)),
		FastestCardKey: session.Ptr("17"),
		PhaseStartedAt: &started,
	})
	require.NoError(t, err)
	assert.True(t, updated.Open)
	assert.Equal(t, "puzzle", updated.Phase)
	assert.Equal(t, 10, updated.Score)
	assert.Equal(t, 1, updated.SolvedCount)
	assert.Equal(t, int64(4200), updated.FastestSolveMs)
	assert.Equal(t, "17", updated.FastestCardKey)
	assert.True(t, started.Equal(updated.PhaseStartedAt))

	// Untouched fields survive a partial update.
	again, err := store.UpdateSession(ctx, "k", session.Update{Step: session.Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Step)
	assert.Equal(t, 10, again.Score)
	assert.Equal(t, "puzzle", again.Phase)
}

func TestUpdateSessionNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	_, err := store.UpdateSession(context.Background(), "nope", session.Update{Score: session.Ptr(1)})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCreateRating(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	_, err := store.CreateSession(ctx, session.Record{Key: "k", Name: "n"})
	require.NoError(t, err)

	assert.NoError(t, store.CreateRating(ctx, session.Rating{SessionKey: "k", Stars: 4, Comment: " great "}))
	assert.ErrorIs(t, store.CreateRating(ctx, session.Rating{SessionKey: "k", Stars: 9}), session.ErrInvalid)
	assert.ErrorIs(t, store.CreateRating(ctx, session.Rating{SessionKey: "ghost", Stars: 3}), session.ErrNotFound)
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	got := upSection("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;")
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", got)
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}
