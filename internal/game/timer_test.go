package game

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSkipsBusyRoom(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reg.opts.InboxSize = 1

	mode := h.reg.modes[h.store.get(testKey).Mode]
	stalled, err := newRoom(h.reg, mode, h.store.get(testKey))
	require.NoError(t, err)
	h.reg.mu.Lock()
	h.reg.rooms[testKey] = stalled
	h.reg.mu.Unlock()

	queued, skipped := h.engine.Tick(context.Background(), h.clock.Now())
	assert.Equal(t, 1, queued)
	assert.Equal(t, 0, skipped)

	queued, skipped = h.engine.Tick(context.Background(), h.clock.Now())
	assert.Equal(t, 0, queued)
	assert.Equal(t, 1, skipped)
}

func TestTickReachesEveryRoom(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.join(t, "a")

	queued, skipped := h.engine.Tick(context.Background(), h.clock.Now())
	assert.Equal(t, 1, queued)
	assert.Zero(t, skipped)
}

func TestEngineRunStopsWithContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	e := NewEngine(h.reg, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestNewEngineDefaultsPeriod(t *testing.T) {
	t.Parallel()

	e := NewEngine(newHarness(t).reg, 0, zerolog.Nop())
	assert.Equal(t, DefaultTickPeriod, e.period)
}
