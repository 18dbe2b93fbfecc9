/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTickPeriod = time.Second

// Engine drives every live room's clock.
type Engine struct {
	registry *Registry
	period   time.Duration
	log      zerolog.Logger
}

func NewEngine(registry *Registry, period time.Duration, log zerolog.Logger) *Engine {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	return &Engine{registry: registry, period: period, log: log}
}

// Run ticks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.log.Debug().Dur("period", e.period).Msg("timer engine started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Tick(ctx, e.registry.now())
		}
	}
}

// Tick queues one tick into every live room. A room whose inbox is full
// misses this tick rather than stalling the others.
func (e *Engine) Tick(ctx context.Context, now time.Time) (queued, skipped int) {
	for _, r := range e.registry.snapshot() {
		if r.offer(tickCmd{ctx: ctx, now: now}) {
			queued++
			continue
		}
		skipped++
		e.log.Debug().Str("room", r.key).Msg("tick skipped, room busy")
	}
	return queued, skipped
}
