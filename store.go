/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Seednode/escaperoom/internal/session"
	"github.com/Seednode/escaperoom/internal/session/postgres"
	"github.com/Seednode/escaperoom/internal/session/sqlite"
)

// openStore picks postgres for postgres:// URLs and sqlite for anything else.
func openStore(ctx context.Context, database string) (session.Admin, error) {
	if postgres.IsDSN(database) {
		store, err := postgres.Open(ctx, database)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil
	}

	if dir := filepath.Dir(database); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	store, err := sqlite.Open(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return store, nil
}
