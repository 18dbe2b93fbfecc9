/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session defines the persisted session record shared by the room
// runtime and the storage backends.
package session

import (
	"context"
	"errors"
	"time"
)

// Mode selects the transition table a room runs with.
type Mode string

const (
	ModeCollaborators Mode = "collaborators"
	ModeEscape        Mode = "escape"
)

// Valid reports whether m names a known game mode.
func (m Mode) Valid() bool {
	return m == ModeCollaborators || m == ModeEscape
}

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
	ErrInvalid       = errors.New("invalid session")
)

// Record is the source of truth for everything about a session that survives
// the room it is played in.
type Record struct {
	ID             int64
	Key            string
	Name           string
	Mode           Mode
	Open           bool
	Phase          string
	Step           int
	Score          int
	SolvedCount    int
	FastestSolveMs int64
	FastestCardKey string
	PhaseStartedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Update carries the fields to change; nil fields are left untouched.
type Update struct {
	Open           *bool
	Phase          *string
	Step           *int
	Score          *int
	SolvedCount    *int
	FastestSolveMs *int64
	FastestCardKey *string
	PhaseStartedAt *time.Time
}

// Empty reports whether the update would not change anything.
func (u Update) Empty() bool {
	return u.Open == nil && u.Phase == nil && u.Step == nil && u.Score == nil &&
		u.SolvedCount == nil && u.FastestSolveMs == nil && u.FastestCardKey == nil &&
		u.PhaseStartedAt == nil
}

// Apply returns a copy of r with the update applied. Stores use it to keep
// their write and read paths in agreement.
func (u Update) Apply(r Record) Record {
	if u.Open != nil {
		r.Open = *u.Open
	}
	if u.Phase != nil {
		r.Phase = *u.Phase
	}
	if u.Step != nil {
		r.Step = *u.Step
	}
	if u.Score != nil {
		r.Score = *u.Score
	}
	if u.SolvedCount != nil {
		r.SolvedCount = *u.SolvedCount
	}
	if u.FastestSolveMs != nil {
		r.FastestSolveMs = *u.FastestSolveMs
	}
	if u.FastestCardKey != nil {
		r.FastestCardKey = *u.FastestCardKey
	}
	if u.PhaseStartedAt != nil {
		r.PhaseStartedAt = u.PhaseStartedAt.UTC()
	}
	return r
}

// Rating is the feedback a participant leaves at the end of a session.
type Rating struct {
	SessionKey string
	Stars      int
	Comment    string
	CreatedAt  time.Time
}

// Store is the persistence collaborator used by the room runtime.
type Store interface {
	FindSessionByKey(ctx context.Context, key string) (Record, error)
	UpdateSession(ctx context.Context, key string, update Update) (Record, error)
	CreateRating(ctx context.Context, rating Rating) error
}

// Admin is implemented by stores that can create and open sessions.
type Admin interface {
	Store
	CreateSession(ctx context.Context, record Record) (Record, error)
	Close() error
}

// Ptr returns a pointer to v, for building updates.
func Ptr[T any](v T) *T {
	return &v
}
