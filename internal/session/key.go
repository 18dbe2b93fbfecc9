/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewKey returns a fresh session key.
func NewKey() string {
	return uuid.NewString()
}

// Validate checks the fields a new record must carry and fills defaults.
func Validate(record Record) (Record, error) {
	record.Key = strings.TrimSpace(record.Key)
	record.Name = strings.TrimSpace(record.Name)
	if record.Key == "" {
		record.Key = NewKey()
	}
	if record.Name == "" {
		return Record{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if record.Mode == "" {
		record.Mode = ModeCollaborators
	}
	if !record.Mode.Valid() {
		return Record{}, fmt.Errorf("%w: unknown mode %q", ErrInvalid, record.Mode)
	}
	if record.Phase == "" {
		record.Phase = "lobby"
	}
	return record, nil
}
