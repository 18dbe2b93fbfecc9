/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotInRoom          = errors.New("participant is not in this room")
	ErrAlreadyJoined      = errors.New("participant already joined")
	ErrNotJoined          = errors.New("join a session first")
	ErrSessionClosed      = errors.New("session has not started")
	ErrSessionCompleted   = errors.New("session is over")
	ErrUnknownMode        = errors.New("unknown game mode")
	ErrVoteInProgress     = errors.New("a vote is already in progress")
	ErrNoActiveVote       = errors.New("no vote in progress")
	ErrNotEligible        = errors.New("participant joined after the vote opened")
	ErrProposalNotAllowed = errors.New("proposal not allowed in this phase")
	ErrUnknownCandidate   = errors.New("proposed captain is not in the room")
	ErrNoPuzzle           = errors.New("no puzzle in progress")
	ErrUnknownCard        = errors.New("card is not part of the current puzzle")
	ErrNotCaptain         = errors.New("only the captain can do that")
	ErrWrongCode          = errors.New("wrong code")
	ErrActionNotAllowed   = errors.New("action not allowed in this phase")
	ErrCatalogExhausted   = errors.New("no unused cards left in the catalog")
	ErrBadRequest         = errors.New("malformed request")
	ErrUnknownEvent       = errors.New("unknown event")

	errRoomClosed = errors.New("room closed")
)
