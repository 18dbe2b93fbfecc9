/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
	"github.com/Seednode/escaperoom/internal/session"
	"github.com/rs/zerolog"
)

const (
	DefaultVoteTimeout  = 30 * time.Second
	DefaultGameDuration = 20 * time.Minute
	DefaultInboxSize    = 64

	persistTimeout = 5 * time.Second
)

// Options configures a Registry. Store, Transport and Catalog are required.
type Options struct {
	Store        session.Store
	Transport    Transport
	Catalog      *catalog.Catalog
	Selector     *Selector
	VoteTimeout  time.Duration
	GameDuration time.Duration
	EscapeCodes  []string
	InboxSize    int
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Registry owns every live room. Its lock only guards the map; all room
// state belongs to the room's own goroutine.
type Registry struct {
	store     session.Store
	transport Transport
	selector  *Selector
	modes     map[session.Mode]*Mode
	opts      Options
	now       func() time.Time
	log       zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(opts Options) *Registry {
	if opts.VoteTimeout <= 0 {
		opts.VoteTimeout = DefaultVoteTimeout
	}
	if opts.GameDuration <= 0 {
		opts.GameDuration = DefaultGameDuration
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Selector == nil {
		opts.Selector = NewSelector(opts.Catalog, nil)
	}

	return &Registry{
		store:     opts.Store,
		transport: opts.Transport,
		selector:  opts.Selector,
		modes:     Modes(len(opts.EscapeCodes)),
		opts:      opts,
		now:       opts.Now,
		log:       opts.Logger,
		rooms:     make(map[string]*Room),
	}
}

// Join puts p into the room for record, creating the room from record if
// it is not live. It returns p as admitted, with its handle assigned.
func (g *Registry) Join(ctx context.Context, record session.Record, p Participant) (Participant, RoomView, error) {
	for {
		r, err := g.getOrCreate(record)
		if err != nil {
			return Participant{}, RoomView{}, err
		}

		reply := make(chan joinReply, 1)
		if err := r.send(ctx, joinCmd{ctx: ctx, participant: p, reply: reply}); err != nil {
			if errors.Is(err, errRoomClosed) {
				continue
			}
			return Participant{}, RoomView{}, err
		}

		res, err := await(ctx, r, reply)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return Participant{}, RoomView{}, err
		}
		return res.participant, res.view, res.err
	}
}

// Leave removes a participant. Leaving a room that is gone is not an error.
func (g *Registry) Leave(ctx context.Context, key, participantID string) error {
	err := g.request(ctx, key, func(reply chan error) command {
		return leaveCmd{ctx: ctx, id: participantID, reply: reply}
	})
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	return err
}

// Propose opens a vote on behalf of a participant.
func (g *Registry) Propose(ctx context.Context, key, participantID string, proposal Proposal) error {
	return g.request(ctx, key, func(reply chan error) command {
		return proposeCmd{ctx: ctx, id: participantID, proposal: proposal, reply: reply}
	})
}

// CastVote records a ballot in the room's open vote.
func (g *Registry) CastVote(ctx context.Context, key, participantID string, agree bool) error {
	return g.request(ctx, key, func(reply chan error) command {
		return voteCmd{ctx: ctx, id: participantID, agree: agree, reply: reply}
	})
}

// SubmitCode lets the captain try a code in a stepped phase.
func (g *Registry) SubmitCode(ctx context.Context, key, participantID, code string) error {
	return g.request(ctx, key, func(reply chan error) command {
		return codeCmd{ctx: ctx, id: participantID, code: code, reply: reply}
	})
}

// View returns a snapshot of a live room.
func (g *Registry) View(ctx context.Context, key string) (RoomView, error) {
	r, err := g.lookup(key)
	if err != nil {
		return RoomView{}, err
	}

	reply := make(chan RoomView, 1)
	if err := r.send(ctx, viewCmd{reply: reply}); err != nil {
		return RoomView{}, closedAsMissing(err)
	}

	v, err := await(ctx, r, reply)
	return v, closedAsMissing(err)
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.rooms)
}

func (g *Registry) snapshot() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (g *Registry) request(ctx context.Context, key string, build func(chan error) command) error {
	r, err := g.lookup(key)
	if err != nil {
		return err
	}

	reply := make(chan error, 1)
	if err := r.send(ctx, build(reply)); err != nil {
		return closedAsMissing(err)
	}

	res, err := await(ctx, r, reply)
	if err != nil {
		return closedAsMissing(err)
	}
	return res
}

func (g *Registry) lookup(key string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[key]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (g *Registry) getOrCreate(record session.Record) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[record.Key]; ok {
		return r, nil
	}

	mode, ok := g.modes[record.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, record.Mode)
	}

	r, err := newRoom(g, mode, record)
	if err != nil {
		return nil, err
	}
	g.rooms[record.Key] = r

	g.log.Debug().Str("room", record.Key).Str("mode", string(mode.Name)).Msg("room created")

	go r.run()

	return r, nil
}

// remove drops r from the map if it is still the live room for its key.
func (g *Registry) remove(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rooms[r.key] == r {
		delete(g.rooms, r.key)
	}

	g.log.Debug().Str("room", r.key).Msg("room removed")
}

func closedAsMissing(err error) error {
	if errors.Is(err, errRoomClosed) {
		return ErrRoomNotFound
	}
	return err
}
