/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Seednode/escaperoom/internal/catalog"
	"github.com/Seednode/escaperoom/internal/session"
	"github.com/rs/zerolog"
)

const (
	infoWelcome    = "Welcome"
	infoNoSession  = "This session does not exist"
	infoNotStarted = "This session has not started"
	infoOver       = "This session is over"
	infoJoined     = "You already joined a session"
	infoRetry      = "Something went wrong, please try again"
)

// publicErrors are reported to participants as they are. Anything else is
// logged and answered with a generic message.
var publicErrors = []error{
	ErrNotInRoom,
	ErrAlreadyJoined,
	ErrNotJoined,
	ErrSessionClosed,
	ErrSessionCompleted,
	ErrVoteInProgress,
	ErrNoActiveVote,
	ErrNotEligible,
	ErrProposalNotAllowed,
	ErrUnknownCandidate,
	ErrNoPuzzle,
	ErrUnknownCard,
	ErrNotCaptain,
	ErrWrongCode,
	ErrActionNotAllowed,
	ErrBadRequest,
	ErrUnknownEvent,
	ErrRoomNotFound,
	session.ErrInvalid,
}

// Router turns inbound client events into registry operations and answers
// request events. It tracks which room each connection joined.
type Router struct {
	registry  *Registry
	store     session.Store
	catalog   *catalog.Catalog
	transport Transport
	log       zerolog.Logger

	mu      sync.Mutex
	members map[string]string
}

func NewRouter(registry *Registry, store session.Store, c *catalog.Catalog, transport Transport, log zerolog.Logger) *Router {
	return &Router{
		registry:  registry,
		store:     store,
		catalog:   c,
		transport: transport,
		log:       log,
		members:   make(map[string]string),
	}
}

type answerRequest struct {
	GoodCard struct {
		ID string `json:"id"`
	} `json:"goodCard"`
}

type captainRequest struct {
	Captain string `json:"captain"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type voteRequest struct {
	Agree bool `json:"agree"`
}

type statisticsRequest struct {
	Department string `json:"department"`
}

type ratingRequest struct {
	RateStar int    `json:"rateStar"`
	Comment  string `json:"comment"`
}

// Handle processes one event from connID. Calls for the same connection must
// not overlap.
func (rt *Router) Handle(ctx context.Context, connID, event string, data json.RawMessage) {
	if event == EventJoinSession {
		rt.join(ctx, connID, data)
		return
	}

	key := rt.roomOf(connID)
	if key == "" {
		rt.status(connID, event, ErrNotJoined)
		return
	}

	var err error
	switch event {
	case EventProposeStart:
		if err = rt.registry.Propose(ctx, key, connID, Proposal{Kind: ProposalStart}); err == nil {
			rt.status(connID, event, nil)
		}
	case EventProposeAnswer:
		var req answerRequest
		if err = decode(data, &req); err == nil {
			if err = rt.registry.Propose(ctx, key, connID, Proposal{Kind: ProposalAnswer, CardKey: req.GoodCard.ID}); err == nil {
				rt.status(connID, event, nil)
			}
		}
	case EventProposeCaptain:
		var req captainRequest
		if err = decode(data, &req); err == nil {
			if err = rt.registry.Propose(ctx, key, connID, Proposal{Kind: ProposalCaptain, Captain: req.Captain}); err == nil {
				rt.status(connID, event, nil)
			}
		}
	case EventSubmitCode:
		var req codeRequest
		if err = decode(data, &req); err == nil {
			if err = rt.registry.SubmitCode(ctx, key, connID, req.Code); err == nil {
				rt.status(connID, event, nil)
			}
		}
	case EventUserVote:
		var req voteRequest
		if err = decode(data, &req); err == nil {
			if err = rt.registry.CastVote(ctx, key, connID, req.Agree); err == nil {
				rt.status(connID, event, nil)
			}
		}
	case EventRequestGameData:
		err = rt.withView(ctx, key, func(v RoomView) {
			rt.transport.EmitToParticipant(connID, EventGameData, GameDataPayload{NbCollaboratorFound: v.SolvedCount, Cards: v.Cards})
		})
	case EventRequestUsers:
		err = rt.withView(ctx, key, func(v RoomView) {
			users := make([]string, len(v.Participants))
			for i, p := range v.Participants {
				users[i] = p.Handle
			}
			rt.transport.EmitToParticipant(connID, EventConnectedUsers, ConnectedUsersPayload{Users: users, Captain: v.Captain})
		})
	case EventRequestScore:
		err = rt.withView(ctx, key, func(v RoomView) {
			rt.transport.EmitToParticipant(connID, EventScore, ScorePayload{Score: v.Score})
		})
	case EventRequestStatistics:
		var req statisticsRequest
		if err = decode(data, &req); err == nil {
			err = rt.withView(ctx, key, func(v RoomView) {
				rt.transport.EmitToParticipant(connID, EventStatistics, rt.statistics(v, req.Department))
			})
		}
	case EventRequestRating:
		var req ratingRequest
		if err = decode(data, &req); err == nil {
			err = rt.store.CreateRating(ctx, session.Rating{SessionKey: key, Stars: req.RateStar, Comment: req.Comment})
			if err == nil {
				rt.status(connID, event, nil)
			}
		}
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		rt.status(connID, event, err)
	}
}

// Disconnect removes connID from whatever room it joined.
func (rt *Router) Disconnect(ctx context.Context, connID string) {
	rt.mu.Lock()
	key, ok := rt.members[connID]
	delete(rt.members, connID)
	rt.mu.Unlock()

	if !ok {
		return
	}
	if err := rt.registry.Leave(ctx, key, connID); err != nil {
		rt.log.Warn().Err(err).Str("room", key).Str("participant", connID).Msg("leave failed")
	}
}

func (rt *Router) join(ctx context.Context, connID string, data json.RawMessage) {
	nok := func(info string) {
		rt.transport.EmitToParticipant(connID, EventInfoSession, InfoSessionPayload{Status: StatusNotOK, Info: info})
	}

	if rt.roomOf(connID) != "" {
		nok(infoJoined)
		return
	}

	var req struct {
		UUID string `json:"uuid"`
	}
	if err := decode(data, &req); err != nil || strings.TrimSpace(req.UUID) == "" {
		nok(infoNoSession)
		return
	}

	record, err := rt.store.FindSessionByKey(ctx, strings.TrimSpace(req.UUID))
	switch {
	case errors.Is(err, session.ErrNotFound):
		nok(infoNoSession)
		return
	case err != nil:
		rt.log.Error().Err(err).Str("session", req.UUID).Msg("session lookup failed")
		nok(infoRetry)
		return
	case !record.Open:
		nok(infoNotStarted)
		return
	case record.Phase == string(PhaseCompleted):
		nok(infoOver)
		return
	}

	p, view, err := rt.registry.Join(ctx, record, Participant{ID: connID})
	switch {
	case errors.Is(err, ErrSessionCompleted):
		nok(infoOver)
		return
	case err != nil:
		rt.log.Error().Err(err).Str("session", record.Key).Msg("join failed")
		nok(infoRetry)
		return
	}

	rt.mu.Lock()
	rt.members[connID] = record.Key
	rt.mu.Unlock()

	rt.transport.EmitToParticipant(connID, EventInfoSession, InfoSessionPayload{
		Status:          StatusOK,
		Info:            infoWelcome,
		Pseudo:          p.Handle,
		IsGameStarted:   view.Started(),
		IsGameCompleted: view.Completed(),
		Phase:           view.Phase,
		Step:            view.Step,
	})
}

func (rt *Router) statistics(v RoomView, department string) StatisticsPayload {
	stats := StatisticsPayload{
		NbCollaboratorFound: v.SolvedCount,
		Score:               v.Score,
		TimeFastestCardMs:   v.FastestSolveMs,
		DepartmentCards:     rt.catalog.Department(department),
	}
	if card, ok := rt.catalog.Get(v.FastestCardKey); ok {
		stats.FastestCardFound = &card
	}
	if stats.DepartmentCards == nil {
		stats.DepartmentCards = []catalog.Card{}
	}
	return stats
}

func (rt *Router) withView(ctx context.Context, key string, fn func(RoomView)) error {
	v, err := rt.registry.View(ctx, key)
	if err != nil {
		return err
	}
	fn(v)
	return nil
}

func (rt *Router) roomOf(connID string) string {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return rt.members[connID]
}

func (rt *Router) status(connID, request string, err error) {
	if err == nil {
		rt.transport.EmitToParticipant(connID, EventStatus, StatusPayload{Status: StatusOK, Info: "OK", Request: request})
		return
	}

	info := infoRetry
	for _, public := range publicErrors {
		if errors.Is(err, public) {
			info = err.Error()
			break
		}
	}
	if info == infoRetry {
		rt.log.Error().Err(err).Str("participant", connID).Str("event", request).Msg("request failed")
	}

	rt.transport.EmitToParticipant(connID, EventStatus, StatusPayload{Status: StatusNotOK, Info: info, Request: request})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
