/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
	"github.com/Seednode/escaperoom/internal/session"
	"github.com/rs/zerolog"
)

const handlePrefix = "PLAYER_"

type command any

type joinCmd struct {
	ctx         context.Context
	participant Participant
	reply       chan joinReply
}

type joinReply struct {
	participant Participant
	view        RoomView
	err         error
}

type leaveCmd struct {
	ctx   context.Context
	id    string
	reply chan error
}

type proposeCmd struct {
	ctx      context.Context
	id       string
	proposal Proposal
	reply    chan error
}

type voteCmd struct {
	ctx   context.Context
	id    string
	agree bool
	reply chan error
}

type codeCmd struct {
	ctx   context.Context
	id    string
	code  string
	reply chan error
}

type viewCmd struct {
	reply chan RoomView
}

type tickCmd struct {
	ctx context.Context
	now time.Time
}

// VoteView is a snapshot of an open vote.
type VoteView struct {
	Proposer  string
	Proposal  Proposal
	StartedAt time.Time
	Ballots   []BallotView
}

// RoomView is a snapshot of a room, safe to use outside its goroutine.
type RoomView struct {
	Key             string
	Mode            session.Mode
	Phase           Phase
	Step            int
	Participants    []Participant
	Captain         string
	Score           int
	SolvedCount     int
	FastestSolveMs  int64
	FastestCardKey  string
	PhaseStartedAt  time.Time
	Vote            *VoteView
	Cards           []catalog.Card
	PuzzleStartedAt time.Time

	target string
}

// Started reports whether the room has left its initial phase.
func (v RoomView) Started() bool {
	return v.Phase != PhaseLobby
}

// Completed reports whether the room reached its terminal phase.
func (v RoomView) Completed() bool {
	return v.Phase == PhaseCompleted
}

// Room is one live session. Every field below inbox is owned by run.
type Room struct {
	key   string
	mode  *Mode
	reg   *Registry
	log   zerolog.Logger
	inbox chan command
	done  chan struct{}

	participants   []*Participant
	phase          Phase
	step           int
	phaseStartedAt time.Time
	score          int
	solved         int
	fastestMs      int64
	fastestCardKey string
	vote           *Vote
	puzzle         *Puzzle
	used           map[string]struct{}
}

func newRoom(reg *Registry, mode *Mode, record session.Record) (*Room, error) {
	r := &Room{
		key:   record.Key,
		mode:  mode,
		reg:   reg,
		log:   reg.log.With().Str("room", record.Key).Logger(),
		inbox: make(chan command, reg.opts.InboxSize),
		done:  make(chan struct{}),
		used:  make(map[string]struct{}),
	}
	if record.Phase == "" {
		record.Phase = string(mode.Initial)
	}
	if !mode.Known(Phase(record.Phase)) {
		return nil, fmt.Errorf("%w: phase %q is not part of mode %q", ErrUnknownMode, record.Phase, mode.Name)
	}
	r.apply(record)

	return r, nil
}

func (r *Room) send(ctx context.Context, cmd command) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-r.done:
		return errRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// offer queues cmd without waiting. It reports false if the inbox is full.
func (r *Room) offer(cmd command) bool {
	select {
	case r.inbox <- cmd:
		return true
	default:
		return false
	}
}

func await[T any](ctx context.Context, r *Room, reply <-chan T) (T, error) {
	var zero T

	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, errRoomClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Room) run() {
	defer close(r.done)

	for cmd := range r.inbox {
		if r.handle(cmd) {
			return
		}
	}
}

// handle runs one command and reports whether the room has shut down.
func (r *Room) handle(cmd command) bool {
	switch c := cmd.(type) {
	case joinCmd:
		p, err := r.join(c.participant)
		res := joinReply{participant: p, err: err}
		if err == nil {
			res.view = r.view()
		}
		closed := r.closeIfEmpty()
		c.reply <- res
		return closed
	case leaveCmd:
		err := r.leave(c.id)
		closed := r.closeIfEmpty()
		c.reply <- err
		return closed
	case proposeCmd:
		c.reply <- r.propose(c.ctx, c.id, c.proposal)
	case voteCmd:
		c.reply <- r.castVote(c.ctx, c.id, c.agree)
	case codeCmd:
		c.reply <- r.submitCode(c.ctx, c.id, c.code)
	case viewCmd:
		c.reply <- r.view()
	case tickCmd:
		r.tick(c.ctx, c.now)
	default:
		r.log.Warn().Str("command", fmt.Sprintf("%T", cmd)).Msg("unknown room command")
	}
	return false
}

// closeIfEmpty unregisters an empty room before its caller is answered, so
// the next Join for the key starts a fresh room.
func (r *Room) closeIfEmpty() bool {
	if len(r.participants) > 0 {
		return false
	}
	r.reg.remove(r)
	return true
}

func (r *Room) join(p Participant) (Participant, error) {
	if r.phase == r.mode.Terminal {
		return Participant{}, ErrSessionCompleted
	}
	if r.find(p.ID) != nil {
		return Participant{}, ErrAlreadyJoined
	}
	if p.Handle == "" {
		p.Handle = r.nextHandle()
	}
	p.Captain = r.mode.Spec(r.phase).Captained && r.captain() == ""

	r.participants = append(r.participants, &p)
	r.reg.transport.JoinChannel(p.ID, r.key)

	r.log.Debug().Str("participant", p.ID).Str("handle", p.Handle).Msg("joined")

	if p.Captain {
		r.reg.transport.EmitToRoom(r.key, EventCaptainElected, CaptainPayload{Captain: p.Handle})
	}

	if r.mode.Spec(r.phase).Puzzle && r.puzzle == nil {
		r.nextPuzzle()
	}
	r.broadcastUsers()

	return p, nil
}

func (r *Room) leave(id string) error {
	i := slices.IndexFunc(r.participants, func(p *Participant) bool { return p.ID == id })
	if i < 0 {
		return nil
	}
	p := r.participants[i]
	r.participants = slices.Delete(r.participants, i, i+1)
	r.reg.transport.LeaveChannel(id, r.key)

	r.log.Debug().Str("participant", id).Str("handle", p.Handle).Msg("left")

	if r.vote != nil {
		r.vote = nil
		r.reg.transport.EmitToRoom(r.key, EventVoteFail, VoteFailPayload{Reason: p.Handle + " left the room"})
	}

	if len(r.participants) == 0 {
		return nil
	}

	if p.Captain {
		next := r.participants[0]
		next.Captain = true
		r.reg.transport.EmitToRoom(r.key, EventCaptainElected, CaptainPayload{Captain: next.Handle})
	}
	r.broadcastUsers()

	return nil
}

func (r *Room) propose(ctx context.Context, id string, proposal Proposal) error {
	p := r.find(id)
	if p == nil {
		return ErrNotInRoom
	}
	if r.phase == r.mode.Terminal {
		return ErrSessionCompleted
	}
	if _, ok := r.mode.Lookup(r.phase, TriggerVote, proposal.Kind); !ok {
		return ErrProposalNotAllowed
	}
	if r.vote != nil {
		return ErrVoteInProgress
	}

	var card *catalog.Card
	switch proposal.Kind {
	case ProposalCaptain:
		if r.findHandle(proposal.Captain) == nil {
			return ErrUnknownCandidate
		}
	case ProposalAnswer:
		if r.puzzle == nil {
			return ErrNoPuzzle
		}
		if !r.puzzle.contains(proposal.CardKey) {
			return ErrUnknownCard
		}
		for _, c := range r.puzzle.Cards {
			if c.Key == proposal.CardKey {
				card = &c
				break
			}
		}
	}

	r.vote = openVote(id, proposal, r.ids(), r.reg.now())

	r.reg.transport.EmitToRoomExcept(r.key, id, proposal.shareEvent(), SharePayload{
		Proposer:      p.Handle,
		ShareSentence: proposal.sentence(p.Handle, card),
		Captain:       proposal.Captain,
		Card:          card,
	})

	r.settle(ctx, false)

	return nil
}

func (r *Room) castVote(ctx context.Context, id string, agree bool) error {
	if r.vote == nil {
		return ErrNoActiveVote
	}
	if !r.vote.eligible(id) {
		if r.find(id) == nil {
			return nil
		}
		return ErrNotEligible
	}
	r.vote.cast(id, agree)

	r.settle(ctx, false)

	return nil
}

// settle emits progress for the open vote and resolves it once decided.
func (r *Room) settle(ctx context.Context, force bool) {
	v := r.vote
	if !force {
		r.reg.transport.EmitToRoom(r.key, EventVoteProgress, VoteProgressPayload{UserVotes: r.ballots(v)})
	}

	passed, decided := v.Resolve(force)
	if !decided {
		return
	}
	r.vote = nil

	agree, disagree, pending := v.Tally()
	r.log.Debug().
		Str("proposal", string(v.Proposal.Kind)).
		Int("agree", agree).
		Int("disagree", disagree).
		Int("pending", pending).
		Bool("passed", passed).
		Msg("vote resolved")

	if !passed {
		r.reg.transport.EmitToRoom(r.key, EventVoteFail, VoteFailPayload{})
		return
	}

	t, ok := r.mode.Lookup(r.phase, TriggerVote, v.Proposal.Kind)
	if !ok {
		r.reg.transport.EmitToRoom(r.key, EventVoteFail, VoteFailPayload{})
		return
	}
	if err := r.fire(ctx, t, v.Proposal); err != nil {
		r.fail(err)
	}
}

func (r *Room) submitCode(ctx context.Context, id, code string) error {
	p := r.find(id)
	if p == nil {
		return ErrNotInRoom
	}
	t, ok := r.mode.Lookup(r.phase, TriggerAction, "")
	if !ok {
		return ErrActionNotAllowed
	}
	if !p.Captain {
		return ErrNotCaptain
	}

	codes := r.reg.opts.EscapeCodes
	if r.step >= len(codes) || !strings.EqualFold(strings.TrimSpace(code), strings.TrimSpace(codes[r.step])) {
		return ErrWrongCode
	}

	return r.fire(ctx, t, Proposal{})
}

// fire carries out t. Stores are written before any in-memory change.
func (r *Room) fire(ctx context.Context, t Transition, proposal Proposal) error {
	if r.phase == r.mode.Terminal {
		return nil
	}

	if t.Effect == EffectScoreAnswer {
		return r.scoreAnswer(ctx, proposal)
	}

	next, step := t.Next, 0
	if next == "" {
		next, step = r.phase, r.step
	}
	if t.Effect == EffectAdvanceStep && r.step+1 < r.mode.Spec(r.phase).Steps {
		next, step = r.phase, r.step+1
	}

	update := session.Update{
		Phase: session.Ptr(string(next)),
		Step:  session.Ptr(step),
	}
	if next != r.phase {
		update.PhaseStartedAt = session.Ptr(r.reg.now())
	}

	record, err := r.reg.store.UpdateSession(ctx, r.key, update)
	if err != nil {
		return fmt.Errorf("persist phase %s: %w", next, err)
	}

	prev := r.phase
	r.apply(record)

	r.log.Info().
		Str("from", string(prev)).
		Str("to", string(r.phase)).
		Int("step", r.step).
		Str("trigger", t.Trigger.String()).
		Msg("phase changed")

	switch t.Effect {
	case EffectStartGame:
		r.reg.transport.EmitToRoom(r.key, EventGotoGame, nil)
	case EffectElectCaptain:
		r.setCaptain(proposal.Captain)
	}

	r.reg.transport.EmitToRoom(r.key, EventPhaseChanged, PhasePayload{Phase: r.phase, Step: r.step})

	if r.phase == prev {
		return nil
	}

	spec := r.mode.Spec(r.phase)
	if !spec.Puzzle {
		r.puzzle = nil
	}
	if r.phase == r.mode.Terminal {
		r.vote = nil
		r.reg.transport.EmitToRoom(r.key, EventGameEnding, nil)
		return nil
	}
	if spec.Puzzle && r.puzzle == nil {
		r.nextPuzzle()
	}

	return nil
}

func (r *Room) scoreAnswer(ctx context.Context, proposal Proposal) error {
	if r.puzzle == nil {
		return ErrNoPuzzle
	}

	target := r.puzzle.Target
	correct := proposal.CardKey == target.Key

	var update session.Update
	if correct {
		elapsed := r.reg.now().Sub(r.puzzle.StartedAt).Milliseconds()
		update.Score = session.Ptr(r.score + 10)
		update.SolvedCount = session.Ptr(r.solved + 1)
		if r.fastestMs == 0 || elapsed < r.fastestMs {
			update.FastestSolveMs = session.Ptr(elapsed)
			update.FastestCardKey = session.Ptr(target.Key)
		}
	} else {
		update.Score = session.Ptr(r.score - 1)
	}

	record, err := r.reg.store.UpdateSession(ctx, r.key, update)
	if err != nil {
		return fmt.Errorf("persist answer: %w", err)
	}
	r.apply(record)

	r.log.Debug().Bool("correct", correct).Int("score", r.score).Int("solved", r.solved).Msg("answer scored")

	if !correct {
		r.reg.transport.EmitToRoom(r.key, EventBadAnswer, ScorePayload{Score: r.score})
		return nil
	}

	r.reg.transport.EmitToRoom(r.key, EventGoodAnswer, ScorePayload{Score: r.score})
	r.nextPuzzle()

	return nil
}

func (r *Room) nextPuzzle() {
	p, err := r.reg.selector.Next(r.used, r.solved, r.reg.now())
	if err != nil {
		r.puzzle = nil
		r.log.Warn().Err(err).Msg("could not select a puzzle")
		r.reg.transport.EmitToRoom(r.key, EventRoomError, RoomErrorPayload{
			Status: StatusNotOK,
			Info:   "No collaborators left to find",
		})
		return
	}
	r.puzzle = p
	r.broadcastGameData()
}

func (r *Room) tick(ctx context.Context, now time.Time) {
	if len(r.participants) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if r.vote != nil {
		deadline := r.vote.StartedAt.Add(r.reg.opts.VoteTimeout)
		if !now.Before(deadline) {
			r.settle(ctx, true)
		} else {
			secs := int(math.Ceil(deadline.Sub(now).Seconds()))
			r.reg.transport.EmitToRoom(r.key, EventVoteTimer, VoteTimerPayload{Seconds: secs})
		}
	}

	if spec := r.mode.Spec(r.phase); spec.Countdown && !r.phaseStartedAt.IsZero() {
		left := r.phaseStartedAt.Add(r.reg.opts.GameDuration).Sub(now)
		if left < 0 {
			if t, ok := r.mode.Lookup(r.phase, TriggerTimeout, ""); ok {
				if err := r.fire(ctx, t, Proposal{}); err != nil {
					r.fail(err)
				}
			}
		} else {
			r.reg.transport.EmitToRoom(r.key, EventGameTimer, countdown(left))
		}
	}

	if r.mode.Spec(r.phase).Puzzle && r.puzzle != nil {
		r.sendClues(now)
	}
}

func (r *Room) sendClues(now time.Time) {
	attrs := WaveAt(now.Sub(r.puzzle.StartedAt))
	if len(attrs) == 0 {
		return
	}

	dealt := Distribute(r.ids(), CluesFor(r.puzzle.Target, attrs), r.solved)
	for i, p := range r.participants {
		r.reg.transport.EmitToParticipant(p.ID, EventClues, CluesPayload{Clues: dealt[i]})
	}
}

func (r *Room) fail(err error) {
	r.log.Error().Err(err).Msg("room operation failed")
	r.reg.transport.EmitToRoom(r.key, EventRoomError, RoomErrorPayload{
		Status: StatusNotOK,
		Info:   "Something went wrong, please try again",
	})
}

func (r *Room) apply(record session.Record) {
	r.phase = Phase(record.Phase)
	r.step = record.Step
	r.phaseStartedAt = record.PhaseStartedAt
	r.score = record.Score
	r.solved = record.SolvedCount
	r.fastestMs = record.FastestSolveMs
	r.fastestCardKey = record.FastestCardKey
}

func (r *Room) setCaptain(handle string) {
	var elected *Participant
	for _, p := range r.participants {
		p.Captain = p.Handle == handle
		if p.Captain {
			elected = p
		}
	}
	if elected == nil && len(r.participants) > 0 {
		elected = r.participants[0]
		elected.Captain = true
	}
	if elected != nil {
		r.reg.transport.EmitToRoom(r.key, EventCaptainElected, CaptainPayload{Captain: elected.Handle})
	}
}

func (r *Room) nextHandle() string {
	taken := make(map[string]bool, len(r.participants))
	for _, p := range r.participants {
		taken[p.Handle] = true
	}
	for n := 1; ; n++ {
		h := handlePrefix + strconv.Itoa(n)
		if !taken[h] {
			return h
		}
	}
}

func (r *Room) find(id string) *Participant {
	for _, p := range r.participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) findHandle(handle string) *Participant {
	for _, p := range r.participants {
		if p.Handle == handle {
			return p
		}
	}
	return nil
}

func (r *Room) ids() []string {
	ids := make([]string, len(r.participants))
	for i, p := range r.participants {
		ids[i] = p.ID
	}
	return ids
}

func (r *Room) captain() string {
	for _, p := range r.participants {
		if p.Captain {
			return p.Handle
		}
	}
	return ""
}

func (r *Room) ballots(v *Vote) []BallotView {
	out := make([]BallotView, 0, len(v.ballots))
	for _, e := range v.ballots {
		handle := e.id
		if p := r.find(e.id); p != nil {
			handle = p.Handle
		}
		out = append(out, BallotView{Pseudo: handle, Vote: e.ballot})
	}
	return out
}

func (r *Room) broadcastUsers() {
	users := make([]string, len(r.participants))
	for i, p := range r.participants {
		users[i] = p.Handle
	}
	r.reg.transport.EmitToRoom(r.key, EventConnectedUsers, ConnectedUsersPayload{Users: users, Captain: r.captain()})
}

func (r *Room) gameData() GameDataPayload {
	data := GameDataPayload{NbCollaboratorFound: r.solved, Cards: []catalog.Card{}}
	if r.puzzle != nil {
		data.Cards = slices.Clone(r.puzzle.Cards)
	}
	return data
}

func (r *Room) broadcastGameData() {
	r.reg.transport.EmitToRoom(r.key, EventGameData, r.gameData())
}

func (r *Room) view() RoomView {
	v := RoomView{
		Key:            r.key,
		Mode:           r.mode.Name,
		Phase:          r.phase,
		Step:           r.step,
		Participants:   make([]Participant, len(r.participants)),
		Captain:        r.captain(),
		Score:          r.score,
		SolvedCount:    r.solved,
		FastestSolveMs: r.fastestMs,
		FastestCardKey: r.fastestCardKey,
		PhaseStartedAt: r.phaseStartedAt,
		Cards:          r.gameData().Cards,
	}
	for i, p := range r.participants {
		v.Participants[i] = *p
	}
	if r.vote != nil {
		v.Vote = &VoteView{
			Proposer:  r.vote.Proposer,
			Proposal:  r.vote.Proposal,
			StartedAt: r.vote.StartedAt,
			Ballots:   r.ballots(r.vote),
		}
	}
	if r.puzzle != nil {
		v.PuzzleStartedAt = r.puzzle.StartedAt
		v.target = r.puzzle.Target.Key
	}
	return v
}
