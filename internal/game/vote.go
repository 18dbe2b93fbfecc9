/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
)

// Ballot is one participant's position in a vote.
type Ballot string

const (
	BallotNone     Ballot = "no-vote"
	BallotAgree    Ballot = "vote-agree"
	BallotDisagree Ballot = "vote-disagree"
)

// ProposalKind names what a vote decides.
type ProposalKind string

const (
	ProposalStart   ProposalKind = "start"
	ProposalCaptain ProposalKind = "captain"
	ProposalAnswer  ProposalKind = "answer"
)

// Proposal is the payload a vote carries until it resolves.
type Proposal struct {
	Kind    ProposalKind
	Captain string
	CardKey string
}

func (p Proposal) shareEvent() string {
	switch p.Kind {
	case ProposalCaptain:
		return EventShareCaptain
	case ProposalAnswer:
		return EventShareAnswer
	}
	return EventShareStart
}

func (p Proposal) sentence(proposer string, card *catalog.Card) string {
	switch p.Kind {
	case ProposalCaptain:
		return proposer + " proposes " + p.Captain + " as captain"
	case ProposalAnswer:
		if card != nil {
			return proposer + " thinks it is " + card.FirstName + " " + card.LastName
		}
		return proposer + " proposes an answer"
	}
	return proposer + " wants to start the game"
}

type ballotEntry struct {
	id     string
	ballot Ballot
}

// Vote is an open decision. Its ballot set is fixed when it opens.
type Vote struct {
	Proposer  string
	Proposal  Proposal
	StartedAt time.Time
	ballots   []ballotEntry
}

func openVote(proposer string, proposal Proposal, voters []string, now time.Time) *Vote {
	v := &Vote{
		Proposer:  proposer,
		Proposal:  proposal,
		StartedAt: now,
		ballots:   make([]ballotEntry, 0, len(voters)),
	}
	for _, id := range voters {
		b := BallotNone
		if id == proposer {
			b = BallotAgree
		}
		v.ballots = append(v.ballots, ballotEntry{id: id, ballot: b})
	}
	return v
}

// eligible reports whether id held a ballot when the vote opened.
func (v *Vote) eligible(id string) bool {
	for _, e := range v.ballots {
		if e.id == id {
			return true
		}
	}
	return false
}

func (v *Vote) cast(id string, agree bool) bool {
	for i := range v.ballots {
		if v.ballots[i].id == id {
			if agree {
				v.ballots[i].ballot = BallotAgree
			} else {
				v.ballots[i].ballot = BallotDisagree
			}
			return true
		}
	}
	return false
}

// Tally counts the ballots.
func (v *Vote) Tally() (agree, disagree, pending int) {
	for _, e := range v.ballots {
		switch e.ballot {
		case BallotAgree:
			agree++
		case BallotDisagree:
			disagree++
		default:
			pending++
		}
	}
	return agree, disagree, pending
}

// Resolve decides the vote. Without force it only decides once every ballot
// is cast. With force, missing ballots count as agreement.
func (v *Vote) Resolve(force bool) (passed, decided bool) {
	agree, disagree, pending := v.Tally()
	if pending > 0 && !force {
		return false, false
	}
	agree += pending

	return agree >= disagree, true
}

// Remaining returns how long until the vote times out.
func (v *Vote) Remaining(now time.Time, timeout time.Duration) time.Duration {
	left := v.StartedAt.Add(timeout).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
