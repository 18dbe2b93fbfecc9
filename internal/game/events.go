/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"time"

	"github.com/Seednode/escaperoom/internal/catalog"
)

// Inbound events, as sent by clients.
const (
	EventJoinSession       = "joinSession"
	EventProposeStart      = "YM_Propose"
	EventProposeAnswer     = "TG_Propose"
	EventProposeCaptain    = "CP_Propose"
	EventSubmitCode        = "CP_SubmitCode"
	EventUserVote          = "MX_UserVote"
	EventRequestGameData   = "requestUpdateGameData"
	EventRequestUsers      = "requestConnectedUsers"
	EventRequestStatistics = "requestStatistics"
	EventRequestScore      = "requestScore"
	EventRequestRating     = "requestRateAndComment"
)

// Outbound events.
const (
	EventInfoSession    = "infoSession"
	EventStatus         = "status"
	EventConnectedUsers = "connectedUsers"
	EventShareStart     = "YM_ShareVote"
	EventShareAnswer    = "TG_ShareVote"
	EventShareCaptain   = "CP_ShareVote"
	EventVoteProgress   = "MX_VoteProgress"
	EventVoteFail       = "MX_VoteFail"
	EventVoteTimer      = "MX_VoteTimerUpdate"
	EventGoodAnswer     = "MX_VoteGoodAnswer"
	EventBadAnswer      = "MX_VoteBadAnswer"
	EventGotoGame       = "GotoTheGame"
	EventGameEnding     = "TG_GameEnding"
	EventPhaseChanged   = "phaseChanged"
	EventCaptainElected = "captainElected"
	EventGameTimer      = "updateTimerGame"
	EventClues          = "updateCluesData"
	EventGameData       = "updateGameData"
	EventStatistics     = "Statistics"
	EventScore          = "UpdateScore"
	EventRoomError      = "roomError"
)

const (
	StatusOK    = "OK"
	StatusNotOK = "NOK"
)

// StatusPayload answers a request/response style action.
type StatusPayload struct {
	Status  string `json:"status"`
	Info    string `json:"info"`
	Request string `json:"request,omitempty"`
}

// InfoSessionPayload answers joinSession.
type InfoSessionPayload struct {
	Status          string `json:"status"`
	Info            string `json:"info"`
	Pseudo          string `json:"pseudo,omitempty"`
	IsGameStarted   bool   `json:"isGameStarted"`
	IsGameCompleted bool   `json:"isGameCompleted"`
	Phase           Phase  `json:"phase,omitempty"`
	Step            int    `json:"step"`
}

type ConnectedUsersPayload struct {
	Users   []string `json:"users"`
	Captain string   `json:"captain,omitempty"`
}

type SharePayload struct {
	Proposer      string        `json:"proposer"`
	ShareSentence string        `json:"shareSentence"`
	Captain       string        `json:"captain,omitempty"`
	Card          *catalog.Card `json:"goodCard,omitempty"`
}

type BallotView struct {
	Pseudo string `json:"pseudo"`
	Vote   Ballot `json:"vote"`
}

type VoteProgressPayload struct {
	UserVotes []BallotView `json:"userVotes"`
}

type VoteFailPayload struct {
	Reason string `json:"reason,omitempty"`
}

type VoteTimerPayload struct {
	Seconds int `json:"seconds"`
}

type ScorePayload struct {
	Score int `json:"score"`
}

type PhasePayload struct {
	Phase Phase `json:"phase"`
	Step  int   `json:"step"`
}

type CaptainPayload struct {
	Captain string `json:"captain"`
}

type GameTimerPayload struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type CluesPayload struct {
	Clues []Clue `json:"clues"`
}

type GameDataPayload struct {
	NbCollaboratorFound int            `json:"nbCollaboratorFound"`
	Cards               []catalog.Card `json:"cards"`
}

type StatisticsPayload struct {
	NbCollaboratorFound int            `json:"nbCollaboratorFound"`
	Score               int            `json:"score"`
	FastestCardFound    *catalog.Card  `json:"fastestCardFound"`
	TimeFastestCardMs   int64          `json:"timeFastestCardMs"`
	DepartmentCards     []catalog.Card `json:"departmentCards"`
}

type RoomErrorPayload struct {
	Status string `json:"status"`
	Info   string `json:"info"`
}

// countdown splits d into whole minutes and seconds.
func countdown(d time.Duration) GameTimerPayload {
	secs := int(d / time.Second)
	return GameTimerPayload{Minutes: secs / 60, Seconds: secs % 60}
}
