package types

import (
	"time"

	"github.com/kmathys/skirmish/pkg/occupancy"
)

type MatchPhase uint8

const (
	MatchPhaseWarmup MatchPhase = iota
	MatchPhaseLive
	MatchPhasePodium
)

func (p MatchPhase) String() string {
	switch p {
	case MatchPhaseWarmup:
		return "warmup"
	case MatchPhaseLive:
		return "live"
	case MatchPhasePodium:
		return "podium"
	default:
		return "unknown"
	}
}

type MatchState struct {
	// MatchID identifies one warmup-to-podium cycle
	MatchID string
	Phase   MatchPhase
	// PhaseEndsAt is when the current phase transitions on its own
	PhaseEndsAt time.Time
	StartedAt   time.Time
	// Timestamp is the time at which the last tick ran
	Timestamp int64
	// Players maps client IDs to player states
	Players map[uint32]*PlayerState
	// CollisionSpace holds walls and player objects for hit and
	// clearance queries
	CollisionSpace *occupancy.Space
}

func NewMatchState(matchID string, collisionSpace *occupancy.Space) *MatchState {
	return &MatchState{
		MatchID:        matchID,
		Phase:          MatchPhaseWarmup,
		Players:        make(map[uint32]*PlayerState),
		CollisionSpace: collisionSpace,
	}
}

func (m *MatchState) AddPlayer(id uint32, state *PlayerState) {
	m.Players[id] = state
}

func (m *MatchState) RemovePlayer(id uint32) {
	delete(m.Players, id)
}

func (m *MatchState) SetTimestamp(timestamp int64) {
	m.Timestamp = timestamp
}
