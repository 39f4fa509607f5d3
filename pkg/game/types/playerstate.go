package types

import (
	"time"

	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/kmathys/skirmish/pkg/spawn"
	"github.com/solarlune/resolv"
)

type PlayerState struct {
	UserID                 string      `json:"userID"`
	Handle                 string      `json:"handle"`
	Team                   spawn.Team  `json:"team"`
	LastProcessedTimestamp int64       `json:"lastProcessedTimestamp"`
	Position               geom.Vector `json:"position"`
	Yaw                    float64     `json:"yaw"`
	Hitpoints              int16       `json:"hitpoints"`
	Kills                  int         `json:"kills"`
	Deaths                 int         `json:"deaths"`
	Streak                 int         `json:"streak"`
	BestStreak             int         `json:"bestStreak"`
	// RespawnAt is zero while the player is alive
	RespawnAt    time.Time      `json:"-"`
	LastAttackAt time.Time      `json:"-"`
	Object       *resolv.Object `json:"-"`
}

func NewPlayerState(userID, handle string, team spawn.Team) *PlayerState {
	return &PlayerState{
		UserID: userID,
		Handle: handle,
		Team:   team,
	}
}

func (p *PlayerState) Alive() bool {
	return p.Hitpoints > 0
}

func (p *PlayerState) TakeDamage(damage int16) {
	p.Hitpoints -= damage
	if p.Hitpoints < 0 {
		p.Hitpoints = 0
	}
}

// ResetForSpawn places the player at a spawn location with full health.
func (p *PlayerState) ResetForSpawn(position geom.Vector, yaw float64, hitpoints int16) {
	p.Position = position
	p.Yaw = yaw
	p.Hitpoints = hitpoints
	p.RespawnAt = time.Time{}
}

// ResetScore clears the per-match counters.
func (p *PlayerState) ResetScore() {
	p.Kills = 0
	p.Deaths = 0
	p.Streak = 0
	p.BestStreak = 0
}

// Copy returns a copy of the player state with an empty object reference
func (p *PlayerState) Copy() *PlayerState {
	return &PlayerState{
		UserID:                 p.UserID,
		Handle:                 p.Handle,
		Team:                   p.Team,
		LastProcessedTimestamp: p.LastProcessedTimestamp,
		Position:               p.Position,
		Yaw:                    p.Yaw,
		Hitpoints:              p.Hitpoints,
		Kills:                  p.Kills,
		Deaths:                 p.Deaths,
		Streak:                 p.Streak,
		BestStreak:             p.BestStreak,
		RespawnAt:              p.RespawnAt,
		LastAttackAt:           p.LastAttackAt,
	}
}
