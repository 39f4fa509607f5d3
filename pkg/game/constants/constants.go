package constants

import "time"

const (

	// MatchTickInterval is the length of one simulation tick (20 ticks per second)
	MatchTickInterval = 50 * time.Millisecond

	// PlayerSpeed is the speed at which players move in units per second
	PlayerSpeed float64 = 6.0
	// PlayerSize is the side length of a player's collision box
	PlayerSize float64 = 0.9
	// PlayerHitpoints is the amount of hitpoints a player spawns with
	PlayerHitpoints int16 = 100

	// AttackRange is the reach of a melee attack from the attacker's center
	AttackRange float64 = 1.2
	// AttackWidth is the width of the attack hitbox
	AttackWidth float64 = PlayerSize
	// AttackDamage is the amount of damage a melee attack does
	AttackDamage int16 = 34
	// AttackCooldown is the minimum time between two attacks
	AttackCooldown = 400 * time.Millisecond

	// RespawnDelay is the time between a death and the respawn
	RespawnDelay = 3 * time.Second

	// WarmupDuration is the length of the warmup phase
	WarmupDuration = 15 * time.Second
	// MatchDuration is the maximum length of the live phase
	MatchDuration = 5 * time.Minute
	// PodiumDuration is how long the final standings are shown
	PodiumDuration = 10 * time.Second
	// ScoreLimit ends the live phase early when a player reaches this many kills
	ScoreLimit = 20

	// CollisionCellSize is the cell size of the arena collision space
	CollisionCellSize = 2
)
