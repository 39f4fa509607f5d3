package game

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kmathys/skirmish/pkg/game/constants"
	"github.com/kmathys/skirmish/pkg/game/types"
	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/kmathys/skirmish/pkg/levels"
	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/messages"
	"github.com/kmathys/skirmish/pkg/occupancy"
	"github.com/kmathys/skirmish/pkg/queue"
	"github.com/kmathys/skirmish/pkg/repositories/models"
	"github.com/kmathys/skirmish/pkg/spawn"
	"github.com/kmathys/skirmish/pkg/workers"
	"github.com/solarlune/resolv"
)

// Mode selects how players are assigned to spawn pools and who can hit whom.
type Mode string

const (
	ModeFFA  Mode = "ffa"
	ModeTeam Mode = "team"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFFA, ModeTeam:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

type MatchManager struct {
	clientMessageQueue   queue.Queue
	connectionEventQueue queue.Queue
	allocator            *spawn.Allocator
	arena                *levels.Arena
	mode                 Mode
	matchState           *types.MatchState
	saveMatchResultChan  chan<- workers.SaveMatchResultRequest
	broadcastMessageChan chan<- workers.BroadcastMessage
	tickInterval         time.Duration
}

// NewMatchManagerOptions contains options for creating a new MatchManager.
type NewMatchManagerOptions struct {
	ClientMessageQueue   queue.Queue
	ConnectionEventQueue queue.Queue
	Arena                *levels.Arena
	Mode                 Mode
	// Authoritative must be true on the host that owns match state
	Authoritative        bool
	SaveMatchResultChan  chan<- workers.SaveMatchResultRequest
	BroadcastMessageChan chan<- workers.BroadcastMessage
	TickInterval         time.Duration
}

func NewMatchManager(opts NewMatchManagerOptions) *MatchManager {
	collisionSpace := occupancy.NewSpace(opts.Arena.Width, opts.Arena.Height, constants.CollisionCellSize)
	for _, wall := range opts.Arena.Walls {
		collisionSpace.Add(occupancy.NewWallObject(wall.X, wall.Y, wall.Width, wall.Height))
	}

	allocator := spawn.NewAllocator(spawn.NewAllocatorOptions{
		Occupancy:     collisionSpace,
		Authoritative: opts.Authoritative,
	})
	allocator.Configure(opts.Arena.SpawnLocations())

	return &MatchManager{
		clientMessageQueue:   opts.ClientMessageQueue,
		connectionEventQueue: opts.ConnectionEventQueue,
		allocator:            allocator,
		arena:                opts.Arena,
		mode:                 opts.Mode,
		matchState:           types.NewMatchState(uuid.New().String(), collisionSpace),
		saveMatchResultChan:  opts.SaveMatchResultChan,
		broadcastMessageChan: opts.BroadcastMessageChan,
		tickInterval:         opts.TickInterval,
	}
}

// Allocator exposes the spawn allocator for wiring into disconnect paths.
func (gm *MatchManager) Allocator() *spawn.Allocator {
	return gm.allocator
}

// Start runs the match loop until the context is cancelled.
func (gm *MatchManager) Start(ctx context.Context) error {
	now := time.Now()
	gm.matchState.PhaseEndsAt = now.Add(constants.WarmupDuration)
	log.Info("Match %s starting warmup on arena %s", gm.matchState.MatchID, gm.arena.Name)
	gm.broadcastPhase(nil)

	ticker := time.NewTicker(gm.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			gm.matchTick(t)
		}
	}
}

// matchTick runs one iteration of the match loop.
func (gm *MatchManager) matchTick(t time.Time) {
	gm.matchState.SetTimestamp(t.UnixMilli())
	gm.processConnectionEvents()
	gm.processClientMessages(t)
	gm.processRespawns(t)
	gm.allocator.SweepExpired(t)
	gm.updatePhase(t)
	gm.broadcastMatchUpdate()
}

// processConnectionEvents processes all pending connection events in the
// queue, updates the match state, and notifies connected clients
func (gm *MatchManager) processConnectionEvents() {
	pendingEvents, err := gm.connectionEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read connection events: %v", err)
		return
	}
	for _, item := range pendingEvents {
		switch event := item.(type) {
		case *types.ConnectPlayerEvent:
			gm.handlePlayerConnect(event)
		case *types.DisconnectPlayerEvent:
			gm.handlePlayerDisconnect(event)
		default:
			log.Error("unhandled connection event type: %T", event)
		}
	}
}

func (gm *MatchManager) handlePlayerConnect(event *types.ConnectPlayerEvent) {
	team := spawn.TeamNone
	if gm.mode == ModeTeam {
		team = gm.pickTeam()
	}

	playerState := types.NewPlayerState(event.UserID, event.Handle, team)
	location := gm.findSpawn(team)
	playerState.ResetForSpawn(location.Position, location.Yaw, constants.PlayerHitpoints)
	playerState.Object = occupancy.NewPlayerObject(location.Position, constants.PlayerSize)
	gm.matchState.CollisionSpace.Add(playerState.Object)
	gm.matchState.AddPlayer(event.ClientID, playerState)
	log.Debug("Player %s joined team %s at %s", playerState.Handle, team, location.Name)

	gm.broadcastMessageChan <- workers.BroadcastMessage{
		Type: messages.MessageTypeServerPlayerConnect,
		Message: &messages.ServerPlayerConnect{
			ClientID: event.ClientID,
			Player:   snapshotPlayer(playerState),
		},
	}
}

func (gm *MatchManager) handlePlayerDisconnect(event *types.DisconnectPlayerEvent) {
	playerState, ok := gm.matchState.Players[event.ClientID]
	if !ok {
		return
	}

	gm.allocator.OnClientDisconnect(event.ClientID)
	if playerState.Object != nil {
		gm.matchState.CollisionSpace.Remove(playerState.Object)
	}
	gm.matchState.RemovePlayer(event.ClientID)

	gm.broadcastMessageChan <- workers.BroadcastMessage{
		Type: messages.MessageTypeServerPlayerDisconnect,
		Message: &messages.ServerPlayerDisconnect{
			ClientID: event.ClientID,
		},
	}
}

// pickTeam balances new players onto the smaller team.
func (gm *MatchManager) pickTeam() spawn.Team {
	alpha, bravo := 0, 0
	for _, playerState := range gm.matchState.Players {
		switch playerState.Team {
		case spawn.TeamAlpha:
			alpha++
		case spawn.TeamBravo:
			bravo++
		}
	}
	if alpha <= bravo {
		return spawn.TeamAlpha
	}
	return spawn.TeamBravo
}

// findSpawn returns an unreserved spawn location, falling back to the
// free-for-all pool when the team has none configured.
func (gm *MatchManager) findSpawn(team spawn.Team) spawn.Location {
	location, err := gm.allocator.FindSpawn(team)
	if err == nil {
		return location
	}
	if spawn.IsNoLocations(err) && team != spawn.TeamNone {
		if location, err = gm.allocator.FindSpawn(spawn.TeamNone); err == nil {
			return location
		}
	}
	log.Error("Failed to find a spawn location: %v", err)
	return spawn.Location{
		Position: geom.Vector{X: float64(gm.arena.Width) / 2, Y: float64(gm.arena.Height) / 2},
	}
}

// processClientMessages processes all pending client messages in the queue
// and updates the match state accordingly.
func (gm *MatchManager) processClientMessages(now time.Time) {
	pendingMessages, err := gm.clientMessageQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read client messages: %v", err)
		return
	}
	for _, item := range pendingMessages {
		message, ok := item.(*messages.Message)
		if !ok {
			log.Error("Failed to cast message to messages.Message")
			continue
		}

		switch message.Type {
		case messages.MessageTypeClientPlayerUpdate:
			gm.handlePlayerUpdate(message, now)
		default:
			log.Error("Unhandled message type: %s", message.Type)
		}
	}
}

func (gm *MatchManager) handlePlayerUpdate(message *messages.Message, now time.Time) {
	clientPlayerUpdate := &messages.ClientPlayerUpdate{}
	if err := json.Unmarshal(message.Payload, clientPlayerUpdate); err != nil {
		log.Error("Failed to unmarshal player update: %v", err)
		return
	}

	playerState, ok := gm.matchState.Players[message.ClientID]
	if !ok {
		log.Warn("Client %d is not in the match state", message.ClientID)
		return
	}

	if playerState.LastProcessedTimestamp > clientPlayerUpdate.Timestamp {
		log.Warn("Client %d sent an outdated player update", message.ClientID)
		return
	}
	playerState.LastProcessedTimestamp = clientPlayerUpdate.Timestamp

	if !playerState.Alive() {
		return
	}

	playerState.Position = gm.clampMovement(playerState.Position, clientPlayerUpdate.Position)
	playerState.Yaw = clientPlayerUpdate.Yaw
	occupancy.MoveObject(playerState.Object, playerState.Position)

	if clientPlayerUpdate.Firing {
		gm.handleAttack(message.ClientID, playerState, now)
	}
}

// clampMovement bounds the requested position to the arena and to the
// distance a player can cover in one tick. Clients are trusted for
// steering, not for speed.
func (gm *MatchManager) clampMovement(from, to geom.Vector) geom.Vector {
	maxStep := constants.PlayerSpeed * gm.tickInterval.Seconds()
	delta := to.Sub(from)
	if delta.Length() > maxStep {
		to = from.Add(delta.Normalize().Scale(maxStep))
	}

	half := constants.PlayerSize / 2
	to.X = math.Max(half, math.Min(float64(gm.arena.Width)-half, to.X))
	to.Y = math.Max(half, math.Min(float64(gm.arena.Height)-half, to.Y))
	return to
}

// handleAttack swings a melee attack along the attacker's facing and
// applies damage to every opposing player the hitbox touches.
func (gm *MatchManager) handleAttack(clientID uint32, playerState *types.PlayerState, now time.Time) {
	if now.Sub(playerState.LastAttackAt) < constants.AttackCooldown {
		return
	}
	playerState.LastAttackAt = now

	yaw := playerState.Yaw * math.Pi / 180
	reach := geom.Vector{X: math.Cos(yaw), Y: math.Sin(yaw)}.Scale(constants.AttackRange)
	end := playerState.Position.Add(reach)

	minX := math.Min(playerState.Position.X, end.X) - constants.AttackWidth/2
	minY := math.Min(playerState.Position.Y, end.Y) - constants.AttackWidth/2
	width := math.Abs(reach.X) + constants.AttackWidth
	height := math.Abs(reach.Y) + constants.AttackWidth

	attackHitbox := resolv.NewObject(minX, minY, width, height)
	gm.matchState.CollisionSpace.Add(attackHitbox)
	defer gm.matchState.CollisionSpace.Remove(attackHitbox)

	for victimID, victimState := range gm.matchState.Players {
		if victimID == clientID || !victimState.Alive() || victimState.Object == nil {
			continue
		}
		if gm.mode == ModeTeam && victimState.Team == playerState.Team {
			continue
		}
		if !attackHitbox.SharesCells(victimState.Object) {
			continue
		}

		damage := constants.AttackDamage
		victimState.TakeDamage(damage)
		log.Debug("Player %d hit player %d for %d", clientID, victimID, damage)

		gm.broadcastMessageChan <- workers.BroadcastMessage{
			Type: messages.MessageTypeServerPlayerHit,
			Message: &messages.ServerPlayerHit{
				VictimID:   victimID,
				AttackerID: clientID,
				Damage:     damage,
				Hitpoints:  victimState.Hitpoints,
			},
		}

		if !victimState.Alive() {
			gm.handleKill(clientID, playerState, victimID, victimState, now)
		}
	}
}

func (gm *MatchManager) handleKill(killerID uint32, killerState *types.PlayerState, victimID uint32, victimState *types.PlayerState, now time.Time) {
	log.Debug("Player %d killed player %d", killerID, victimID)

	killerState.Kills++
	killerState.Streak++
	if killerState.Streak > killerState.BestStreak {
		killerState.BestStreak = killerState.Streak
	}
	victimState.Deaths++
	victimState.Streak = 0
	victimState.RespawnAt = now.Add(constants.RespawnDelay)

	// a corpse should not block spawn clearance or soak further hits
	gm.matchState.CollisionSpace.Remove(victimState.Object)

	// claim the victim's next spawn point while they wait out the delay
	if _, err := gm.allocator.Reserve(victimID, gm.spawnTeam(victimState)); err != nil {
		log.Error("Failed to reserve a respawn location for client %d: %v", victimID, err)
	}

	gm.broadcastMessageChan <- workers.BroadcastMessage{
		Type: messages.MessageTypeServerPlayerKill,
		Message: &messages.ServerPlayerKill{
			VictimID: victimID,
			KillerID: killerID,
		},
	}
}

func (gm *MatchManager) spawnTeam(playerState *types.PlayerState) spawn.Team {
	if gm.mode == ModeTeam {
		return playerState.Team
	}
	return spawn.TeamNone
}

// processRespawns places dead players whose delay has elapsed back into
// the arena, consuming the location reserved at death.
func (gm *MatchManager) processRespawns(now time.Time) {
	for clientID, playerState := range gm.matchState.Players {
		if playerState.Alive() || playerState.RespawnAt.IsZero() || now.Before(playerState.RespawnAt) {
			continue
		}

		location, ok := gm.allocator.GetReservation(clientID)
		if !ok {
			// the reservation expired or was never made, claim a fresh one
			var err error
			location, err = gm.allocator.Reserve(clientID, gm.spawnTeam(playerState))
			if err != nil {
				log.Error("Failed to reserve a respawn location for client %d: %v", clientID, err)
				continue
			}
		}

		gm.placePlayer(playerState, location)
		gm.allocator.Release(clientID)
		log.Debug("Player %d respawned at %s", clientID, location.Name)

		gm.broadcastMessageChan <- workers.BroadcastMessage{
			Type: messages.MessageTypeServerPlayerRespawn,
			Message: &messages.ServerPlayerRespawn{
				ClientID: clientID,
				Position: location.Position,
				Yaw:      location.Yaw,
			},
		}
	}
}

// placePlayer resets the player at the location and puts its collision
// object back into the space.
func (gm *MatchManager) placePlayer(playerState *types.PlayerState, location spawn.Location) {
	playerState.ResetForSpawn(location.Position, location.Yaw, constants.PlayerHitpoints)
	if playerState.Object == nil {
		playerState.Object = occupancy.NewPlayerObject(location.Position, constants.PlayerSize)
	}
	gm.matchState.CollisionSpace.Add(playerState.Object)
	occupancy.MoveObject(playerState.Object, location.Position)
}

func (gm *MatchManager) updatePhase(now time.Time) {
	switch gm.matchState.Phase {
	case types.MatchPhaseWarmup:
		if now.Before(gm.matchState.PhaseEndsAt) {
			return
		}
		gm.startLive(now)
	case types.MatchPhaseLive:
		if now.Before(gm.matchState.PhaseEndsAt) && !gm.scoreLimitReached() {
			return
		}
		gm.startPodium(now)
	case types.MatchPhasePodium:
		if now.Before(gm.matchState.PhaseEndsAt) {
			return
		}
		gm.startWarmup(now)
	}
}

func (gm *MatchManager) scoreLimitReached() bool {
	for _, playerState := range gm.matchState.Players {
		if playerState.Kills >= constants.ScoreLimit {
			return true
		}
	}
	return false
}

func (gm *MatchManager) startLive(now time.Time) {
	log.Info("Match %s going live", gm.matchState.MatchID)
	gm.matchState.Phase = types.MatchPhaseLive
	gm.matchState.StartedAt = now
	gm.matchState.PhaseEndsAt = now.Add(constants.MatchDuration)

	for clientID, playerState := range gm.matchState.Players {
		playerState.ResetScore()
		gm.allocator.Release(clientID)
		gm.placePlayer(playerState, gm.findSpawn(gm.spawnTeam(playerState)))
	}

	gm.broadcastPhase(nil)
}

func (gm *MatchManager) startPodium(now time.Time) {
	log.Info("Match %s finished", gm.matchState.MatchID)
	gm.matchState.Phase = types.MatchPhasePodium
	gm.matchState.PhaseEndsAt = now.Add(constants.PodiumDuration)

	standings := gm.scoreboard()
	gm.broadcastPhase(standings)

	gm.saveMatchResultChan <- workers.SaveMatchResultRequest{
		Result: gm.matchResult(now, standings),
	}
}

func (gm *MatchManager) startWarmup(now time.Time) {
	gm.matchState.MatchID = uuid.New().String()
	gm.matchState.Phase = types.MatchPhaseWarmup
	gm.matchState.StartedAt = time.Time{}
	gm.matchState.PhaseEndsAt = now.Add(constants.WarmupDuration)
	log.Info("Match %s starting warmup on arena %s", gm.matchState.MatchID, gm.arena.Name)

	gm.allocator.Configure(gm.arena.SpawnLocations())
	for clientID, playerState := range gm.matchState.Players {
		playerState.ResetScore()
		gm.allocator.Release(clientID)
		gm.placePlayer(playerState, gm.findSpawn(gm.spawnTeam(playerState)))
	}

	gm.broadcastPhase(nil)
}

func (gm *MatchManager) broadcastPhase(standings []messages.ScoreEntry) {
	gm.broadcastMessageChan <- workers.BroadcastMessage{
		Type: messages.MessageTypeServerMatchPhase,
		Message: &messages.ServerMatchPhase{
			Phase:     gm.matchState.Phase.String(),
			EndsAt:    gm.matchState.PhaseEndsAt.UnixMilli(),
			Standings: standings,
		},
	}
}

func (gm *MatchManager) matchResult(now time.Time, standings []messages.ScoreEntry) *models.MatchResult {
	result := &models.MatchResult{
		MatchID:   gm.matchState.MatchID,
		Arena:     gm.arena.Name,
		Mode:      string(gm.mode),
		StartedAt: gm.matchState.StartedAt.UnixMilli(),
		EndedAt:   now.UnixMilli(),
	}
	for _, entry := range standings {
		playerState, ok := gm.matchState.Players[entry.ClientID]
		if !ok {
			continue
		}
		result.Players = append(result.Players, models.MatchPlayerResult{
			UserID:     playerState.UserID,
			Handle:     entry.Handle,
			Team:       entry.Team,
			Kills:      entry.Kills,
			Deaths:     entry.Deaths,
			BestStreak: playerState.BestStreak,
		})
	}
	return result
}

// scoreboard returns the standings sorted by kills, with deaths as the
// tiebreaker.
func (gm *MatchManager) scoreboard() []messages.ScoreEntry {
	entries := make([]messages.ScoreEntry, 0, len(gm.matchState.Players))
	for clientID, playerState := range gm.matchState.Players {
		entries = append(entries, messages.ScoreEntry{
			ClientID: clientID,
			Handle:   playerState.Handle,
			Team:     playerState.Team.String(),
			Kills:    playerState.Kills,
			Deaths:   playerState.Deaths,
			Streak:   playerState.Streak,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kills != entries[j].Kills {
			return entries[i].Kills > entries[j].Kills
		}
		if entries[i].Deaths != entries[j].Deaths {
			return entries[i].Deaths < entries[j].Deaths
		}
		return entries[i].Handle < entries[j].Handle
	})
	return entries
}

// broadcastMatchUpdate sends the match state to connected clients.
func (gm *MatchManager) broadcastMatchUpdate() {
	players := make(map[uint32]*messages.PlayerSnapshot, len(gm.matchState.Players))
	for clientID, playerState := range gm.matchState.Players {
		players[clientID] = snapshotPlayer(playerState)
	}

	gm.broadcastMessageChan <- workers.BroadcastMessage{
		Type: messages.MessageTypeServerMatchUpdate,
		Message: &messages.ServerMatchUpdate{
			Timestamp:  gm.matchState.Timestamp,
			MatchID:    gm.matchState.MatchID,
			Phase:      gm.matchState.Phase.String(),
			Players:    players,
			Scoreboard: gm.scoreboard(),
		},
	}
}

func snapshotPlayer(playerState *types.PlayerState) *messages.PlayerSnapshot {
	return &messages.PlayerSnapshot{
		Handle:    playerState.Handle,
		Team:      playerState.Team.String(),
		Position:  playerState.Position,
		Yaw:       playerState.Yaw,
		Hitpoints: playerState.Hitpoints,
		Alive:     playerState.Alive(),
	}
}
