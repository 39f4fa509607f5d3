package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kmathys/skirmish/pkg/game/constants"
	"github.com/kmathys/skirmish/pkg/game/types"
	"github.com/kmathys/skirmish/pkg/geom"
	"github.com/kmathys/skirmish/pkg/levels"
	"github.com/kmathys/skirmish/pkg/messages"
	"github.com/kmathys/skirmish/pkg/occupancy"
	"github.com/kmathys/skirmish/pkg/spawn"
	"github.com/kmathys/skirmish/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue is an in-process queue.Queue for driving the match loop.
type fakeQueue struct {
	items []interface{}
}

func (q *fakeQueue) Enqueue(item interface{}) error {
	q.items = append(q.items, item)
	return nil
}

func (q *fakeQueue) ReadAllMessages() ([]interface{}, error) {
	items := q.items
	q.items = nil
	return items, nil
}

func (q *fakeQueue) Size() int { return len(q.items) }

func (q *fakeQueue) Clear() { q.items = nil }

func testArena() *levels.Arena {
	return &levels.Arena{
		Name:   "test",
		Width:  32,
		Height: 32,
		Spawns: []levels.SpawnPoint{
			{Name: "nw", X: 4, Y: 4},
			{Name: "ne", X: 28, Y: 4},
			{Name: "sw", X: 4, Y: 28},
			{Name: "se", X: 28, Y: 28},
		},
	}
}

type testMatch struct {
	manager       *MatchManager
	eventQueue    *fakeQueue
	messageQueue  *fakeQueue
	broadcastChan chan workers.BroadcastMessage
	saveChan      chan workers.SaveMatchResultRequest
}

func newTestMatch(t *testing.T, mode Mode) *testMatch {
	t.Helper()
	eventQueue := &fakeQueue{}
	messageQueue := &fakeQueue{}
	broadcastChan := make(chan workers.BroadcastMessage, 1024)
	saveChan := make(chan workers.SaveMatchResultRequest, 8)

	manager := NewMatchManager(NewMatchManagerOptions{
		ClientMessageQueue:   messageQueue,
		ConnectionEventQueue: eventQueue,
		Arena:                testArena(),
		Mode:                 mode,
		Authoritative:        true,
		SaveMatchResultChan:  saveChan,
		BroadcastMessageChan: broadcastChan,
		TickInterval:         constants.MatchTickInterval,
	})

	return &testMatch{
		manager:       manager,
		eventQueue:    eventQueue,
		messageQueue:  messageQueue,
		broadcastChan: broadcastChan,
		saveChan:      saveChan,
	}
}

// drainBroadcasts empties the broadcast channel and returns the types seen.
func (tm *testMatch) drainBroadcasts() []messages.MessageType {
	var seen []messages.MessageType
	for {
		select {
		case msg := <-tm.broadcastChan:
			seen = append(seen, msg.Type)
		default:
			return seen
		}
	}
}

func (tm *testMatch) connect(clientID uint32, handle string) *types.PlayerState {
	tm.eventQueue.Enqueue(&types.ConnectPlayerEvent{
		ClientID: clientID,
		UserID:   "user-" + handle,
		Handle:   handle,
	})
	tm.manager.processConnectionEvents()
	return tm.manager.matchState.Players[clientID]
}

func TestMatchManager_PlayerConnectDisconnect(t *testing.T) {
	tm := newTestMatch(t, ModeFFA)

	playerState := tm.connect(1, "alice")
	require.NotNil(t, playerState)
	assert.True(t, playerState.Alive())
	assert.Equal(t, constants.PlayerHitpoints, playerState.Hitpoints)
	assert.NotNil(t, playerState.Object)
	assert.Contains(t, tm.drainBroadcasts(), messages.MessageTypeServerPlayerConnect)

	tm.eventQueue.Enqueue(&types.DisconnectPlayerEvent{ClientID: 1})
	tm.manager.processConnectionEvents()
	assert.NotContains(t, tm.manager.matchState.Players, uint32(1))
	assert.Contains(t, tm.drainBroadcasts(), messages.MessageTypeServerPlayerDisconnect)
}

func TestMatchManager_TeamAssignmentBalances(t *testing.T) {
	tm := newTestMatch(t, ModeTeam)

	teams := make(map[spawn.Team]int)
	for clientID := uint32(1); clientID <= 4; clientID++ {
		playerState := tm.connect(clientID, "player")
		teams[playerState.Team]++
	}
	assert.Equal(t, 2, teams[spawn.TeamAlpha])
	assert.Equal(t, 2, teams[spawn.TeamBravo])
}

func TestMatchManager_ClampMovement(t *testing.T) {
	tm := newTestMatch(t, ModeFFA)

	from := geom.Vector{X: 10, Y: 10}
	maxStep := constants.PlayerSpeed * constants.MatchTickInterval.Seconds()

	tests := []struct {
		name string
		to   geom.Vector
		want geom.Vector
	}{
		{
			name: "within reach",
			to:   geom.Vector{X: 10.1, Y: 10},
			want: geom.Vector{X: 10.1, Y: 10},
		},
		{
			name: "speed clamped",
			to:   geom.Vector{X: 20, Y: 10},
			want: geom.Vector{X: 10 + maxStep, Y: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tm.manager.clampMovement(from, tt.to)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}

	t.Run("bounds clamped", func(t *testing.T) {
		got := tm.manager.clampMovement(geom.Vector{X: 0.5, Y: 0.5}, geom.Vector{X: -1, Y: 0.5})
		assert.Equal(t, constants.PlayerSize/2, got.X)
	})
}

// killPlayer swings at the victim until it dies, advancing past the
// attack cooldown between swings.
func killPlayer(tm *testMatch, attackerID, victimID uint32, start time.Time) time.Time {
	attacker := tm.manager.matchState.Players[attackerID]
	victim := tm.manager.matchState.Players[victimID]
	now := start
	for victim.Alive() {
		tm.manager.handleAttack(attackerID, attacker, now)
		now = now.Add(constants.AttackCooldown + time.Millisecond)
	}
	return now
}

func TestMatchManager_AttackAndKill(t *testing.T) {
	tm := newTestMatch(t, ModeFFA)

	attacker := tm.connect(1, "alice")
	victim := tm.connect(2, "bob")

	// face the attacker at the victim from within melee reach
	attacker.Position = geom.Vector{X: 10, Y: 10}
	attacker.Yaw = 0
	victim.Position = geom.Vector{X: 11, Y: 10}
	moveForTest(tm, attacker, victim)
	tm.drainBroadcasts()

	now := time.Unix(1000, 0)
	tm.manager.handleAttack(1, attacker, now)
	assert.Equal(t, constants.PlayerHitpoints-constants.AttackDamage, victim.Hitpoints)

	// a second swing inside the cooldown window does nothing
	tm.manager.handleAttack(1, attacker, now.Add(constants.AttackCooldown/2))
	assert.Equal(t, constants.PlayerHitpoints-constants.AttackDamage, victim.Hitpoints)

	killPlayer(tm, 1, 2, now.Add(constants.AttackCooldown+time.Millisecond))

	assert.False(t, victim.Alive())
	assert.False(t, victim.RespawnAt.IsZero())
	assert.Equal(t, 1, attacker.Kills)
	assert.Equal(t, 1, attacker.Streak)
	assert.Equal(t, 1, victim.Deaths)

	_, reserved := tm.manager.allocator.GetReservation(2)
	assert.True(t, reserved, "a respawn location should be reserved at death")

	seen := tm.drainBroadcasts()
	assert.Contains(t, seen, messages.MessageTypeServerPlayerHit)
	assert.Contains(t, seen, messages.MessageTypeServerPlayerKill)
}

// moveForTest syncs each player's collision object to its state position.
func moveForTest(tm *testMatch, players ...*types.PlayerState) {
	for _, playerState := range players {
		occupancy.MoveObject(playerState.Object, playerState.Position)
	}
}

func TestMatchManager_TeamModeNoFriendlyFire(t *testing.T) {
	tm := newTestMatch(t, ModeTeam)

	first := tm.connect(1, "alice")
	second := tm.connect(2, "bob")
	require.NotEqual(t, first.Team, second.Team)

	// force both onto the same team
	second.Team = first.Team

	first.Position = geom.Vector{X: 10, Y: 10}
	second.Position = geom.Vector{X: 11, Y: 10}
	moveForTest(tm, first, second)

	tm.manager.handleAttack(1, first, time.Unix(1000, 0))
	assert.Equal(t, constants.PlayerHitpoints, second.Hitpoints, "teammates must not take damage")
}

func TestMatchManager_RespawnConsumesReservation(t *testing.T) {
	tm := newTestMatch(t, ModeFFA)

	attacker := tm.connect(1, "alice")
	victim := tm.connect(2, "bob")
	attacker.Position = geom.Vector{X: 10, Y: 10}
	victim.Position = geom.Vector{X: 11, Y: 10}
	moveForTest(tm, attacker, victim)

	killedAt := killPlayer(tm, 1, 2, time.Unix(1000, 0))

	reservedLocation, ok := tm.manager.allocator.GetReservation(2)
	require.True(t, ok)

	// before the delay elapses nothing happens
	tm.manager.processRespawns(victim.RespawnAt.Add(-time.Millisecond))
	assert.False(t, victim.Alive())

	tm.manager.processRespawns(killedAt.Add(constants.RespawnDelay))
	assert.True(t, victim.Alive())
	assert.Equal(t, constants.PlayerHitpoints, victim.Hitpoints)
	assert.Equal(t, reservedLocation.Position, victim.Position)

	_, stillReserved := tm.manager.allocator.GetReservation(2)
	assert.False(t, stillReserved, "the reservation must be released once consumed")

	assert.Contains(t, tm.drainBroadcasts(), messages.MessageTypeServerPlayerRespawn)
}

func TestMatchManager_PhaseTransitions(t *testing.T) {
	tm := newTestMatch(t, ModeFFA)
	playerState := tm.connect(1, "alice")
	tm.connect(2, "bob")

	now := time.Unix(1000, 0)
	tm.manager.matchState.PhaseEndsAt = now.Add(-time.Second)
	firstMatchID := tm.manager.matchState.MatchID

	// warmup scores are thrown away when the match goes live
	playerState.Kills = 3
	tm.manager.updatePhase(now)
	assert.Equal(t, types.MatchPhaseLive, tm.manager.matchState.Phase)
	assert.Equal(t, 0, playerState.Kills)

	// reaching the score limit ends the live phase early
	playerState.Kills = constants.ScoreLimit
	tm.manager.updatePhase(now)
	assert.Equal(t, types.MatchPhasePodium, tm.manager.matchState.Phase)

	select {
	case saveRequest := <-tm.saveChan:
		require.NotNil(t, saveRequest.Result)
		assert.Equal(t, firstMatchID, saveRequest.Result.MatchID)
		assert.Len(t, saveRequest.Result.Players, 2)
		assert.Equal(t, constants.ScoreLimit, saveRequest.Result.Players[0].Kills)
	default:
		t.Fatal("finished match was not sent to the save worker")
	}

	// the podium rolls over into a fresh match
	tm.manager.matchState.PhaseEndsAt = now.Add(-time.Second)
	tm.manager.updatePhase(now)
	assert.Equal(t, types.MatchPhaseWarmup, tm.manager.matchState.Phase)
	assert.NotEqual(t, firstMatchID, tm.manager.matchState.MatchID)
	assert.Equal(t, 0, playerState.Kills)
}

func TestMatchManager_DeadPlayersIgnoreUpdates(t *testing.T) {
	tm := newTestMatch(t, ModeFFA)

	attacker := tm.connect(1, "alice")
	victim := tm.connect(2, "bob")
	attacker.Position = geom.Vector{X: 10, Y: 10}
	victim.Position = geom.Vector{X: 11, Y: 10}
	moveForTest(tm, attacker, victim)

	killPlayer(tm, 1, 2, time.Unix(1000, 0))
	deadPosition := victim.Position

	payload := mustMarshal(t, &messages.ClientPlayerUpdate{
		Timestamp: victim.LastProcessedTimestamp + 1,
		Position:  geom.Vector{X: 20, Y: 20},
	})
	tm.messageQueue.Enqueue(&messages.Message{
		ClientID: 2,
		Type:     messages.MessageTypeClientPlayerUpdate,
		Payload:  payload,
	})
	tm.manager.processClientMessages(time.Unix(1010, 0))

	assert.Equal(t, deadPosition, victim.Position, "a dead player must not move")
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
