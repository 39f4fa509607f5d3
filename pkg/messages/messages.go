package messages

import (
	"github.com/kmathys/skirmish/pkg/geom"
)

const (
	// MessageBufferSize represents the maximum size of a TCP message
	MessageBufferSize = 4096
	// UDPMessageBufferSize represents the maximum size of a UDP message
	UDPMessageBufferSize = 8192
)

type MessageType uint8

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeClientLogin
	MessageTypeClientSyncTime
	MessageTypeClientPing
	MessageTypeClientPlayerUpdate
	MessageTypeServerLoginSuccess
	MessageTypeServerLoginFailure
	MessageTypeServerSyncTime
	MessageTypeServerPong
	MessageTypeServerMatchUpdate
	MessageTypeServerPlayerConnect
	MessageTypeServerPlayerDisconnect
	MessageTypeServerPlayerHit
	MessageTypeServerPlayerKill
	MessageTypeServerPlayerRespawn
	MessageTypeServerMatchPhase
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeClientLogin:
		return "client_login"
	case MessageTypeClientSyncTime:
		return "client_sync_time"
	case MessageTypeClientPing:
		return "client_ping"
	case MessageTypeClientPlayerUpdate:
		return "client_player_update"
	case MessageTypeServerLoginSuccess:
		return "server_login_success"
	case MessageTypeServerLoginFailure:
		return "server_login_failure"
	case MessageTypeServerSyncTime:
		return "server_sync_time"
	case MessageTypeServerPong:
		return "server_pong"
	case MessageTypeServerMatchUpdate:
		return "server_match_update"
	case MessageTypeServerPlayerConnect:
		return "server_player_connect"
	case MessageTypeServerPlayerDisconnect:
		return "server_player_disconnect"
	case MessageTypeServerPlayerHit:
		return "server_player_hit"
	case MessageTypeServerPlayerKill:
		return "server_player_kill"
	case MessageTypeServerPlayerRespawn:
		return "server_player_respawn"
	case MessageTypeServerMatchPhase:
		return "server_match_phase"
	default:
		return "unknown"
	}
}

// Message is the wire envelope for all client/server traffic.
// ClientID 0 means the message is from the server.
type Message struct {
	ClientID uint32      `json:"clientID"`
	Type     MessageType `json:"type"`
	Payload  []byte      `json:"payload"`
}

type ClientLogin struct {
	Token  string `json:"token"`
	Handle string `json:"handle"`
}

type ClientSyncTime struct {
	Timestamp int64 `json:"timestamp"`
}

type ClientPlayerUpdate struct {
	Timestamp int64       `json:"timestamp"`
	Position  geom.Vector `json:"position"`
	Yaw       float64     `json:"yaw"`
	Firing    bool        `json:"firing"`
}

type ServerLoginSuccess struct {
	ClientID uint32 `json:"clientID"`
}

type ServerLoginFailure struct {
	Reason string `json:"reason"`
}

type ServerSyncTime struct {
	Timestamp       int64 `json:"timestamp"`
	ClientTimestamp int64 `json:"clientTimestamp"`
}

// PlayerSnapshot is the replicated view of one player's state.
type PlayerSnapshot struct {
	Handle    string      `json:"handle"`
	Team      string      `json:"team"`
	Position  geom.Vector `json:"position"`
	Yaw       float64     `json:"yaw"`
	Hitpoints int16       `json:"hitpoints"`
	Alive     bool        `json:"alive"`
}

// ScoreEntry is one scoreboard row.
type ScoreEntry struct {
	ClientID uint32 `json:"clientID"`
	Handle   string `json:"handle"`
	Team     string `json:"team"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
	Streak   int    `json:"streak"`
}

type ServerMatchUpdate struct {
	Timestamp  int64                      `json:"timestamp"`
	MatchID    string                     `json:"matchID"`
	Phase      string                     `json:"phase"`
	Players    map[uint32]*PlayerSnapshot `json:"players"`
	Scoreboard []ScoreEntry               `json:"scoreboard"`
}

type ServerPlayerConnect struct {
	ClientID uint32          `json:"clientID"`
	Player   *PlayerSnapshot `json:"player"`
}

type ServerPlayerDisconnect struct {
	ClientID uint32 `json:"clientID"`
}

type ServerPlayerHit struct {
	VictimID   uint32 `json:"victimID"`
	AttackerID uint32 `json:"attackerID"`
	Damage     int16  `json:"damage"`
	Hitpoints  int16  `json:"hitpoints"`
}

type ServerPlayerKill struct {
	VictimID uint32 `json:"victimID"`
	KillerID uint32 `json:"killerID"`
}

type ServerPlayerRespawn struct {
	ClientID uint32      `json:"clientID"`
	Position geom.Vector `json:"position"`
	Yaw      float64     `json:"yaw"`
}

type ServerMatchPhase struct {
	Phase     string       `json:"phase"`
	EndsAt    int64        `json:"endsAt"`
	Standings []ScoreEntry `json:"standings,omitempty"`
}
