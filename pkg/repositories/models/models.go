package models

type MatchResult struct {
	MatchID   string              `json:"match_id"`
	Arena     string              `json:"arena"`
	Mode      string              `json:"mode"`
	StartedAt int64               `json:"started_at"`
	EndedAt   int64               `json:"ended_at"`
	Players   []MatchPlayerResult `json:"players"`
}

type MatchPlayerResult struct {
	UserID     string `json:"user_id,omitempty"`
	Handle     string `json:"handle"`
	Team       string `json:"team"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	BestStreak int    `json:"best_streak"`
}

// PlayerStats is a player's career aggregate. When passed to
// UpsertPlayerStats the counters are deltas to add to the stored row.
type PlayerStats struct {
	UserID     string `json:"user_id"`
	Handle     string `json:"handle"`
	Matches    int    `json:"matches"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	BestStreak int    `json:"best_streak"`
	UpdatedAt  int64  `json:"updated_at"`
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id,omitempty"`
	Handle     string `json:"handle"`
	Matches    int    `json:"matches"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	BestStreak int    `json:"best_streak"`
}
