package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kmathys/skirmish/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database file and applies
// pending migrations.
func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := runMigrations(ctx, db, "sqlite3"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	q := `
	INSERT INTO matches (match_id, arena, mode, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?);
	`
	if _, err := tx.ExecContext(ctx, q, result.MatchID, result.Arena, result.Mode, result.StartedAt, result.EndedAt); err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	for _, player := range result.Players {
		q := `
		INSERT INTO match_players (match_id, user_id, handle, team, kills, deaths, best_streak)
		VALUES (?, ?, ?, ?, ?, ?, ?);
		`
		if _, err := tx.ExecContext(ctx, q, result.MatchID, player.UserID, player.Handle, player.Team, player.Kills, player.Deaths, player.BestStreak); err != nil {
			return fmt.Errorf("failed to insert match player: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) UpsertPlayerStats(ctx context.Context, stats *models.PlayerStats) error {
	q := `
	INSERT INTO player_stats (user_id, handle, matches, kills, deaths, best_streak, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		handle = EXCLUDED.handle,
		matches = player_stats.matches + EXCLUDED.matches,
		kills = player_stats.kills + EXCLUDED.kills,
		deaths = player_stats.deaths + EXCLUDED.deaths,
		best_streak = MAX(player_stats.best_streak, EXCLUDED.best_streak),
		updated_at = EXCLUDED.updated_at;
	`
	if _, err := r.db.ExecContext(ctx, q, stats.UserID, stats.Handle, stats.Matches, stats.Kills, stats.Deaths, stats.BestStreak, stats.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert player stats: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	q := `
	SELECT handle, matches, kills, deaths, best_streak, updated_at
	FROM player_stats WHERE user_id = $1;
	`
	stats := &models.PlayerStats{UserID: userID}
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&stats.Handle, &stats.Matches, &stats.Kills, &stats.Deaths, &stats.BestStreak, &stats.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player stats: %v", err)
	}

	return stats, nil
}

func (r *SQLiteRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	q := `
	SELECT user_id, handle, matches, kills, deaths, best_streak
	FROM player_stats ORDER BY kills DESC, deaths ASC LIMIT $1;
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %v", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, limit)
	for rows.Next() {
		entry := models.LeaderboardEntry{}
		if err := rows.Scan(&entry.UserID, &entry.Handle, &entry.Matches, &entry.Kills, &entry.Deaths, &entry.BestStreak); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %v", err)
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *SQLiteRepository) GetMatch(ctx context.Context, matchID string) (*models.MatchResult, error) {
	q := `
	SELECT arena, mode, started_at, ended_at FROM matches WHERE match_id = $1;
	`
	result := &models.MatchResult{MatchID: matchID}
	err := r.db.QueryRowContext(ctx, q, matchID).Scan(&result.Arena, &result.Mode, &result.StartedAt, &result.EndedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan match: %v", err)
	}

	q = `
	SELECT user_id, handle, team, kills, deaths, best_streak
	FROM match_players WHERE match_id = $1 ORDER BY kills DESC, deaths ASC;
	`
	rows, err := r.db.QueryContext(ctx, q, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match players: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		player := models.MatchPlayerResult{}
		if err := rows.Scan(&player.UserID, &player.Handle, &player.Team, &player.Kills, &player.Deaths, &player.BestStreak); err != nil {
			return nil, fmt.Errorf("failed to scan match player: %v", err)
		}
		result.Players = append(result.Players, player)
	}

	return result, nil
}
