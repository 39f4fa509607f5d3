package repositories

import (
	"context"

	"github.com/kmathys/skirmish/pkg/repositories/models"
)

type Repository interface {
	Close(ctx context.Context) error
	SaveMatchResult(ctx context.Context, result *models.MatchResult) error
	UpsertPlayerStats(ctx context.Context, stats *models.PlayerStats) error
	LoadPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetMatch(ctx context.Context, matchID string) (*models.MatchResult, error)
}
