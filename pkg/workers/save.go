package workers

import (
	"context"

	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/repositories"
	"github.com/kmathys/skirmish/pkg/repositories/models"
)

type SaveMatchResultRequest struct {
	Result *models.MatchResult
}

type SaveMatchResultWorker struct {
	repository          repositories.Repository
	saveMatchResultChan <-chan SaveMatchResultRequest
}

type NewSaveMatchResultWorkerOptions struct {
	Repository          repositories.Repository
	SaveMatchResultChan <-chan SaveMatchResultRequest
}

// NewSaveMatchResultWorker creates a new SaveMatchResultWorker.
// The worker persists finished matches and folds each player's
// result into their career stats.
func NewSaveMatchResultWorker(opts NewSaveMatchResultWorkerOptions) *SaveMatchResultWorker {
	return &SaveMatchResultWorker{
		repository:          opts.Repository,
		saveMatchResultChan: opts.SaveMatchResultChan,
	}
}

func (w *SaveMatchResultWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case saveRequest := <-w.saveMatchResultChan:
			w.saveMatchResult(ctx, saveRequest)
		}
	}
}

func (w *SaveMatchResultWorker) saveMatchResult(ctx context.Context, saveRequest SaveMatchResultRequest) {
	result := saveRequest.Result
	if err := w.repository.SaveMatchResult(ctx, result); err != nil {
		log.Error("Failed to save match %s: %v", result.MatchID, err)
		return
	}

	for _, player := range result.Players {
		if player.UserID == "" {
			continue
		}
		stats := &models.PlayerStats{
			UserID:     player.UserID,
			Handle:     player.Handle,
			Matches:    1,
			Kills:      player.Kills,
			Deaths:     player.Deaths,
			BestStreak: player.BestStreak,
			UpdatedAt:  result.EndedAt,
		}
		if err := w.repository.UpsertPlayerStats(ctx, stats); err != nil {
			log.Error("Failed to update stats for user %s: %v", player.UserID, err)
		}
	}
}
