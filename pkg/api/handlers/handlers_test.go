package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/kmathys/skirmish/pkg/api/middleware"
	authproviders "github.com/kmathys/skirmish/pkg/auth/providers"
	"github.com/kmathys/skirmish/pkg/repositories"
	"github.com/kmathys/skirmish/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	leaderboard      []models.LeaderboardEntry
	leaderboardLimit int
	matches          map[string]*models.MatchResult
	stats            map[string]*models.PlayerStats
}

func (f *fakeRepository) Close(ctx context.Context) error { return nil }

func (f *fakeRepository) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	return nil
}

func (f *fakeRepository) UpsertPlayerStats(ctx context.Context, stats *models.PlayerStats) error {
	return nil
}

func (f *fakeRepository) LoadPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	stats, ok := f.stats[userID]
	if !ok {
		return nil, &repositories.ErrNotFound{}
	}
	return stats, nil
}

func (f *fakeRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	f.leaderboardLimit = limit
	if len(f.leaderboard) > limit {
		return f.leaderboard[:limit], nil
	}
	return f.leaderboard, nil
}

func (f *fakeRepository) GetMatch(ctx context.Context, matchID string) (*models.MatchResult, error) {
	result, ok := f.matches[matchID]
	if !ok {
		return nil, &repositories.ErrNotFound{}
	}
	return result, nil
}

func TestHandleLeaderboard(t *testing.T) {
	repo := &fakeRepository{
		leaderboard: []models.LeaderboardEntry{
			{Rank: 1, Handle: "ace", Kills: 42},
			{Rank: 2, Handle: "bravo", Kills: 17},
		},
	}

	t.Run("default limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
		rec := httptest.NewRecorder()
		HandleLeaderboard(repo)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, DefaultLeaderboardLimit, repo.leaderboardLimit)

		var entries []models.LeaderboardEntry
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "ace", entries[0].Handle)
	})

	t.Run("limit is capped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=5000", nil)
		rec := httptest.NewRecorder()
		HandleLeaderboard(repo)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, MaxLeaderboardLimit, repo.leaderboardLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=banana", nil)
		rec := httptest.NewRecorder()
		HandleLeaderboard(repo)(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetMatch(t *testing.T) {
	repo := &fakeRepository{
		matches: map[string]*models.MatchResult{
			"match-1": {MatchID: "match-1", Arena: "forge", Mode: "ffa"},
		},
	}

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/matches/match-1", nil)
		req = mux.SetURLVars(req, map[string]string{"matchID": "match-1"})
		rec := httptest.NewRecorder()
		HandleGetMatch(repo)(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result models.MatchResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.Equal(t, "forge", result.Arena)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/matches/nope", nil)
		req = mux.SetURLVars(req, map[string]string{"matchID": "nope"})
		rec := httptest.NewRecorder()
		HandleGetMatch(repo)(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleOwnStats(t *testing.T) {
	repo := &fakeRepository{
		stats: map[string]*models.PlayerStats{
			"user-1": {UserID: "user-1", Handle: "ace", Kills: 42},
		},
	}

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, &authproviders.TokenClaims{UID: "user-1"})
		rec := httptest.NewRecorder()
		HandleOwnStats(repo)(rec, req.WithContext(ctx))

		require.Equal(t, http.StatusOK, rec.Code)

		var stats models.PlayerStats
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
		assert.Equal(t, 42, stats.Kills)
	})

	t.Run("no stats yet", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, &authproviders.TokenClaims{UID: "user-2"})
		rec := httptest.NewRecorder()
		HandleOwnStats(repo)(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		rec := httptest.NewRecorder()
		HandleOwnStats(repo)(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
