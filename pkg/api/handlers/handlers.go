package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kmathys/skirmish/pkg/api/middleware"
	authproviders "github.com/kmathys/skirmish/pkg/auth/providers"
	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/repositories"
)

const (
	// DefaultLeaderboardLimit is used when no limit query parameter is given
	DefaultLeaderboardLimit = 20
	// MaxLeaderboardLimit caps the limit query parameter
	MaxLeaderboardLimit = 100
)

func HandleLeaderboard(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultLeaderboardLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}
		if limit > MaxLeaderboardLimit {
			limit = MaxLeaderboardLimit
		}

		entries, err := repository.Leaderboard(r.Context(), limit)
		if err != nil {
			log.Error("failed to load leaderboard: %v", err)
			http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
			return
		}

		writeJSON(w, entries)
	}
}

func HandleGetMatch(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := mux.Vars(r)["matchID"]

		result, err := repository.GetMatch(r.Context(), matchID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Match not found", http.StatusNotFound)
				return
			}
			log.Error("failed to load match %s: %v", matchID, err)
			http.Error(w, "Failed to load match", http.StatusInternalServerError)
			return
		}

		writeJSON(w, result)
	}
}

func HandleOwnStats(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*authproviders.TokenClaims)
		if !ok {
			log.Error("failed to get token claims from context")
			http.Error(w, "Failed to get token claims from context", http.StatusInternalServerError)
			return
		}

		stats, err := repository.LoadPlayerStats(r.Context(), claims.UID)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "No stats recorded yet", http.StatusNotFound)
				return
			}
			log.Error("failed to load stats for user %s: %v", claims.UID, err)
			http.Error(w, "Failed to load stats", http.StatusInternalServerError)
			return
		}

		writeJSON(w, stats)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
