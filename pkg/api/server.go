package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kmathys/skirmish/pkg/api/handlers"
	"github.com/kmathys/skirmish/pkg/api/middleware"
	authproviders "github.com/kmathys/skirmish/pkg/auth/providers"
	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/repositories"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	Repository   repositories.Repository
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	authMiddleware := middleware.NewAuthMiddleware(opts.AuthProvider)

	router := mux.NewRouter()
	router.HandleFunc("/leaderboard", handlers.HandleLeaderboard(opts.Repository)).Methods(http.MethodGet)
	router.HandleFunc("/matches/{matchID}", handlers.HandleGetMatch(opts.Repository)).Methods(http.MethodGet)
	router.Handle("/stats", authMiddleware(handlers.HandleOwnStats(opts.Repository))).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
