package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kmathys/skirmish/pkg/api"
	authproviders "github.com/kmathys/skirmish/pkg/auth/providers"
	"github.com/kmathys/skirmish/pkg/game"
	"github.com/kmathys/skirmish/pkg/game/constants"
	"github.com/kmathys/skirmish/pkg/levels"
	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/network"
	"github.com/kmathys/skirmish/pkg/queue"
	"github.com/kmathys/skirmish/pkg/repositories"
	"github.com/kmathys/skirmish/pkg/workers"
	"golang.org/x/sync/errgroup"
)

func main() {
	tcpPort := flag.Int("tcp-port", 8888, "TCP port to listen on")
	udpPort := flag.Int("udp-port", 8889, "UDP port to listen on")
	wsPort := flag.Int("ws-port", 8890, "WebSocket port to listen on")
	apiPort := flag.Int("api-port", 9090, "API port to listen on")
	arenaPath := flag.String("arena", "", "Path to an arena definition file (empty for the built-in arena)")
	mode := flag.String("mode", "ffa", "Match mode (ffa or team)")
	certFile := flag.String("cert-file", "", "Path to a TLS certificate for the WebSocket and API servers")
	keyFile := flag.String("key-file", "", "Path to a TLS key for the WebSocket and API servers")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	matchMode, err := game.ParseMode(*mode)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse match mode: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arena := levels.Default()
	if *arenaPath != "" {
		arena, err = levels.Load(*arenaPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to load arena: %v", err))
		}
	}
	log.Info("Arena %s (%dx%d) with %d spawn points", arena.Name, arena.Width, arena.Height, len(arena.Spawns))

	repository, err := newRepository(ctx)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(ctx)

	authProvider, err := newAuthProvider(ctx)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	var wsTLS *network.TLSConfig
	var apiTLS *api.TLSConfig
	if *certFile != "" && *keyFile != "" {
		wsTLS = &network.TLSConfig{CertFile: *certFile, KeyFile: *keyFile}
		apiTLS = &api.TLSConfig{CertFile: *certFile, KeyFile: *keyFile}
	}

	clientManager := network.NewClientManager()
	clientMessageQueue := queue.NewInMemoryQueue(10000)
	connectionEventQueue := queue.NewInMemoryQueue(1000)
	saveMatchResultChan := make(chan workers.SaveMatchResultRequest, 100)
	broadcastMessageChan := make(chan workers.BroadcastMessage, 1000)

	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		AuthProvider:  authProvider,
		ClientManager: clientManager,
		MessageQueue:  clientMessageQueue,
		TCPPort:       *tcpPort,
		UDPPort:       *udpPort,
		WSPort:        *wsPort,
		WSServerTLS:   wsTLS,
	})

	connectionEventWorker := workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ClientEventChan:      clientManager.GetClientEventChan(),
		Repository:           repository,
		ConnectionEventQueue: connectionEventQueue,
	})

	saveMatchResultWorker := workers.NewSaveMatchResultWorker(workers.NewSaveMatchResultWorkerOptions{
		Repository:          repository,
		SaveMatchResultChan: saveMatchResultChan,
	})

	broadcastMessageWorker := workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		NetworkManager:       networkManager,
		BroadcastMessageChan: broadcastMessageChan,
	})

	matchManager := game.NewMatchManager(game.NewMatchManagerOptions{
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
		Arena:                arena,
		Mode:                 matchMode,
		Authoritative:        true,
		SaveMatchResultChan:  saveMatchResultChan,
		BroadcastMessageChan: broadcastMessageChan,
		TickInterval:         constants.MatchTickInterval,
	})

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         *apiPort,
		TLS:          apiTLS,
		AuthProvider: authProvider,
		Repository:   repository,
	})

	g, gctx := errgroup.WithContext(ctx)

	networkManager.Start(gctx)
	g.Go(func() error {
		connectionEventWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		saveMatchResultWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		broadcastMessageWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("Starting %s match on %s", matchMode, arena.Name)
		return matchManager.Start(gctx)
	})
	g.Go(func() error {
		apiServer.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error: %v", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}

// newRepository selects a repository from the SKIRMISH_DATABASE_URL
// environment variable. Postgres URLs get the postgres repository,
// anything else is treated as a SQLite path. Unset means an on-disk
// SQLite database in the working directory.
func newRepository(ctx context.Context) (repositories.Repository, error) {
	connStr := os.Getenv("SKIRMISH_DATABASE_URL")
	if connStr == "" {
		log.Warn("SKIRMISH_DATABASE_URL is not set, using skirmish.db")
		return repositories.NewSQLiteRepository(ctx, "skirmish.db")
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		return repositories.NewPostgresRepository(ctx, connStr)
	}
	return repositories.NewSQLiteRepository(ctx, connStr)
}

// newAuthProvider selects an auth provider. Firebase is used when a
// project is configured, otherwise logins are accepted unverified.
func newAuthProvider(ctx context.Context) (authproviders.AuthProvider, error) {
	projectID := os.Getenv("SKIRMISH_FIREBASE_PROJECT_ID")
	if projectID == "" {
		log.Warn("SKIRMISH_FIREBASE_PROJECT_ID is not set, using the insecure auth provider")
		return authproviders.NewInsecureAuthProvider(), nil
	}
	apiKey := os.Getenv("SKIRMISH_FIREBASE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("SKIRMISH_FIREBASE_API_KEY must be set when a Firebase project is configured")
	}
	return authproviders.NewFirebaseAuthProvider(ctx, projectID, apiKey)
}
