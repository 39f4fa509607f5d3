package workers

import (
	"context"

	gametypes "github.com/kmathys/skirmish/pkg/game/types"
	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/network"
	"github.com/kmathys/skirmish/pkg/queue"
	"github.com/kmathys/skirmish/pkg/repositories"
)

type ConnectionEventWorker struct {
	clientEventChan      <-chan network.ClientEvent
	repository           repositories.Repository
	connectionEventQueue queue.Queue
}

type NewConnectionEventWorkerOptions struct {
	ClientEventChan      <-chan network.ClientEvent
	Repository           repositories.Repository
	ConnectionEventQueue queue.Queue
}

// NewConnectionEventWorker creates a new ConnectionEventWorker.
// The worker processes client events like connect and disconnect
// and writes connection events to a queue for the match loop to process.
func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	return &ConnectionEventWorker{
		clientEventChan:      opts.ClientEventChan,
		repository:           opts.Repository,
		connectionEventQueue: opts.ConnectionEventQueue,
	}
}

func (w *ConnectionEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.clientEventChan:
			switch event.Type {
			case network.ClientEventTypeConnect:
				w.handleClientConnect(ctx, event)
			case network.ClientEventTypeDisconnect:
				w.handleClientDisconnect(event)
			default:
				log.Error("Unknown client event type: %v", event.Type)
			}
		}
	}
}

func (w *ConnectionEventWorker) handleClientConnect(ctx context.Context, event network.ClientEvent) {
	data, ok := event.Data.(network.ClientConnectData)
	if !ok {
		log.Error("Failed to cast client connect data")
		return
	}

	if stats, err := w.repository.LoadPlayerStats(ctx, data.UserID); err == nil {
		log.Debug("Player %s returning with %d career kills", data.Handle, stats.Kills)
	} else if !repositories.IsNotFound(err) {
		log.Error("Failed to load player stats for user %s: %v", data.UserID, err)
	}

	if err := w.connectionEventQueue.Enqueue(&gametypes.ConnectPlayerEvent{
		ClientID: event.ClientID,
		UserID:   data.UserID,
		Handle:   data.Handle,
	}); err != nil {
		log.Error("Failed to enqueue connect player event: %v", err)
	}
}

func (w *ConnectionEventWorker) handleClientDisconnect(event network.ClientEvent) {
	if err := w.connectionEventQueue.Enqueue(&gametypes.DisconnectPlayerEvent{
		ClientID: event.ClientID,
	}); err != nil {
		log.Error("Failed to enqueue disconnect player event: %v", err)
	}
}
