package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kmathys/skirmish/pkg/log"
	"github.com/kmathys/skirmish/pkg/messages"
	"github.com/kmathys/skirmish/pkg/network"
)

type BroadcastMessageWorker struct {
	networkManager       *network.NetworkManager
	broadcastMessageChan <-chan BroadcastMessage
}

type BroadcastMessage struct {
	Type    messages.MessageType
	Message interface{}
}

type NewBroadcastMessageWorkerOptions struct {
	NetworkManager       *network.NetworkManager
	BroadcastMessageChan <-chan BroadcastMessage
}

func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	return &BroadcastMessageWorker{
		networkManager:       opts.NetworkManager,
		broadcastMessageChan: opts.BroadcastMessageChan,
	}
}

func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broadcastMessageChan:
			if err := w.broadcast(ctx, msg); err != nil {
				log.Error("Failed to broadcast %s message: %v", msg.Type, err)
			}
		}
	}
}

func (w *BroadcastMessageWorker) broadcast(ctx context.Context, b BroadcastMessage) error {
	payload, err := json.Marshal(b.Message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}

	msg := &messages.Message{
		ClientID: 0,
		Type:     b.Type,
		Payload:  payload,
	}

	switch b.Type {
	case messages.MessageTypeServerMatchUpdate:
		// match updates are superseded every tick, losing one is fine
		w.networkManager.SendUnreliableMessageToAll(ctx, msg)
	case messages.MessageTypeServerPlayerConnect,
		messages.MessageTypeServerPlayerDisconnect,
		messages.MessageTypeServerPlayerHit,
		messages.MessageTypeServerPlayerKill,
		messages.MessageTypeServerPlayerRespawn,
		messages.MessageTypeServerMatchPhase:
		w.networkManager.SendReliableMessageToAll(ctx, msg)
	default:
		return fmt.Errorf("unknown server message type: %s", b.Type)
	}

	return nil
}
