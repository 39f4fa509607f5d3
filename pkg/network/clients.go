package network

import (
	"fmt"
	"math/rand"
	"net"
	"sync"

	"nhooyr.io/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
	// ClientEventChannelSize represents the size of the client event channel
	ClientEventChannelSize = 1024
)

// ClientConnectionType represents the transport pair a client is using
type ClientConnectionType int

const (
	ClientConnectionTypeTCPUDP ClientConnectionType = iota
	ClientConnectionTypeWebSocket
)

// Client represents a connected client
type Client struct {
	ID             uint32
	ConnectionType ClientConnectionType
	TCPConn        net.Conn
	WSConn         *websocket.Conn
	UDPAddress     *net.UDPAddr
	UserID         string
	Handle         string
}

// ClientEvent represents an event that happened to a client
type ClientEvent struct {
	ClientID uint32
	Type     ClientEventType
	Data     interface{}
}

// ClientEventType represents the type of a client event
type ClientEventType int

const (
	ClientEventTypeConnect ClientEventType = iota
	ClientEventTypeDisconnect
)

type ClientConnectData struct {
	UserID string
	Handle string
}

// ClientManager manages connected clients
type ClientManager struct {
	clients         map[uint32]*Client
	clientsLock     sync.RWMutex
	clientEventChan chan ClientEvent
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:         make(map[uint32]*Client),
		clientEventChan: make(chan ClientEvent, ClientEventChannelSize),
	}
}

// GetClientEventChan returns a one-way channel for receiving client events
func (cm *ClientManager) GetClientEventChan() <-chan ClientEvent {
	return cm.clientEventChan
}

// GetClients returns a slice with a copy of all connected clients.
func (cm *ClientManager) GetClients() []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		copy := &Client{
			ID:             client.ID,
			ConnectionType: client.ConnectionType,
			TCPConn:        client.TCPConn,
			WSConn:         client.WSConn,
			UserID:         client.UserID,
			Handle:         client.Handle,
		}
		if client.UDPAddress != nil {
			copy.UDPAddress = &net.UDPAddr{
				IP:   client.UDPAddress.IP,
				Port: client.UDPAddress.Port,
				Zone: client.UDPAddress.Zone,
			}
		}
		clients = append(clients, copy)
	}
	return clients
}

// GetClient returns a copy of the client with the given ID
func (cm *ClientManager) GetClient(clientID uint32) (*Client, error) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %d not found", clientID)
	}
	copy := &Client{
		ID:             client.ID,
		ConnectionType: client.ConnectionType,
		TCPConn:        client.TCPConn,
		WSConn:         client.WSConn,
		UserID:         client.UserID,
		Handle:         client.Handle,
	}
	if client.UDPAddress != nil {
		copy.UDPAddress = &net.UDPAddr{
			IP:   client.UDPAddress.IP,
			Port: client.UDPAddress.Port,
			Zone: client.UDPAddress.Zone,
		}
	}
	return copy, nil
}

// ConnectClient adds a new client to the manager and returns its ID.
// Exactly one of tcpConn and wsConn must be non-nil.
func (cm *ClientManager) ConnectClient(tcpConn net.Conn, wsConn *websocket.Conn, userID string, handle string) (uint32, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	connectionType := ClientConnectionTypeTCPUDP
	if wsConn != nil {
		connectionType = ClientConnectionTypeWebSocket
	}

	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	client := &Client{
		ID:             clientID,
		ConnectionType: connectionType,
		TCPConn:        tcpConn,
		WSConn:         wsConn,
		UserID:         userID,
		Handle:         handle,
	}
	cm.clients[clientID] = client

	event := ClientEvent{
		ClientID: clientID,
		Type:     ClientEventTypeConnect,
		Data: ClientConnectData{
			UserID: userID,
			Handle: handle,
		},
	}
	cm.clientEventChan <- event

	return clientID, nil
}

// GetClientIDByTCPConn returns the ID of a client by its TCP connection.
// Returns 0 if the client is not found
func (cm *ClientManager) GetClientIDByTCPConn(conn net.Conn) uint32 {
	if conn == nil {
		return 0
	}
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	for _, client := range cm.clients {
		if client.TCPConn == conn {
			return client.ID
		}
	}
	return 0
}

// GetClientIDByWSConn returns the ID of a client by its WebSocket
// connection. Returns 0 if the client is not found
func (cm *ClientManager) GetClientIDByWSConn(conn *websocket.Conn) uint32 {
	if conn == nil {
		return 0
	}
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	for _, client := range cm.clients {
		if client.WSConn == conn {
			return client.ID
		}
	}
	return 0
}

// DisconnectClient removes a client from the manager
func (cm *ClientManager) DisconnectClient(clientID uint32) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return
	}

	event := ClientEvent{
		ClientID: client.ID,
		Type:     ClientEventTypeDisconnect,
	}
	cm.clientEventChan <- event

	delete(cm.clients, clientID)
}

// SetUDPAddress sets the UDP address of a client
func (cm *ClientManager) SetUDPAddress(clientID uint32, addr *net.UDPAddr) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return
	}

	// Don't update the UDP address if it's already set to the same value
	if client.UDPAddress != nil && client.UDPAddress.String() == addr.String() {
		return
	}

	client.UDPAddress = addr
}

func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

// generateUniqueID generates a unique client ID with a maximum number of retries
// it reads from the clients, so it needs to be locked before calling
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
