package websocket

import (
	"encoding/json"
	"sync"

	"service-auction/internal/domain"
	"service-auction/pkg/logger"
)

// ConnectionManager tracks the live websocket clients of this instance, keyed
// by auction and by account.
type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

// RegisterConnection adds conn. A second connection from the same account to
// the same auction replaces and closes the first.
func (cm *ConnectionManager) RegisterConnection(conn domain.WebSocketConnection) error {
	userID, auctionID := conn.UserID(), conn.AuctionID()

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	if previous, exists := cm.connections[auctionID][userID]; exists {
		cm.dropUserConnection(userID, auctionID)
		if err := previous.Close(); err != nil {
			cm.log.Debug("Failed to close replaced connection", "user_id", userID, "error", err)
		}
	}
	cm.connections[auctionID][userID] = conn
	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

// UnregisterConnection removes conn if it is still the registered connection
// for its account and auction.
func (cm *ConnectionManager) UnregisterConnection(conn domain.WebSocketConnection) error {
	userID, auctionID := conn.UserID(), conn.AuctionID()

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	auctionConns, exists := cm.connections[auctionID]
	if !exists || auctionConns[userID] != conn {
		return nil
	}

	delete(auctionConns, userID)
	if len(auctionConns) == 0 {
		delete(cm.connections, auctionID)
	}
	cm.dropUserConnection(userID, auctionID)

	cm.log.Info("Connection unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		for userID, conn := range auctionConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID,
					"auction_id", auctionID, "error", err)
			}
			cm.dropUserConnection(userID, auctionID)
		}
		delete(cm.connections, auctionID)
	}

	cm.log.Info("Connections closed for auction", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := cm.userConns[userID]
	if len(connections) == 0 {
		return nil
	}
	return append([]domain.WebSocketConnection(nil), connections...)
}

func (cm *ConnectionManager) BroadcastToAuction(auctionID string, message interface{}) error {
	connections := cm.GetConnectionsForAuction(auctionID)
	cm.log.Debug("Broadcasting to auction", "auction_id", auctionID, "connections", len(connections))

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(messageBytes)); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"auction_id", auctionID, "error", err)
			// Continue to other connections
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	connections := cm.GetConnectionsForUser(userID)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(messageBytes)); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}

	return nil
}

// dropUserConnection must be called with the write lock held.
func (cm *ConnectionManager) dropUserConnection(userID, auctionID string) {
	var kept []domain.WebSocketConnection
	for _, c := range cm.userConns[userID] {
		if c.AuctionID() != auctionID {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(cm.userConns, userID)
		return
	}
	cm.userConns[userID] = kept
}
