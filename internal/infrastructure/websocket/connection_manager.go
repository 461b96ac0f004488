package websocket

import (
	"encoding/json"
	"sync"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

type ConnectionManager struct {
	connections map[int64]map[int64]domain.WebSocketConnection // offerID -> userID -> connection
	userConns   map[int64][]domain.WebSocketConnection         // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[int64]map[int64]domain.WebSocketConnection),
		userConns:   make(map[int64][]domain.WebSocketConnection),
		log:         log,
	}
}

// RegisterConnection replaces and closes any earlier connection of the same
// user on the same offer.
func (cm *ConnectionManager) RegisterConnection(userID, offerID int64, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[offerID] == nil {
		cm.connections[offerID] = make(map[int64]domain.WebSocketConnection)
	}
	if previous, exists := cm.connections[offerID][userID]; exists && previous != conn {
		cm.removeUserConn(userID, previous)
		if err := previous.Close(); err != nil {
			cm.log.Debug("Failed to close replaced connection", "user_id", userID, "offer_id", offerID, "error", err)
		}
	}
	cm.connections[offerID][userID] = conn
	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "offer_id", offerID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, offerID int64, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	offerConns, exists := cm.connections[offerID]
	if !exists || offerConns[userID] != conn {
		return nil
	}
	cm.removeUserConn(userID, conn)
	delete(offerConns, userID)
	if len(offerConns) == 0 {
		delete(cm.connections, offerID)
	}

	cm.log.Info("Connection unregistered", "user_id", userID, "offer_id", offerID)
	return nil
}

// CloseAndUnregisterConnections drops every watcher of a deleted offer.
func (cm *ConnectionManager) CloseAndUnregisterConnections(offerID int64) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for userID, conn := range cm.connections[offerID] {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", userID, "offer_id", offerID, "error", err)
		}
		cm.removeUserConn(userID, conn)
	}
	delete(cm.connections, offerID)

	cm.log.Info("Connections closed for offer", "offer_id", offerID)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForOffer(offerID int64) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := make([]domain.WebSocketConnection, 0, len(cm.connections[offerID]))
	for _, conn := range cm.connections[offerID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID int64) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return append([]domain.WebSocketConnection(nil), cm.userConns[userID]...)
}

func (cm *ConnectionManager) BroadcastToOffer(offerID int64, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	connections := cm.GetConnectionsForOffer(offerID)
	cm.log.Debug("Broadcasting to offer", "offer_id", offerID, "connections", len(connections))

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			// Continue to other connections
			cm.log.Error("Failed to send message", "user_id", conn.UserID(), "offer_id", offerID, "error", err)
		}
	}
	return nil
}

func (cm *ConnectionManager) NotifyUser(userID int64, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range cm.GetConnectionsForUser(userID) {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}
	return nil
}

// removeUserConn expects the write lock.
func (cm *ConnectionManager) removeUserConn(userID int64, conn domain.WebSocketConnection) {
	conns := cm.userConns[userID]
	kept := conns[:0]
	for _, c := range conns {
		if c != conn {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(cm.userConns, userID)
		return
	}
	cm.userConns[userID] = kept
}
