package websocket

import (
	"context"

	"marketplace/internal/domain"
)

// WebSocketNotifier adapts a ConnectionManager to the service-facing
// notifier and broadcaster interfaces.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) NotifyUser(ctx context.Context, userID int64, message interface{}) error {
	return n.connManager.NotifyUser(userID, message)
}

func (n *WebSocketNotifier) BroadcastToOffer(ctx context.Context, offerID int64, message interface{}) error {
	return n.connManager.BroadcastToOffer(offerID, message)
}
