package handlers

import (
	"net/http"

	"marketplace/internal/domain"
	"marketplace/internal/infrastructure/websocket"
	"marketplace/pkg/logger"
)

// WebSocketHandlers exposes the offer gateway on a mux router.
type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(bidService websocket.BidSubmitter, offerRepo domain.OfferRepository,
	connManager *websocket.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		wsHandler: websocket.NewWebSocketHandler(bidService, offerRepo, connManager, log),
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
