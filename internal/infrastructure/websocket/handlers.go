package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"marketplace/internal/domain"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// BidSubmitter is the part of services.BidService the gateway needs.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, req services.SubmitBidRequest) (*services.SubmitBidResult, error)
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount string `json:"amount,omitempty"`
}

type serverMessage struct {
	Type    string                `json:"type"`
	Message string                `json:"message,omitempty"`
	Code    domain.ValidationCode `json:"code,omitempty"`
	BidID   int64                 `json:"bid_id,omitempty"`
	Amount  float64               `json:"amount,omitempty"`
}

type WebSocketHandler struct {
	bidService  BidSubmitter
	offerRepo   domain.OfferRepository
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(bidService BidSubmitter, offerRepo domain.OfferRepository,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService:  bidService,
		offerRepo:   offerRepo,
		connManager: connManager,
		log:         log,
	}
}

// HandleConnection upgrades GET /ws/offers/{offerID}?user_id=N.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	offerID, err := strconv.ParseInt(mux.Vars(r)["offerID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	if _, err := h.offerRepo.GetOffer(r.Context(), offerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "offer not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load offer", "offer_id", offerID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, offerID)
	if err := h.connManager.RegisterConnection(userID, offerID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		h.connManager.UnregisterConnection(conn.UserID(), conn.OfferID(), conn)
		conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("Connection read ended", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			if gone := h.handleBidMessage(conn, msg); gone {
				return
			}
		case "ping":
			conn.Send(serverMessage{Type: "pong"})
		default:
			conn.Send(serverMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

// handleBidMessage reports whether the offer no longer exists.
func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg clientMessage) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.bidService.SubmitBid(ctx, services.SubmitBidRequest{
		OfferID: conn.OfferID(),
		UserID:  conn.UserID(),
		Amount:  msg.Amount,
		Now:     time.Now(),
	})
	if err == nil {
		conn.Send(serverMessage{
			Type:    "bid_accepted",
			Message: result.Message,
			BidID:   result.Bid.ID,
			Amount:  result.Bid.Amount,
		})
		return false
	}

	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		conn.Send(serverMessage{Type: "bid_rejected", Message: validationErr.Message, Code: validationErr.Code})
	case errors.Is(err, domain.ErrNotFound):
		conn.Send(serverMessage{Type: "error", Message: "offer not found"})
		return true
	default:
		h.log.Error("Failed to place bid", "offer_id", conn.OfferID(), "error", err)
		conn.Send(serverMessage{Type: "error", Message: "failed to place bid"})
	}
	return false
}

// WebSocketConnection serializes writes; gorilla connections allow one
// concurrent writer.
type WebSocketConnection struct {
	conn    *websocket.Conn
	userID  int64
	offerID int64
	writeMu sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, userID, offerID int64) *WebSocketConnection {
	return &WebSocketConnection{
		conn:    conn,
		userID:  userID,
		offerID: offerID,
	}
}

// Send writes pre-encoded JSON as a text frame and encodes anything else.
func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	if raw, ok := message.([]byte); ok {
		return wsc.conn.WriteMessage(websocket.TextMessage, raw)
	}
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() int64 {
	return wsc.userID
}

func (wsc *WebSocketConnection) OfferID() int64 {
	return wsc.offerID
}
