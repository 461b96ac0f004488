package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"marketplace/internal/domain"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
)

type BidHandler struct {
	bids      *services.BidService
	lifecycle *services.OfferLifecycle
	clock     func() time.Time
	log       logger.Logger
}

// BidInput keeps the raw form value so "abc" reaches the amount check
// instead of failing in the decoder. Both "150" and 150 are accepted.
type BidInput string

func (b *BidInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = BidInput(s)
		return nil
	}
	*b = BidInput(bytes.TrimSpace(data))
	return nil
}

type SubmitBidRequest struct {
	Amount BidInput `json:"amount"`
}

type SubmitBidResponse struct {
	Bid     *domain.Bid `json:"bid"`
	Raised  bool        `json:"raised"`
	Message string      `json:"message"`
}

func NewBidHandler(bids *services.BidService, lifecycle *services.OfferLifecycle, log logger.Logger) *BidHandler {
	return &BidHandler{
		bids:      bids,
		lifecycle: lifecycle,
		clock:     time.Now,
		log:       log,
	}
}

func (h *BidHandler) SubmitBid(c echo.Context) error {
	offerID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}
	userID := currentUser(c)
	h.log.Info("SubmitBid endpoint called", "offer_id", offerID, "user_id", userID, "remote_addr", c.RealIP())
	if userID == 0 {
		return loginRequired(c)
	}

	var req SubmitBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	}

	result, err := h.bids.SubmitBid(c.Request().Context(), services.SubmitBidRequest{
		OfferID: offerID,
		UserID:  userID,
		Amount:  string(req.Amount),
		Now:     h.clock(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	status := http.StatusCreated
	if result.Raised {
		status = http.StatusOK
	}
	return c.JSON(status, SubmitBidResponse{Bid: result.Bid, Raised: result.Raised, Message: result.Message})
}

func (h *BidHandler) DeleteBid(c echo.Context) error {
	bidID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}
	userID := currentUser(c)
	if userID == 0 {
		return loginRequired(c)
	}

	ctx := c.Request().Context()
	if _, err := h.lifecycle.AuthorizeBidOwner(ctx, bidID, userID); err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.lifecycle.DeleteBid(ctx, bidID); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
