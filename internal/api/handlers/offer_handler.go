package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"marketplace/internal/domain"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
)

type OfferHandler struct {
	lifecycle *services.OfferLifecycle
	view      *services.BiddingView
	clock     func() time.Time
	log       logger.Logger
}

type CreateOfferRequest struct {
	Title  string              `json:"title"`
	Mode   domain.OfferMode    `json:"mode"`
	Status *domain.OfferStatus `json:"status"`
}

type UpdateOfferRequest struct {
	Title  *string             `json:"title"`
	Status *domain.OfferStatus `json:"status"`
}

type DeleteOfferResponse struct {
	OfferID int64                `json:"offer_id"`
	Cascade domain.CascadeResult `json:"cascade"`
}

type OfferCountResponse struct {
	UserID int64 `json:"user_id"`
	Count  int   `json:"count"`
}

func NewOfferHandler(lifecycle *services.OfferLifecycle, view *services.BiddingView, log logger.Logger) *OfferHandler {
	return &OfferHandler{
		lifecycle: lifecycle,
		view:      view,
		clock:     time.Now,
		log:       log,
	}
}

func (h *OfferHandler) CreateOffer(c echo.Context) error {
	userID := currentUser(c)
	h.log.Info("CreateOffer endpoint called", "user_id", userID, "remote_addr", c.RealIP())
	if userID == 0 {
		return loginRequired(c)
	}

	var req CreateOfferRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	}

	status := domain.OfferPublished
	if req.Status != nil {
		status = *req.Status
	}
	offer, err := h.lifecycle.CreateOffer(c.Request().Context(), domain.NewOffer{
		Title:   req.Title,
		OwnerID: userID,
		Mode:    req.Mode,
		Status:  status,
	}, h.clock())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, offer)
}

// GetOffer returns the offer page data as seen by the calling user.
func (h *OfferHandler) GetOffer(c echo.Context) error {
	offerID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}

	summary, err := h.view.OfferSummary(c.Request().Context(), offerID, currentUser(c), h.clock())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *OfferHandler) UpdateOffer(c echo.Context) error {
	offerID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}
	userID := currentUser(c)
	if userID == 0 {
		return loginRequired(c)
	}

	var req UpdateOfferRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
	}

	ctx := c.Request().Context()
	if _, err := h.lifecycle.AuthorizeOfferOwner(ctx, offerID, userID); err != nil {
		return respondError(c, h.log, err)
	}

	offer, err := h.lifecycle.UpdateOffer(ctx, offerID, domain.OfferUpdate{
		Title:  req.Title,
		Status: req.Status,
	}, h.clock())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, offer)
}

func (h *OfferHandler) DeleteOffer(c echo.Context) error {
	offerID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}
	userID := currentUser(c)
	h.log.Info("DeleteOffer endpoint called", "offer_id", offerID, "user_id", userID)
	if userID == 0 {
		return loginRequired(c)
	}

	ctx := c.Request().Context()
	if _, err := h.lifecycle.AuthorizeOfferOwner(ctx, offerID, userID); err != nil {
		return respondError(c, h.log, err)
	}

	result, err := h.lifecycle.DeleteOffer(ctx, offerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, DeleteOfferResponse{OfferID: offerID, Cascade: result})
}

func (h *OfferHandler) MyOffersCount(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}

	count, err := h.lifecycle.MyOffersCount(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, OfferCountResponse{UserID: userID, Count: count})
}
