package handlers

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the REST API under g, normally /api/v1.
func RegisterRoutes(g *echo.Group, offers *OfferHandler, bids *BidHandler, notifications *NotificationHandler) {
	g.POST("/offers", offers.CreateOffer)
	g.GET("/offers/:id", offers.GetOffer)
	g.PATCH("/offers/:id", offers.UpdateOffer)
	g.DELETE("/offers/:id", offers.DeleteOffer)
	g.GET("/users/:id/offers/count", offers.MyOffersCount)

	g.POST("/offers/:id/bids", bids.SubmitBid)
	g.DELETE("/bids/:id", bids.DeleteBid)

	g.GET("/notifications", notifications.ListNotifications)
	g.DELETE("/notifications/:id", notifications.DeleteNotification)
}
