package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"marketplace/internal/domain"
	"marketplace/internal/services"
	"marketplace/pkg/logger"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	log           logger.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	userID := currentUser(c)
	if userID == 0 {
		return loginRequired(c)
	}

	list, err := h.notifications.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	notificationID, ok := pathID(c, "id")
	if !ok {
		return invalidID(c)
	}
	userID := currentUser(c)
	if userID == 0 {
		return loginRequired(c)
	}

	if err := h.notifications.Delete(c.Request().Context(), notificationID, userID); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
