package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetread/meetread/internal/repository"
)

// NotificationHandler serves the requester's notification inbox.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(notifications *repository.NotificationRepo) *NotificationHandler {
	if notifications == nil {
		panic("nil repository passed to NewNotificationHandler")
	}
	return &NotificationHandler{Notifications: notifications}
}

// List handles GET /v1/notifications.
func (h *NotificationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Notifications.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
