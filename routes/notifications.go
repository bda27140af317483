package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"food-share-server/models"
)

// RegisterNotificationRoutes registers notification routes including the live streams
func (h *Handler) RegisterNotificationRoutes(rg *gin.RouterGroup, protect gin.HandlerFunc) {
	rg.GET("", protect, h.listNotifications)
	rg.POST("", protect, h.createNotification)
	rg.PUT("/:id", protect, h.markNotificationRead)
	rg.GET("/stream", protect, h.streamNotifications)
	rg.GET("/ws", protect, h.notificationSocket)
}

func (h *Handler) listNotifications(c *gin.Context) {
	userID, ok := h.resolveUserID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondFail(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	notifications, err := h.Notifications.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, notifications)
}

func (h *Handler) createNotification(c *gin.Context) {
	var req models.NotificationCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request data: "+err.Error())
		return
	}

	notification, err := h.Notifications.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, notification)
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	notification, err := h.Notifications.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeUser(c, notification.UserID) {
		return
	}

	notification, err = h.Notifications.MarkAsRead(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, notification)
}
