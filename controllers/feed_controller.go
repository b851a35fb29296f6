package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Notifications is the combined moderation feed of the caller.
func (h *Handler) Notifications(c *gin.Context) {
	items, err := h.svc.Feed.ListAdminNotifications(c.Request.Context(), uuid.Nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
