package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vnkhanh/comuni-server/services"
)

func (h *Handler) Me(c *gin.Context) {
	me, err := h.svc.Profiles.Me(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": me})
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileInput
	if !bindJSON(c, &req) {
		return
	}
	me, err := h.svc.Profiles.UpdateDisplayName(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "data": me})
}

func (h *Handler) GetSelectedGroup(c *gin.Context) {
	id, err := h.svc.Groups.GetSelectedGroup(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": id})
}

func (h *Handler) SetSelectedGroup(c *gin.Context) {
	var req struct {
		GroupID uuid.UUID `json:"group_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.GroupID == uuid.Nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"message": "group_id is required", "field": "group_id"})
		return
	}
	if err := h.svc.Groups.SetSelectedGroup(c.Request.Context(), req.GroupID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": req.GroupID})
}
