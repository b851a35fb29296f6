package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vnkhanh/comuni-server/services"
)

func (h *Handler) CreateEvent(c *gin.Context) {
	var req services.CreateEventInput
	if !bindJSON(c, &req) {
		return
	}
	ev, err := h.svc.Events.CreateEvent(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Event created", "data": ev})
}

func (h *Handler) ListPendingEvents(c *gin.Context) {
	events, err := h.svc.Events.ListPendingEventsForAdmin(c.Request.Context(), uuid.Nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	ev, err := h.svc.Events.GetEventByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ev})
}

func (h *Handler) IsEventAdmin(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	isAdmin, err := h.svc.Events.IsEventAdmin(c.Request.Context(), id, uuid.Nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_admin": isAdmin})
}

func (h *Handler) ApproveEvent(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	ev, err := h.svc.Events.ApproveEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event approved", "data": ev})
}

func (h *Handler) RejectEvent(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	ev, err := h.svc.Events.RejectEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event rejected", "data": ev})
}
