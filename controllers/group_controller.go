package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vnkhanh/comuni-server/services"
)

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.svc.Groups.ListGroups(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req services.CreateGroupInput
	if !bindJSON(c, &req) {
		return
	}
	g, err := h.svc.Groups.CreateGroup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Group created", "data": g})
}

func (h *Handler) ListMyGroups(c *gin.Context) {
	groups, err := h.svc.Groups.ListMyGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

func (h *Handler) ListPendingGroups(c *gin.Context) {
	groups, err := h.svc.Groups.ListPendingGroups(c.Request.Context(), uuid.Nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	g, err := h.svc.Groups.GetGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": g})
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Groups.DeleteGroup(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// RequestJoin answers 200 with already_pending=true when a request is waiting,
// 201 when a new one was created.
func (h *Handler) RequestJoin(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Groups.RequestJoinGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.AlreadyPending {
		c.JSON(http.StatusOK, gin.H{
			"message":         "Your request is already waiting for approval.",
			"already_pending": true,
			"data":            res.Request,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Join request sent", "already_pending": false, "data": res.Request})
}

func (h *Handler) ApproveGroup(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	g, err := h.svc.Groups.ApproveGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group approved", "data": g})
}

func (h *Handler) RejectGroup(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	g, err := h.svc.Groups.RejectGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group rejected", "data": g})
}

func (h *Handler) ListGroupEvents(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	events, err := h.svc.Events.ListUpcomingEvents(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}
