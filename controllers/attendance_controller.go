package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) MyAttendance(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.Events.MyAttendanceStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st})
}

func (h *Handler) RequestAttendance(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Events.RequestAttendance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Attendance requested", "data": a})
}

func (h *Handler) ListAttendance(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	views, err := h.svc.Events.ListAttendanceRequests(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (h *Handler) ApproveAttendance(c *gin.Context) {
	eventID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	a, err := h.svc.Events.ApproveAttendance(c.Request.Context(), eventID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance approved", "data": a})
}

func (h *Handler) RejectAttendance(c *gin.Context) {
	eventID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	a, err := h.svc.Events.RejectAttendance(c.Request.Context(), eventID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attendance rejected", "data": a})
}
