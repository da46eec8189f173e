package controllers

import (
	"net/http"

	"admissions-api/middleware"
	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

type broadcastRequest struct {
	Subject              string `json:"subject" binding:"required"`
	Message              string `json:"message" binding:"required"`
	Status               string `json:"status"`
	CourseFeeOutstanding bool   `json:"course_fee_outstanding"`
}

// POST /api/v1/admin/broadcasts
func (h *Handlers) AdminStartBroadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "subject and message are required")
		return
	}

	run, err := h.Broadcast.Start(c.Request.Context(), services.BroadcastInput{
		Subject: req.Subject,
		Message: req.Message,
		Filter: services.BroadcastFilter{
			Status:               req.Status,
			CourseFeeOutstanding: req.CourseFeeOutstanding,
		},
		TriggeredBy: middleware.AdminID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":      true,
		"broadcast_id": run.ID,
		"recipients":   run.Recipients,
		"status":       run.Status,
	})
}

// GET /api/v1/admin/broadcasts/:id
func (h *Handlers) AdminGetBroadcast(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	run, err := h.Broadcast.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "broadcast": run})
}
