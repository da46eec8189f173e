package controllers

import (
	"errors"
	"net/http"

	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/admin/reminders/emi
func (h *Handlers) AdminRunEMIReminders(c *gin.Context) {
	summary, err := h.Reminders.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrReminderSweepRunning) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "EMI reminder sweep already running"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}
