package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/admin/dashboard
func (h *Handlers) AdminDashboard(c *gin.Context) {
	stats, err := h.Dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
