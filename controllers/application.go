package controllers

import (
	"net/http"

	"admissions-api/middleware"
	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

type statusQueryRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
	Identifier    string `json:"identifier" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// POST /api/v1/applications
func (h *Handlers) CreateApplication(c *gin.Context) {
	var req services.DraftInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	app, err := h.Apps.CreateDraft(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Outbox.Kick()

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"application_id": app.ApplicationID,
		"reference":      h.Apps.PrettyID(app.ApplicationID),
		"token":          h.Apps.Token(app.ApplicationID),
		"status":         app.Status,
		"flow_state":     app.FlowState,
	})
}

// POST /api/v1/applications/:ref/submit
func (h *Handlers) SubmitApplication(c *gin.Context) {
	id, ok := h.resolveRef(c)
	if !ok {
		return
	}

	res, err := h.Apps.Submit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Outbox.Kick()

	message := "Application accepted"
	if !res.Accepted {
		message = "Application received; it will be accepted once the registration fee is verified"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"accepted":   res.Accepted,
		"message":    message,
		"status":     res.Application.Status,
		"flow_state": res.Application.FlowState,
	})
}

// POST /api/v1/status
func (h *Handlers) ApplicationStatus(c *gin.Context) {
	var req statusQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "application_id and identifier are required"})
		return
	}

	view, err := h.Apps.StatusView(c.Request.Context(), req.ApplicationID, req.Identifier)
	if err != nil {
		if services.IsKind(err, services.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "No application matches the given id and email or mobile"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"app": gin.H{
			"fullName":   view.FullName,
			"id":         view.ID,
			"status":     view.Status,
			"flow_state": view.FlowState,
		},
		"timeline": view.Timeline,
		"payments": view.Payments,
	})
}

// GET /api/v1/admin/applications
func (h *Handlers) AdminListApplications(c *gin.Context) {
	page, size := pageParams(c)
	rows, total, err := h.Apps.List(c.Request.Context(), services.ApplicationFilter{
		Status:    c.Query("status"),
		FlowState: c.Query("flow_state"),
		Search:    c.Query("q"),
		Page:      page,
		PageSize:  size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "applications": rows, "total": total})
}

// GET /api/v1/admin/applications/:id
func (h *Handlers) AdminGetApplication(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	app, err := h.Apps.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	timeline, err := h.Apps.Timeline(ctx, app)
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := h.Ledger.Summary(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"application": app,
		"reference":   h.Apps.PrettyID(app.ApplicationID),
		"timeline":    timeline,
		"payments":    summary,
	})
}

// PUT /api/v1/admin/applications/:id/status
func (h *Handlers) AdminUpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	app, err := h.Apps.UpdateStatus(c.Request.Context(), id, req.Status, middleware.AdminID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Outbox.Kick()
	c.JSON(http.StatusOK, gin.H{"success": true, "application": app})
}

// GET /api/v1/admin/applications/:id/history
func (h *Handlers) AdminApplicationHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.Apps.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": rows})
}
