package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"admissions-api/middleware"
	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

type rejectPaymentRequest struct {
	Reason string `json:"reason"`
}

// POST /api/v1/applications/:ref/payments (multipart: utr, payment_type, emi_option, amount, screenshot)
func (h *Handlers) RecordPayment(c *gin.Context) {
	id, ok := h.resolveRef(c)
	if !ok {
		return
	}

	in := services.RecordPaymentInput{
		ApplicationID: id,
		UTR:           c.PostForm("utr"),
		PaymentType:   c.PostForm("payment_type"),
		EMIOption:     c.PostForm("emi_option"),
	}
	if raw := strings.TrimSpace(c.PostForm("amount")); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "amount must be a whole number of rupees")
			return
		}
		in.Amount = amount
	}

	fh, err := c.FormFile("screenshot")
	switch {
	case err == nil:
		f, err := readUpload(fh, services.MaxScreenshotBytes)
		if err != nil {
			badRequest(c, "Failed to read screenshot")
			return
		}
		in.Screenshot = &f
	case !isMissingFile(err):
		badRequest(c, "Invalid multipart form")
		return
	}

	res, err := h.Ledger.RecordPayment(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	if res.Duplicate {
		body := gin.H{
			"success":   true,
			"duplicate": true,
			"message":   "This UTR has already been submitted",
		}
		if res.Payment != nil {
			body["payment"] = res.Payment
		}
		c.JSON(http.StatusOK, body)
		return
	}
	h.Outbox.Kick()
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"duplicate": false,
		"message":   "Payment received and awaiting verification",
		"payment":   res.Payment,
	})
}

// GET /api/v1/admin/payments
func (h *Handlers) AdminListPayments(c *gin.Context) {
	page, size := pageParams(c)
	filter := services.PaymentFilter{
		PaymentType: c.Query("payment_type"),
		Status:      c.Query("status"),
		Page:        page,
		PageSize:    size,
	}
	if raw := c.Query("application_id"); raw != "" {
		appID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "Invalid application_id")
			return
		}
		filter.ApplicationID = uint(appID)
	}

	rows, total, err := h.Ledger.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payments": rows, "total": total})
}

// POST /api/v1/admin/payments/:id/verify
func (h *Handlers) AdminVerifyPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.Ledger.Verify(c.Request.Context(), id, middleware.AdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Outbox.Kick()
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

// POST /api/v1/admin/payments/:id/reject
func (h *Handlers) AdminRejectPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req rejectPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}

	p, err := h.Ledger.Reject(c.Request.Context(), id, req.Reason, middleware.AdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Outbox.Kick()
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}
