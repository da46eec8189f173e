package controllers

import (
	"errors"
	"net/http"

	"admissions-api/middleware"
	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/v1/admin/login
func (h *Handlers) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid email or password"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"admin":      res.Admin,
		"message":    "Login successful",
	})
}

// GET /api/v1/admin/profile
func (h *Handlers) AdminProfile(c *gin.Context) {
	id := middleware.AdminID(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not signed in"})
		return
	}
	admin, err := h.Auth.ActiveAdmin(c.Request.Context(), *id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Admin not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "admin": admin})
}
