package middleware

import (
	"net/http"
	"strings"

	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextAdminID = "adminID"
	ContextEmail   = "email"
	ContextRole    = "role"
)

// AuthMiddleware validates the admin JWT and checks the account is still active.
func AuthMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header is required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			c.Abort()
			return
		}

		admin, err := auth.ActiveAdmin(c.Request.Context(), claims.AdminID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Admin account not found"})
			c.Abort()
			return
		}

		c.Set(ContextAdminID, admin.AdminID)
		c.Set(ContextEmail, admin.Email)
		c.Set(ContextRole, admin.Role)

		c.Next()
	}
}

// RequireRole checks the authenticated admin has one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role == "" {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Role not found"})
			c.Abort()
			return
		}

		allowed := false
		for _, r := range roles {
			if role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminID returns the authenticated admin id, or nil outside AuthMiddleware.
func AdminID(c *gin.Context) *uint {
	v, ok := c.Get(ContextAdminID)
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}
