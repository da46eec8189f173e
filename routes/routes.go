package routes

import (
	"net/http"

	"admissions-api/controllers"
	"admissions-api/middleware"
	"admissions-api/models"
	"admissions-api/monitor"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, h *controllers.Handlers) {
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Admissions API is running",
				})
			})

			applications := public.Group("/applications")
			{
				applications.POST("", h.CreateApplication)
				applications.POST("/:ref/submit", h.SubmitApplication)
				applications.POST("/:ref/payments", h.RecordPayment)
				applications.POST("/:ref/documents", h.UploadDocuments)
			}

			public.POST("/status", h.ApplicationStatus)
			public.POST("/admin/login", h.AdminLogin)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(h.Auth))
		{
			admin.GET("/profile", h.AdminProfile)

			staff := admin.Group("")
			staff.Use(middleware.RequireRole(models.RoleAdmin, models.RoleReviewer))
			{
				staff.GET("/dashboard", h.AdminDashboard)
				staff.GET("/applications", h.AdminListApplications)
				staff.GET("/applications/:id", h.AdminGetApplication)
				staff.GET("/applications/:id/history", h.AdminApplicationHistory)
				staff.GET("/applications/:id/documents", h.AdminListDocuments)
				staff.GET("/documents/:id/download", h.AdminDownloadDocument)
				staff.GET("/payments", h.AdminListPayments)
			}

			// Only admins change state or send mail
			owners := admin.Group("")
			owners.Use(middleware.RequireRole(models.RoleAdmin))
			{
				owners.PUT("/applications/:id/status", h.AdminUpdateStatus)
				owners.POST("/payments/:id/verify", h.AdminVerifyPayment)
				owners.POST("/payments/:id/reject", h.AdminRejectPayment)
				owners.POST("/broadcasts", h.AdminStartBroadcast)
				owners.GET("/broadcasts/:id", h.AdminGetBroadcast)
				owners.POST("/reminders/emi", h.AdminRunEMIReminders)
				if h.Monitor != nil {
					monitor.RegisterRoutes(owners, h.Monitor)
				}
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found"})
	})
}
