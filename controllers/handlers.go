package controllers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"admissions-api/monitor"
	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

// Handlers holds the services the HTTP layer calls into.
type Handlers struct {
	Apps      *services.ApplicationService
	Ledger    *services.PaymentLedgerService
	Docs      *services.DocumentService
	Auth      *services.AuthService
	Broadcast *services.BroadcastService
	Reminders *services.EMIReminderJob
	Dashboard *services.DashboardService
	Outbox    *services.Dispatcher
	Monitor   *monitor.Monitor
}

// respondError maps a service error onto a status code. Storage failures never leak details.
func respondError(c *gin.Context, err error) {
	se, ok := services.AsError(err)
	if !ok {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "server error"})
		return
	}

	status := http.StatusInternalServerError
	switch se.Kind {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindValidation, services.KindInvalidStatus, services.KindCourseFeeNotInitiated:
		status = http.StatusBadRequest
	case services.KindPrecondition, services.KindConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"success": false, "error": "server error"})
		return
	}

	body := gin.H{"success": false, "error": se.Message, "code": se.Kind}
	if len(se.Fields) > 0 {
		body["fields"] = se.Fields
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, size
}

// readUpload reads at most limit+1 bytes so the service can tell an oversized file apart.
func readUpload(fh *multipart.FileHeader, limit int64) (services.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return services.UploadedFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return services.UploadedFile{}, err
	}
	return services.UploadedFile{OriginalName: fh.Filename, Content: data}, nil
}

// resolveRef turns the :ref path segment into an application id.
func (h *Handlers) resolveRef(c *gin.Context) (uint, bool) {
	id, err := h.Apps.ResolveReference(c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return 0, false
	}
	return id, true
}

func isMissingFile(err error) bool {
	return errors.Is(err, http.ErrMissingFile)
}
