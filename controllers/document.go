package controllers

import (
	"fmt"
	"net/http"

	"admissions-api/services"

	"github.com/gin-gonic/gin"
)

// POST /api/v1/applications/:ref/documents (multipart, one field per document bucket)
func (h *Handlers) UploadDocuments(c *gin.Context) {
	id, ok := h.resolveRef(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Invalid multipart form")
		return
	}

	files := make(map[string][]services.UploadedFile, len(form.File))
	for bucket, headers := range form.File {
		for _, fh := range headers {
			f, err := readUpload(fh, services.MaxDocumentBytes)
			if err != nil {
				badRequest(c, fmt.Sprintf("Failed to read %s", fh.Filename))
				return
			}
			files[bucket] = append(files[bucket], f)
		}
	}
	if len(files) == 0 {
		badRequest(c, "No documents were uploaded")
		return
	}

	n, err := h.Docs.Upload(c.Request.Context(), id, files)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Outbox.Kick()
	c.JSON(http.StatusCreated, gin.H{"success": true, "uploaded": n})
}

// GET /api/v1/admin/applications/:id/documents
func (h *Handlers) AdminListDocuments(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.Docs.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "documents": rows})
}

// GET /api/v1/admin/documents/:id/download
func (h *Handlers) AdminDownloadDocument(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	f, data, err := h.Docs.Download(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	mime := f.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.OriginalName))
	c.Data(http.StatusOK, mime, data)
}
