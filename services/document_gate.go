package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"admissions-api/config"
	"admissions-api/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxDocumentBytes caps a single uploaded document.
const MaxDocumentBytes = 10 << 20

var allowedDocumentExts = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".doc":  true,
	".docx": true,
}

// DocumentService gates and stores supporting documents.
type DocumentService struct {
	db      *gorm.DB
	blobs   BlobStore
	notices *Notices
}

func NewDocumentService(db *gorm.DB, blobs BlobStore, notices *Notices) *DocumentService {
	if db == nil {
		db = config.DB
	}
	return &DocumentService{db: db, blobs: blobs, notices: notices}
}

type pendingDocument struct {
	bucket string
	file   UploadedFile
	ext    string
	mime   string
}

// Upload stores every file of the batch or none of them. Documents are accepted only once a
// course-fee payment attempt exists.
func (s *DocumentService) Upload(ctx context.Context, applicationID uint, files map[string][]UploadedFile) (int, error) {
	db := s.db.WithContext(ctx)

	var app models.Application
	if err := db.First(&app, "application_id = ?", applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, NotFound("Application not found")
		}
		return 0, Storage("Failed to upload documents", err)
	}

	var courseFeeRows int64
	if err := db.Model(&models.Payment{}).
		Where("application_id = ? AND payment_type = ?", applicationID, models.PaymentTypeCourseFee).
		Count(&courseFeeRows).Error; err != nil {
		return 0, Storage("Failed to upload documents", err)
	}
	if courseFeeRows == 0 {
		return 0, CourseFeeNotInitiated()
	}

	docs, err := checkDocuments(files)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if s.blobs == nil {
		return 0, Storage("Failed to upload documents", errors.New("no blob store configured"))
	}

	now := nowFunc()
	batch := uuid.NewString()
	rows := make([]models.ApplicationFile, 0, len(docs))
	written := make([]string, 0, len(docs))
	cleanup := func() {
		for _, p := range written {
			if err := s.blobs.Delete(persistentContext(ctx), p); err != nil {
				log.Printf("document upload app=%d: failed to remove %s: %v", applicationID, p, err)
			}
		}
	}

	for _, d := range docs {
		stored := fmt.Sprintf("%d_%s%s", now.UnixNano(), uuid.NewString()[:8], d.ext)
		p := fmt.Sprintf("applications/%d/documents/%s", applicationID, stored)
		if err := s.blobs.Write(ctx, p, d.file.Content); err != nil {
			cleanup()
			return 0, Storage("Failed to upload documents", err)
		}
		written = append(written, p)
		rows = append(rows, models.ApplicationFile{
			ApplicationID: applicationID,
			Type:          d.bucket,
			OriginalName:  filepath.Base(d.file.OriginalName),
			StoredName:    stored,
			StoredPath:    p,
			MimeType:      d.mime,
			SizeBytes:     int64(len(d.file.Content)),
			UploadedAt:    now,
		})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return enqueueNotifications(tx, s.notices.DocumentsUploaded(&app, len(rows), batch)...)
	})
	if err != nil {
		cleanup()
		return 0, Storage("Failed to upload documents", err)
	}
	return len(rows), nil
}

// checkDocuments validates bucket names, per-bucket limits, size, extension and content type
// before anything is written.
func checkDocuments(files map[string][]UploadedFile) ([]pendingDocument, error) {
	buckets := make([]string, 0, len(files))
	for b := range files {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	var (
		out    []pendingDocument
		fields []FieldError
	)
	for _, bucket := range buckets {
		list := files[bucket]
		limit, ok := models.DocumentBucketLimits[bucket]
		if !ok {
			fields = append(fields, FieldError{Field: bucket, Error: "is not a recognised document type"})
			continue
		}
		if len(list) > limit {
			fields = append(fields, FieldError{Field: bucket, Error: fmt.Sprintf("accepts at most %d file(s)", limit)})
			continue
		}
		for _, f := range list {
			if len(f.Content) == 0 {
				fields = append(fields, FieldError{Field: bucket, Error: fmt.Sprintf("%s is empty", f.OriginalName)})
				continue
			}
			if len(f.Content) > MaxDocumentBytes {
				fields = append(fields, FieldError{Field: bucket, Error: fmt.Sprintf("%s is larger than 10MB", f.OriginalName)})
				continue
			}
			ext := strings.ToLower(filepath.Ext(f.OriginalName))
			if !allowedDocumentExts[ext] {
				fields = append(fields, FieldError{Field: bucket, Error: fmt.Sprintf("%s must be pdf, jpg, png, doc or docx", f.OriginalName)})
				continue
			}
			mt := mimetype.Detect(f.Content)
			if bucket == models.DocumentPhoto && !strings.HasPrefix(mt.String(), "image/") {
				fields = append(fields, FieldError{Field: bucket, Error: "photo must be an image"})
				continue
			}
			out = append(out, pendingDocument{bucket: bucket, file: f, ext: ext, mime: mt.String()})
		}
	}
	if len(fields) > 0 {
		return nil, Validation("invalid documents", fields...)
	}
	return out, nil
}

// List returns an application's documents oldest first.
func (s *DocumentService) List(ctx context.Context, applicationID uint) ([]models.ApplicationFile, error) {
	var rows []models.ApplicationFile
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("uploaded_at ASC, file_id ASC").
		Find(&rows).Error; err != nil {
		return nil, Storage("Failed to load documents", err)
	}
	return rows, nil
}

// Download returns the metadata and bytes of one document. A row whose blob is gone is
// reported as not found.
func (s *DocumentService) Download(ctx context.Context, fileID uint) (*models.ApplicationFile, []byte, error) {
	var f models.ApplicationFile
	if err := s.db.WithContext(ctx).First(&f, "file_id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFound("Document not found")
		}
		return nil, nil, Storage("Failed to load document", err)
	}
	if s.blobs == nil {
		return nil, nil, Storage("Failed to load document", errors.New("no blob store configured"))
	}
	data, err := s.blobs.Read(ctx, f.StoredPath)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, nil, NotFound("Document file is missing")
		}
		return nil, nil, Storage("Failed to load document", err)
	}
	return &f, data, nil
}
