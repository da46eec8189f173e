package models

import "time"

// Document buckets accepted by the upload endpoint.
const (
	DocumentPhoto   = "photo"
	DocumentIDProof = "id_proof"
	DocumentDegree  = "degree"
	DocumentMarks   = "marks"
	DocumentOther   = "other"
)

// DocumentBucketLimits is the maximum number of files per bucket in a single upload.
var DocumentBucketLimits = map[string]int{
	DocumentPhoto:   1,
	DocumentIDProof: 1,
	DocumentDegree:  1,
	DocumentMarks:   1,
	DocumentOther:   5,
}

// ApplicationFile is the metadata of one uploaded supporting document.
type ApplicationFile struct {
	FileID        uint      `gorm:"primaryKey;column:file_id" json:"file_id"`
	ApplicationID uint      `gorm:"column:application_id;not null;index" json:"application_id"`
	Type          string    `gorm:"column:type;size:20;not null" json:"type"`
	OriginalName  string    `gorm:"column:original_name;size:255;not null" json:"original_name"`
	StoredName    string    `gorm:"column:stored_name;size:255;not null" json:"stored_name"`
	StoredPath    string    `gorm:"column:stored_path;size:500;not null" json:"-"`
	MimeType      string    `gorm:"column:mime;size:120" json:"mime"`
	SizeBytes     int64     `gorm:"column:size_bytes" json:"size_bytes"`
	UploadedAt    time.Time `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
}

func (ApplicationFile) TableName() string { return "application_files" }
