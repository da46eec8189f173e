package models

import (
	"time"

	"gorm.io/datatypes"
)

// Applicant-facing status values (applications.status).
const (
	StatusPending        = "pending"
	StatusPaymentPending = "payment_pending"
	StatusSubmitted      = "submitted"
	StatusReviewing      = "reviewing"
	StatusAccepted       = "accepted"
	StatusRejected       = "rejected"
)

// Internal flow markers (applications.flow_state).
const (
	FlowPaymentPending  = "payment_pending"
	FlowSubmitted       = "submitted"
	FlowPaymentVerified = "payment_verified"
	FlowReviewing       = "reviewing"
	FlowAccepted        = "accepted"
	FlowRejected        = "rejected"
)

// Qualification is one entry of the applicant's academic history.
type Qualification struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        int    `json:"year"`
	Score       string `json:"score,omitempty"`
}

// Application is one applicant's record. Payments and files reference it by ApplicationID.
type Application struct {
	ApplicationID uint `gorm:"primaryKey;column:application_id" json:"application_id"`

	FullName    string     `gorm:"column:full_name;size:150;not null" json:"full_name"`
	Email       string     `gorm:"column:email;size:190;not null;index" json:"email"`
	Mobile      string     `gorm:"column:mobile;size:20;not null;index" json:"mobile"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string     `gorm:"column:gender;size:20" json:"gender,omitempty"`

	AddressLine string `gorm:"column:address_line;size:255" json:"address_line,omitempty"`
	City        string `gorm:"column:city;size:100" json:"city,omitempty"`
	State       string `gorm:"column:state;size:100" json:"state,omitempty"`
	Pincode     string `gorm:"column:pincode;size:10" json:"pincode,omitempty"`

	HighestQualification string         `gorm:"column:highest_qualification;size:100" json:"highest_qualification,omitempty"`
	Institution          string         `gorm:"column:institution;size:200" json:"institution,omitempty"`
	GraduationYear       int            `gorm:"column:graduation_year" json:"graduation_year,omitempty"`
	Percentage           float64        `gorm:"column:percentage" json:"percentage,omitempty"`
	Qualifications       datatypes.JSON `gorm:"column:qualifications" json:"qualifications,omitempty"`

	EmploymentStatus string `gorm:"column:employment_status;size:30" json:"employment_status,omitempty"`
	Employer         string `gorm:"column:employer;size:200" json:"employer,omitempty"`
	Designation      string `gorm:"column:designation;size:120" json:"designation,omitempty"`
	ExperienceYears  int    `gorm:"column:experience_years" json:"experience_years,omitempty"`

	Status    string `gorm:"column:status;size:30;not null;default:pending;index" json:"status"`
	FlowState string `gorm:"column:flow_state;size:30;not null;default:payment_pending" json:"flow_state"`

	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	AcceptedAt  *time.Time `gorm:"column:accepted_at" json:"accepted_at,omitempty"`

	Payments []Payment         `gorm:"foreignKey:ApplicationID;references:ApplicationID" json:"payments,omitempty"`
	Files    []ApplicationFile `gorm:"foreignKey:ApplicationID;references:ApplicationID" json:"files,omitempty"`
}

func (Application) TableName() string { return "applications" }

// IsAccepted reports whether either field marks the application accepted. A rejected
// status always wins.
func (a *Application) IsAccepted() bool {
	if a.Status == StatusRejected {
		return false
	}
	return a.Status == StatusAccepted || a.FlowState == FlowAccepted
}
