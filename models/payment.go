package models

import "time"

const (
	PaymentTypeRegistration = "registration"
	PaymentTypeCourseFee    = "course_fee"

	PaymentStatusUploaded = "uploaded"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"

	EMIOptionFull = "full"
	EMIOptionEMI  = "emi"
)

// Fixed fee schedule in whole rupees.
const (
	RegistrationFee    = 1000
	CourseFeeTotal     = 30000
	CourseFeeEMIAmount = CourseFeeTotal / 2
)

// Payment is one append-only ledger row. UTR is unique across the whole table.
type Payment struct {
	PaymentID      uint       `gorm:"primaryKey;column:payment_id" json:"payment_id"`
	ApplicationID  uint       `gorm:"column:application_id;not null;index" json:"application_id"`
	PaymentType    string     `gorm:"column:payment_type;size:20;not null;index" json:"payment_type"`
	Amount         int64      `gorm:"column:amount;not null" json:"amount"`
	UTR            string     `gorm:"column:utr;size:64;not null;uniqueIndex" json:"utr"`
	Status         string     `gorm:"column:status;size:20;not null;default:uploaded;index" json:"status"`
	EMIOption      string     `gorm:"column:emi_option;size:10" json:"emi_option,omitempty"`
	InstallmentNo  int        `gorm:"column:installment_no;not null;default:0" json:"installment_no"`
	ScreenshotPath *string    `gorm:"column:screenshot_path;size:500" json:"screenshot_path,omitempty"`
	Remarks        *string    `gorm:"column:remarks;type:text" json:"remarks,omitempty"`
	VerifiedBy     *uint      `gorm:"column:verified_by" json:"verified_by,omitempty"`
	VerifiedAt     *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	UploadedAt     time.Time  `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Application is filled by admin listings; the FK itself is declared by Application.Payments.
	Application *Application `gorm:"-" json:"application,omitempty"`
}

func (Payment) TableName() string { return "application_payments" }

// IsOpen reports whether the payment still awaits an admin decision.
func (p *Payment) IsOpen() bool {
	return p.Status == PaymentStatusUploaded || p.Status == "pending"
}
