package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"admissions-api/config"
	"admissions-api/models"
	"admissions-api/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxScreenshotBytes caps a payment screenshot.
const MaxScreenshotBytes = 5 << 20

var screenshotMIMEs = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// UploadedFile is one file received from a client.
type UploadedFile struct {
	OriginalName string
	Content      []byte
}

// RecordPaymentInput is an applicant's claim of having paid. Amount is informational only;
// the stored amount always comes from the fee schedule.
type RecordPaymentInput struct {
	ApplicationID uint   `validate:"required"`
	UTR           string `validate:"required,utr"`
	PaymentType   string `validate:"required,oneof=registration course_fee"`
	EMIOption     string `validate:"omitempty,oneof=full emi"`
	Amount        int64
	Screenshot    *UploadedFile
}

// PaymentResult is returned by RecordPayment. Duplicate is true when the UTR was already
// recorded; Payment is then the earlier row and nothing was written.
type PaymentResult struct {
	Payment   *models.Payment `json:"payment,omitempty"`
	Duplicate bool            `json:"duplicate"`
}

// PaymentFilter narrows List.
type PaymentFilter struct {
	ApplicationID uint
	PaymentType   string
	Status        string
	Page          int
	PageSize      int
}

// PaymentSummary aggregates an application's ledger.
type PaymentSummary struct {
	RegistrationStatus   string           `json:"registration_status"`
	RegistrationVerified bool             `json:"registration_verified"`
	CourseFeeVerified    int64            `json:"course_fee_verified"`
	CourseFeePending     int64            `json:"course_fee_pending"`
	CourseFeeOutstanding int64            `json:"course_fee_outstanding"`
	CourseFeeComplete    bool             `json:"course_fee_complete"`
	Payments             []models.Payment `json:"payments"`
}

// PaymentLedgerService owns the append-only payment ledger.
type PaymentLedgerService struct {
	db      *gorm.DB
	blobs   BlobStore
	notices *Notices

	// afterVerifyUpdate runs inside the verify transaction after the payment row changes.
	afterVerifyUpdate func(tx *gorm.DB, p *models.Payment) error
}

func NewPaymentLedgerService(db *gorm.DB, blobs BlobStore, notices *Notices) *PaymentLedgerService {
	if db == nil {
		db = config.DB
	}
	return &PaymentLedgerService{db: db, blobs: blobs, notices: notices}
}

// ScheduledAmount returns the amount the fee schedule requires and the normalised EMI option.
func ScheduledAmount(paymentType, emiOption string) (int64, string, error) {
	switch paymentType {
	case models.PaymentTypeRegistration:
		return models.RegistrationFee, "", nil
	case models.PaymentTypeCourseFee:
		switch emiOption {
		case models.EMIOptionEMI:
			return models.CourseFeeEMIAmount, models.EMIOptionEMI, nil
		case "", models.EMIOptionFull:
			return models.CourseFeeTotal, models.EMIOptionFull, nil
		}
		return 0, "", Validation("invalid input", FieldError{Field: "emi_option", Error: "must be one of: full emi"})
	}
	return 0, "", Validation("invalid input", FieldError{Field: "payment_type", Error: "must be one of: registration course_fee"})
}

func (s *PaymentLedgerService) findByUTR(ctx context.Context, utr string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("utr = ?", utr).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordPayment stores a payment claim. A UTR seen before yields the earlier row with
// Duplicate set, even when two requests race on the unique index.
func (s *PaymentLedgerService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	in.UTR = utils.NormalizeUTR(in.UTR)
	in.PaymentType = strings.ToLower(strings.TrimSpace(in.PaymentType))
	in.EMIOption = strings.ToLower(strings.TrimSpace(in.EMIOption))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	amount, emi, err := ScheduledAmount(in.PaymentType, in.EMIOption)
	if err != nil {
		return nil, err
	}
	if in.Amount != 0 && in.Amount != amount {
		log.Printf("payment utr=%s: client amount %d ignored, schedule requires %d", in.UTR, in.Amount, amount)
	}

	existing, err := s.findByUTR(ctx, in.UTR)
	if err != nil {
		return nil, Storage("Failed to record payment", err)
	}
	if existing != nil {
		return duplicateResult(existing, in.ApplicationID), nil
	}

	var app models.Application
	if err := s.db.WithContext(ctx).First(&app, "application_id = ?", in.ApplicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Application not found")
		}
		return nil, Storage("Failed to record payment", err)
	}

	var screenshotPath *string
	if in.Screenshot != nil && len(in.Screenshot.Content) > 0 {
		p, err := s.storeScreenshot(ctx, app.ApplicationID, in.Screenshot)
		if err != nil {
			return nil, err
		}
		screenshotPath = &p
	}
	committed := false
	defer func() {
		if !committed && screenshotPath != nil {
			if err := s.blobs.Delete(persistentContext(ctx), *screenshotPath); err != nil {
				log.Printf("payment utr=%s: failed to remove screenshot %s: %v", in.UTR, *screenshotPath, err)
			}
		}
	}()

	var payment models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := loadApplicationForUpdate(tx, app.ApplicationID)
		if err != nil {
			return err
		}

		installment := 0
		if in.PaymentType == models.PaymentTypeCourseFee {
			claimed, err := sumCourseFee(tx, locked.ApplicationID, models.PaymentStatusUploaded, models.PaymentStatusVerified)
			if err != nil {
				return err
			}
			if claimed+amount > models.CourseFeeTotal {
				return Validation(fmt.Sprintf("Course fee payments already cover %s of %s",
					utils.FormatRupees(claimed), utils.FormatRupees(models.CourseFeeTotal)))
			}
			if emi == models.EMIOptionEMI {
				installment = int(claimed/models.CourseFeeEMIAmount) + 1
			}
		}

		now := nowFunc()
		payment = models.Payment{
			ApplicationID:  locked.ApplicationID,
			PaymentType:    in.PaymentType,
			Amount:         amount,
			UTR:            in.UTR,
			Status:         models.PaymentStatusUploaded,
			EMIOption:      emi,
			InstallmentNo:  installment,
			ScreenshotPath: screenshotPath,
			UploadedAt:     now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		if in.PaymentType == models.PaymentTypeRegistration &&
			utils.StatusIn(locked.Status, models.StatusPending, models.StatusPaymentPending) {
			if _, err := transition(tx, locked, models.StatusSubmitted, models.FlowSubmitted, TriggerPayment, nil, "",
				map[string]interface{}{"submitted_at": now}); err != nil {
				return err
			}
		}

		return enqueueNotifications(tx, s.notices.PaymentReceived(locked, &payment)...)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			earlier, ferr := s.findByUTR(persistentContext(ctx), in.UTR)
			if ferr != nil || earlier == nil {
				return nil, Storage("Failed to record payment", err)
			}
			return duplicateResult(earlier, in.ApplicationID), nil
		}
		return nil, storageErr("Failed to record payment", err)
	}

	committed = true
	return &PaymentResult{Payment: &payment}, nil
}

// duplicateResult reports a reused UTR. The earlier row is only returned to its own application.
func duplicateResult(earlier *models.Payment, applicationID uint) *PaymentResult {
	if earlier.ApplicationID != applicationID {
		return &PaymentResult{Duplicate: true}
	}
	return &PaymentResult{Payment: earlier, Duplicate: true}
}

func (s *PaymentLedgerService) storeScreenshot(ctx context.Context, applicationID uint, f *UploadedFile) (string, error) {
	if len(f.Content) > MaxScreenshotBytes {
		return "", Validation("invalid input", FieldError{Field: "screenshot", Error: "must be at most 5MB"})
	}
	mt := mimetype.Detect(f.Content)
	if !mimetype.EqualsAny(mt.String(), screenshotMIMEs...) {
		return "", Validation("invalid input", FieldError{Field: "screenshot", Error: "must be an image or PDF"})
	}
	if s.blobs == nil {
		return "", Storage("Failed to store payment screenshot", errors.New("no blob store configured"))
	}

	ext := strings.ToLower(filepath.Ext(f.OriginalName))
	if ext == "" {
		ext = mt.Extension()
	}
	name := fmt.Sprintf("%d_%s%s", nowFunc().UnixNano(), uuid.NewString()[:8], ext)
	p := fmt.Sprintf("applications/%d/payments/%s", applicationID, name)
	if err := s.blobs.Write(ctx, p, f.Content); err != nil {
		return "", Storage("Failed to store payment screenshot", err)
	}
	return p, nil
}

// Verify marks an uploaded payment verified. Verifying a verified payment is a no-op;
// verifying a rejected one is a conflict.
func (s *PaymentLedgerService) Verify(ctx context.Context, paymentID uint, actor *uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&payment, "payment_id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("Payment not found")
			}
			return err
		}
		switch payment.Status {
		case models.PaymentStatusVerified:
			return nil
		case models.PaymentStatusRejected:
			return Conflict("Rejected payments cannot be verified")
		}

		now := nowFunc()
		if err := tx.Model(&models.Payment{}).
			Where("payment_id = ?", payment.PaymentID).
			Updates(map[string]interface{}{
				"status":      models.PaymentStatusVerified,
				"verified_at": now,
				"verified_by": actor,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}
		payment.Status = models.PaymentStatusVerified
		payment.VerifiedAt = &now
		payment.VerifiedBy = actor
		payment.UpdatedAt = now

		if s.afterVerifyUpdate != nil {
			if err := s.afterVerifyUpdate(tx, &payment); err != nil {
				return err
			}
		}

		app, err := loadApplicationForUpdate(tx, payment.ApplicationID)
		if err != nil {
			return err
		}
		if payment.PaymentType == models.PaymentTypeRegistration &&
			utils.StatusIn(app.FlowState, models.FlowPaymentPending, models.FlowSubmitted) {
			if _, err := transition(tx, app, app.Status, models.FlowPaymentVerified, TriggerVerify, actor, "", nil); err != nil {
				return err
			}
		}

		var verified int64
		if payment.PaymentType == models.PaymentTypeCourseFee {
			if verified, err = sumCourseFee(tx, app.ApplicationID, models.PaymentStatusVerified); err != nil {
				return err
			}
		}
		return enqueueNotifications(tx, s.notices.PaymentVerified(app, &payment, verified)...)
	})
	if err != nil {
		return nil, storageErr("Failed to verify payment", err)
	}
	return &payment, nil
}

// Reject marks a payment rejected and rejects the whole application.
func (s *PaymentLedgerService) Reject(ctx context.Context, paymentID uint, reason string, actor *uint) (*models.Payment, error) {
	reason = utils.SanitizeInput(reason)
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&payment, "payment_id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("Payment not found")
			}
			return err
		}
		if payment.Status == models.PaymentStatusRejected {
			return nil
		}

		now := nowFunc()
		updates := map[string]interface{}{
			"status":      models.PaymentStatusRejected,
			"verified_by": actor,
			"updated_at":  now,
		}
		if reason != "" {
			updates["remarks"] = reason
			payment.Remarks = &reason
		}
		if err := tx.Model(&models.Payment{}).Where("payment_id = ?", payment.PaymentID).Updates(updates).Error; err != nil {
			return err
		}
		payment.Status = models.PaymentStatusRejected
		payment.VerifiedBy = actor
		payment.UpdatedAt = now

		app, err := loadApplicationForUpdate(tx, payment.ApplicationID)
		if err != nil {
			return err
		}
		if _, err := transition(tx, app, models.StatusRejected, models.FlowRejected, TriggerReject, actor, reason, nil); err != nil {
			return err
		}
		return enqueueNotifications(tx, s.notices.PaymentRejected(app, &payment, reason)...)
	})
	if err != nil {
		return nil, storageErr("Failed to reject payment", err)
	}
	return &payment, nil
}

// TotalVerified sums verified payments of one type.
func (s *PaymentLedgerService) TotalVerified(ctx context.Context, applicationID uint, paymentType string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("application_id = ? AND payment_type = ? AND status = ?", applicationID, paymentType, models.PaymentStatusVerified).
		Scan(&total).Error
	if err != nil {
		return 0, Storage("Failed to load payments", err)
	}
	return total, nil
}

func (s *PaymentLedgerService) ListByApplication(ctx context.Context, applicationID uint) ([]models.Payment, error) {
	var rows []models.Payment
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("uploaded_at ASC, payment_id ASC").
		Find(&rows).Error; err != nil {
		return nil, Storage("Failed to load payments", err)
	}
	return rows, nil
}

func (s *PaymentLedgerService) Summary(ctx context.Context, applicationID uint) (*PaymentSummary, error) {
	rows, err := s.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	sum := &PaymentSummary{Payments: rows}
	for i := range rows {
		p := rows[i]
		switch p.PaymentType {
		case models.PaymentTypeRegistration:
			// latest attempt wins; verified is sticky
			if !sum.RegistrationVerified {
				sum.RegistrationStatus = p.Status
			}
			if p.Status == models.PaymentStatusVerified {
				sum.RegistrationVerified = true
				sum.RegistrationStatus = p.Status
			}
		case models.PaymentTypeCourseFee:
			if p.Status == models.PaymentStatusVerified {
				sum.CourseFeeVerified += p.Amount
			} else if p.IsOpen() {
				sum.CourseFeePending += p.Amount
			}
		}
	}
	sum.CourseFeeOutstanding = models.CourseFeeTotal - sum.CourseFeeVerified
	if sum.CourseFeeOutstanding < 0 {
		sum.CourseFeeOutstanding = 0
	}
	sum.CourseFeeComplete = sum.CourseFeeVerified >= models.CourseFeeTotal && sum.CourseFeePending == 0
	return sum, nil
}

// List returns a page of payments, newest first, with the owning application attached.
func (s *PaymentLedgerService) List(ctx context.Context, f PaymentFilter) ([]models.Payment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if f.ApplicationID != 0 {
		q = q.Where("application_id = ?", f.ApplicationID)
	}
	if f.PaymentType != "" {
		q = q.Where("payment_type = ?", f.PaymentType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, Storage("Failed to load payments", err)
	}

	page, size := normalizePage(f.Page, f.PageSize)
	var rows []models.Payment
	if err := q.Order("uploaded_at DESC, payment_id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error; err != nil {
		return nil, 0, Storage("Failed to load payments", err)
	}
	if err := s.attachApplications(ctx, rows); err != nil {
		return nil, 0, Storage("Failed to load payments", err)
	}
	return rows, total, nil
}

func (s *PaymentLedgerService) attachApplications(ctx context.Context, rows []models.Payment) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(rows))
	seen := make(map[uint]bool, len(rows))
	for _, r := range rows {
		if !seen[r.ApplicationID] {
			seen[r.ApplicationID] = true
			ids = append(ids, r.ApplicationID)
		}
	}

	var apps []models.Application
	if err := s.db.WithContext(ctx).Where("application_id IN ?", ids).Find(&apps).Error; err != nil {
		return err
	}
	byID := make(map[uint]*models.Application, len(apps))
	for i := range apps {
		byID[apps[i].ApplicationID] = &apps[i]
	}
	for i := range rows {
		rows[i].Application = byID[rows[i].ApplicationID]
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
