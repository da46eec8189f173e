package services

import (
	"errors"
	"time"

	"admissions-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Trigger names stored on history rows.
const (
	TriggerDraft       = "draft"
	TriggerPayment     = "payment_upload"
	TriggerVerify      = "payment_verify"
	TriggerReject      = "payment_reject"
	TriggerSubmit      = "submit"
	TriggerAdminStatus = "admin_status"
)

var nowFunc = time.Now

// lockForUpdate adds SELECT ... FOR UPDATE. The sqlite dialect drops the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func loadApplicationForUpdate(tx *gorm.DB, id uint) (*models.Application, error) {
	var app models.Application
	if err := lockForUpdate(tx).First(&app, "application_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Application not found")
		}
		return nil, err
	}
	return &app, nil
}

// transition moves app to status/flow and writes one history row. It returns the history
// row, or nil when nothing changed.
func transition(tx *gorm.DB, app *models.Application, status, flow, trigger string, actor *uint, notes string, extra map[string]interface{}) (*models.ApplicationStatusHistory, error) {
	if app.Status == status && app.FlowState == flow && len(extra) == 0 {
		return nil, nil
	}
	now := nowFunc()
	updates := map[string]interface{}{
		"status":     status,
		"flow_state": flow,
		"updated_at": now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(&models.Application{}).
		Where("application_id = ?", app.ApplicationID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	hist := &models.ApplicationStatusHistory{
		ApplicationID: app.ApplicationID,
		OldStatus:     app.Status,
		NewStatus:     status,
		OldFlowState:  app.FlowState,
		NewFlowState:  flow,
		Trigger:       trigger,
		ChangedBy:     actor,
		CreatedAt:     now,
	}
	if notes != "" {
		n := notes
		hist.Notes = &n
	}
	if err := tx.Create(hist).Error; err != nil {
		return nil, err
	}

	app.Status = status
	app.FlowState = flow
	app.UpdatedAt = now
	if v, ok := extra["submitted_at"].(time.Time); ok {
		app.SubmittedAt = &v
	}
	if v, ok := extra["accepted_at"].(time.Time); ok {
		app.AcceptedAt = &v
	}
	return hist, nil
}

func hasVerifiedRegistration(tx *gorm.DB, applicationID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Payment{}).
		Where("application_id = ? AND payment_type = ? AND status = ?",
			applicationID, models.PaymentTypeRegistration, models.PaymentStatusVerified).
		Count(&count).Error
	return count > 0, err
}

func sumCourseFee(tx *gorm.DB, applicationID uint, statuses ...string) (int64, error) {
	var total int64
	q := tx.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("application_id = ? AND payment_type = ?", applicationID, models.PaymentTypeCourseFee)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Scan(&total).Error
	return total, err
}

// storageErr passes service errors through and wraps anything else as a storage failure.
func storageErr(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return Storage(message, err)
}
