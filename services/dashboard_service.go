package services

import (
	"context"

	"admissions-api/config"
	"admissions-api/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalApplications     int64            `json:"total_applications"`
	ByStatus              map[string]int64 `json:"by_status"`
	PendingVerifications  int64            `json:"pending_verifications"`
	RegistrationCollected int64            `json:"registration_collected"`
	CourseFeeCollected    int64            `json:"course_fee_collected"`
	CourseFeeCompleted    int64            `json:"course_fee_completed"`
	DocumentsUploaded     int64            `json:"documents_uploaded"`
	PendingNotifications  int64            `json:"pending_notifications"`
}

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	if db == nil {
		db = config.DB
	}
	return &DashboardService{db: db}
}

func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{ByStatus: map[string]int64{}}

	var byStatus []struct {
		Status string
		Total  int64
	}
	if err := db.Model(&models.Application{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, Storage("Failed to load dashboard", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Total
		stats.TotalApplications += row.Total
	}

	if err := db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusUploaded).
		Count(&stats.PendingVerifications).Error; err != nil {
		return nil, Storage("Failed to load dashboard", err)
	}

	var totals []struct {
		PaymentType string
		Total       int64
	}
	if err := db.Model(&models.Payment{}).
		Select("payment_type, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", models.PaymentStatusVerified).
		Group("payment_type").
		Scan(&totals).Error; err != nil {
		return nil, Storage("Failed to load dashboard", err)
	}
	for _, row := range totals {
		switch row.PaymentType {
		case models.PaymentTypeRegistration:
			stats.RegistrationCollected = row.Total
		case models.PaymentTypeCourseFee:
			stats.CourseFeeCollected = row.Total
		}
	}

	completed := db.Model(&models.Payment{}).
		Select("application_id").
		Where("payment_type = ? AND status = ?", models.PaymentTypeCourseFee, models.PaymentStatusVerified).
		Group("application_id").
		Having("SUM(amount) >= ?", models.CourseFeeTotal)
	if err := s.db.WithContext(ctx).Table("(?) AS completed", completed).
		Count(&stats.CourseFeeCompleted).Error; err != nil {
		return nil, Storage("Failed to load dashboard", err)
	}

	if err := db.Model(&models.ApplicationFile{}).Count(&stats.DocumentsUploaded).Error; err != nil {
		return nil, Storage("Failed to load dashboard", err)
	}
	if err := db.Model(&models.NotificationOutbox{}).
		Where("status = ?", models.OutboxStatusPending).
		Count(&stats.PendingNotifications).Error; err != nil {
		return nil, Storage("Failed to load dashboard", err)
	}
	return stats, nil
}
