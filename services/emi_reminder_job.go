package services

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"admissions-api/config"
	"admissions-api/models"

	"gorm.io/gorm"
)

var ErrReminderSweepRunning = errors.New("emi reminder sweep already running")

type EMIReminderSummary struct {
	Candidates int `json:"candidates"`
	Enqueued   int `json:"enqueued"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// EMIReminderJob reminds applicants whose first course-fee installment is verified but who
// have not uploaded the second one.
type EMIReminderJob struct {
	db         *gorm.DB
	notices    *Notices
	dispatcher *Dispatcher
	running    atomic.Bool
}

func NewEMIReminderJob(db *gorm.DB, notices *Notices, dispatcher *Dispatcher) *EMIReminderJob {
	if db == nil {
		db = config.DB
	}
	return &EMIReminderJob{db: db, notices: notices, dispatcher: dispatcher}
}

type emiCandidate struct {
	ApplicationID uint
	Verified      int64
}

// Run performs one sweep. A second call while one is in flight returns ErrReminderSweepRunning.
// Reminders are keyed per application and day, so re-running the same day sends nothing new.
func (j *EMIReminderJob) Run(ctx context.Context) (*EMIReminderSummary, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrReminderSweepRunning
	}
	defer j.running.Store(false)

	var candidates []emiCandidate
	err := j.db.WithContext(ctx).Model(&models.Payment{}).
		Select("application_id, SUM(CASE WHEN status = ? THEN amount ELSE 0 END) AS verified", models.PaymentStatusVerified).
		Where("payment_type = ? AND emi_option = ?", models.PaymentTypeCourseFee, models.EMIOptionEMI).
		Group("application_id").
		Having("SUM(CASE WHEN status = ? THEN amount ELSE 0 END) > 0", models.PaymentStatusVerified).
		Having("SUM(CASE WHEN status <> ? THEN amount ELSE 0 END) < ?", models.PaymentStatusRejected, models.CourseFeeTotal).
		Order("application_id ASC").
		Scan(&candidates).Error
	if err != nil {
		return nil, Storage("Failed to load EMI reminder candidates", err)
	}

	summary := &EMIReminderSummary{Candidates: len(candidates)}
	day := nowFunc().Format("2006-01-02")
	for _, c := range candidates {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if err := j.remind(ctx, c, day); err != nil {
			if IsKind(err, KindPrecondition) {
				summary.Skipped++
				continue
			}
			summary.Failed++
			log.Printf("emi reminder for application %d failed: %v", c.ApplicationID, err)
			continue
		}
		summary.Enqueued++
	}

	if summary.Enqueued > 0 {
		j.dispatcher.Kick()
	}
	log.Printf("emi reminder sweep: candidates=%d enqueued=%d skipped=%d failed=%d",
		summary.Candidates, summary.Enqueued, summary.Skipped, summary.Failed)
	return summary, nil
}

func (j *EMIReminderJob) remind(ctx context.Context, c emiCandidate, day string) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.First(&app, "application_id = ?", c.ApplicationID).Error; err != nil {
			return err
		}
		if app.Status == models.StatusRejected {
			return Precondition("application rejected")
		}
		return enqueueNotifications(tx, j.notices.EMIReminder(&app, c.Verified, day)...)
	})
}
