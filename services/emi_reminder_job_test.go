package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"admissions-api/models"
)

func withFixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

// emiApp creates an application whose first EMI installment is verified.
func (e *testEnv) emiApp(t *testing.T, email, utr string) *models.Application {
	t.Helper()
	app := e.createApp(t, email)
	p := e.pay(t, app.ApplicationID, utr, models.PaymentTypeCourseFee, models.EMIOptionEMI)
	e.verify(t, p.PaymentID)
	return app
}

func TestEMIReminderSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	withFixedNow(t, time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC))

	due := env.emiApp(t, "asha@example.com", "UTR101")

	// second installment already uploaded: not a candidate
	claimed := env.emiApp(t, "ravi@example.com", "UTR201")
	env.pay(t, claimed.ApplicationID, "UTR202", models.PaymentTypeCourseFee, models.EMIOptionEMI)

	// nothing verified yet: not a candidate
	unverified := env.createApp(t, "meena@example.com")
	env.pay(t, unverified.ApplicationID, "UTR301", models.PaymentTypeCourseFee, models.EMIOptionEMI)

	// rejected application: skipped
	rejected := env.emiApp(t, "john@example.com", "UTR401")
	if _, err := env.apps.UpdateStatus(ctx, rejected.ApplicationID, "rejected", nil, ""); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	job := NewEMIReminderJob(env.db, env.notices, nil)
	summary, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Candidates != 2 || summary.Enqueued != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var rows []models.NotificationOutbox
	if err := env.db.Where("event = ?", EventEMIReminder).Find(&rows).Error; err != nil {
		t.Fatalf("load reminders: %v", err)
	}
	if len(rows) != 1 || rows[0].ApplicationID == nil || *rows[0].ApplicationID != due.ApplicationID {
		t.Fatalf("expected one reminder for application %d, got %+v", due.ApplicationID, rows)
	}

	// same day: nothing new
	if _, err := job.Run(ctx); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if n := countRows(t, env.db, &models.NotificationOutbox{}, "event = ?", EventEMIReminder); n != 1 {
		t.Fatalf("expected the same-day rerun to add nothing, got %d reminders", n)
	}

	// next day: one more reminder
	withFixedNow(t, time.Date(2025, time.July, 2, 9, 0, 0, 0, time.UTC))
	if _, err := job.Run(ctx); err != nil {
		t.Fatalf("next-day Run returned error: %v", err)
	}
	if n := countRows(t, env.db, &models.NotificationOutbox{}, "event = ?", EventEMIReminder); n != 2 {
		t.Fatalf("expected a new reminder the next day, got %d reminders", n)
	}
}

func TestEMIReminderSweepRejectsOverlap(t *testing.T) {
	env := newTestEnv(t)
	job := NewEMIReminderJob(env.db, env.notices, nil)
	job.running.Store(true)

	if _, err := job.Run(context.Background()); !errors.Is(err, ErrReminderSweepRunning) {
		t.Fatalf("expected ErrReminderSweepRunning, got %v", err)
	}
}
