package services

import (
	"context"
	"testing"

	"admissions-api/models"
)

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createApp(t, "asha@example.com")
	reg := env.pay(t, a.ApplicationID, "UTR001", models.PaymentTypeRegistration, "")
	env.verify(t, reg.PaymentID)
	full := env.pay(t, a.ApplicationID, "UTR002", models.PaymentTypeCourseFee, models.EMIOptionFull)
	env.verify(t, full.PaymentID)

	b := env.createApp(t, "ravi@example.com")
	env.pay(t, b.ApplicationID, "UTR003", models.PaymentTypeRegistration, "")

	stats, err := NewDashboardService(env.db).Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalApplications != 2 || stats.ByStatus[models.StatusSubmitted] != 2 {
		t.Fatalf("unexpected application counts: %+v", stats)
	}
	if stats.PendingVerifications != 1 {
		t.Fatalf("expected one pending verification, got %d", stats.PendingVerifications)
	}
	if stats.RegistrationCollected != models.RegistrationFee || stats.CourseFeeCollected != models.CourseFeeTotal {
		t.Fatalf("unexpected collections: %+v", stats)
	}
	if stats.CourseFeeCompleted != 1 {
		t.Fatalf("expected one completed course fee, got %d", stats.CourseFeeCompleted)
	}
	if stats.PendingNotifications == 0 {
		t.Fatalf("expected queued notifications")
	}
}
