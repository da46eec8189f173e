package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"admissions-api/models"

	"gorm.io/gorm"
)

func TestRecordRegistrationPaymentSubmitsDraft(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")

	p := env.pay(t, app.ApplicationID, "utr001", models.PaymentTypeRegistration, "")
	if p.Amount != models.RegistrationFee {
		t.Fatalf("expected amount %d, got %d", models.RegistrationFee, p.Amount)
	}
	if p.UTR != "UTR001" {
		t.Fatalf("expected normalised UTR, got %q", p.UTR)
	}
	if p.Status != models.PaymentStatusUploaded {
		t.Fatalf("expected uploaded status, got %q", p.Status)
	}

	got := env.reload(t, app.ApplicationID)
	if got.Status != models.StatusSubmitted || got.FlowState != models.FlowSubmitted {
		t.Fatalf("expected submitted/submitted, got %s/%s", got.Status, got.FlowState)
	}
	if got.SubmittedAt == nil {
		t.Fatalf("expected submitted_at to be stamped")
	}
	if n := countRows(t, env.db, &models.NotificationOutbox{}, "event = ?", EventPaymentReceived); n != 2 {
		t.Fatalf("expected applicant and admin payment notices, got %d", n)
	}
}

func TestRecordPaymentUsesFeeSchedule(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")

	res, err := env.ledger.RecordPayment(context.Background(), RecordPaymentInput{
		ApplicationID: app.ApplicationID,
		UTR:           "UTR002",
		PaymentType:   models.PaymentTypeCourseFee,
		EMIOption:     "EMI",
		Amount:        99,
	})
	if err != nil {
		t.Fatalf("RecordPayment returned error: %v", err)
	}
	if res.Payment.Amount != models.CourseFeeEMIAmount {
		t.Fatalf("expected scheduled amount %d, got %d", models.CourseFeeEMIAmount, res.Payment.Amount)
	}
	if res.Payment.InstallmentNo != 1 {
		t.Fatalf("expected installment 1, got %d", res.Payment.InstallmentNo)
	}

	full := env.pay(t, env.createApp(t, "ravi@example.com").ApplicationID, "UTR003", models.PaymentTypeCourseFee, "")
	if full.Amount != models.CourseFeeTotal || full.EMIOption != models.EMIOptionFull || full.InstallmentNo != 0 {
		t.Fatalf("unexpected full payment row: %+v", full)
	}

	// a course-fee payment never moves the application status
	if got := env.reload(t, app.ApplicationID); got.Status != models.StatusPending {
		t.Fatalf("expected status to stay pending, got %s", got.Status)
	}
}

func TestRecordPaymentRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")

	tests := []struct {
		name string
		in   RecordPaymentInput
		kind ErrorKind
	}{
		{name: "short utr", in: RecordPaymentInput{ApplicationID: app.ApplicationID, UTR: "AB1", PaymentType: "registration"}, kind: KindValidation},
		{name: "bad type", in: RecordPaymentInput{ApplicationID: app.ApplicationID, UTR: "UTR123456", PaymentType: "donation"}, kind: KindValidation},
		{name: "bad emi", in: RecordPaymentInput{ApplicationID: app.ApplicationID, UTR: "UTR123456", PaymentType: "course_fee", EMIOption: "thrice"}, kind: KindValidation},
		{name: "missing application", in: RecordPaymentInput{ApplicationID: 999, UTR: "UTR123456", PaymentType: "registration"}, kind: KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.RecordPayment(context.Background(), tt.in)
			if !IsKind(err, tt.kind) {
				t.Fatalf("expected %s error, got %v", tt.kind, err)
			}
		})
	}
	if n := countRows(t, env.db, &models.Payment{}, ""); n != 0 {
		t.Fatalf("expected no payment rows, got %d", n)
	}
}

func TestDuplicateUTRIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")
	other := env.createApp(t, "ravi@example.com")

	first := env.pay(t, app.ApplicationID, "UTR004", models.PaymentTypeRegistration, "")

	attempts := []RecordPaymentInput{
		{ApplicationID: app.ApplicationID, UTR: "UTR004", PaymentType: models.PaymentTypeRegistration},
		{ApplicationID: app.ApplicationID, UTR: " utr 004 ", PaymentType: models.PaymentTypeRegistration},
		{ApplicationID: other.ApplicationID, UTR: "UTR004", PaymentType: models.PaymentTypeCourseFee},
	}
	for i, in := range attempts {
		res, err := env.ledger.RecordPayment(context.Background(), in)
		if err != nil {
			t.Fatalf("attempt %d returned error: %v", i, err)
		}
		if !res.Duplicate {
			t.Fatalf("attempt %d was not reported as duplicate", i)
		}
		if in.ApplicationID != app.ApplicationID {
			if res.Payment != nil {
				t.Fatalf("attempt %d exposed another application's payment: %+v", i, res.Payment)
			}
			continue
		}
		if res.Payment == nil || res.Payment.PaymentID != first.PaymentID {
			t.Fatalf("attempt %d returned %+v, want payment %d", i, res.Payment, first.PaymentID)
		}
	}

	if n := countRows(t, env.db, &models.Payment{}, "utr = ?", "UTR004"); n != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", n)
	}
	if got := env.reload(t, other.ApplicationID); got.Status != models.StatusPending {
		t.Fatalf("duplicate must not touch the other application, got status %s", got.Status)
	}
}

func TestConcurrentDuplicateUTRCreatesOneRow(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dupes   int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.ledger.RecordPayment(context.Background(), RecordPaymentInput{
				ApplicationID: app.ApplicationID,
				UTR:           "UTRRACE01",
				PaymentType:   models.PaymentTypeRegistration,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, err)
			case res.Duplicate:
				dupes++
			default:
				created++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if created != 1 || dupes != workers-1 {
		t.Fatalf("expected 1 created and %d duplicates, got %d and %d", workers-1, created, dupes)
	}
	if n := countRows(t, env.db, &models.Payment{}, "utr = ?", "UTRRACE01"); n != 1 {
		t.Fatalf("expected one ledger row, got %d", n)
	}
}

func TestConcurrentDuplicateUTRAcrossApplications(t *testing.T) {
	env := newTestEnv(t)
	apps := []*models.Application{
		env.createApp(t, "asha@example.com"),
		env.createApp(t, "ravi@example.com"),
	}

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(appID uint) {
			defer wg.Done()
			res, err := env.ledger.RecordPayment(context.Background(), RecordPaymentInput{
				ApplicationID: appID,
				UTR:           "UTRSHARED1",
				PaymentType:   models.PaymentTypeRegistration,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, err)
			case res.Payment != nil && res.Payment.ApplicationID != appID:
				errs = append(errs, fmt.Errorf("application %d received payment of application %d", appID, res.Payment.ApplicationID))
			case !res.Duplicate && res.Payment == nil:
				errs = append(errs, fmt.Errorf("application %d got an empty result", appID))
			}
		}(apps[i%len(apps)].ApplicationID)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected results: %v", errs)
	}
	if n := countRows(t, env.db, &models.Payment{}, "utr = ?", "UTRSHARED1"); n != 1 {
		t.Fatalf("expected one ledger row, got %d", n)
	}
}

func TestCourseFeeInstallmentsAndCap(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")
	ctx := context.Background()

	first := env.pay(t, app.ApplicationID, "UTREMI001", models.PaymentTypeCourseFee, models.EMIOptionEMI)
	second := env.pay(t, app.ApplicationID, "UTREMI002", models.PaymentTypeCourseFee, models.EMIOptionEMI)
	if first.InstallmentNo != 1 || second.InstallmentNo != 2 {
		t.Fatalf("expected installments 1 and 2, got %d and %d", first.InstallmentNo, second.InstallmentNo)
	}

	_, err := env.ledger.RecordPayment(ctx, RecordPaymentInput{
		ApplicationID: app.ApplicationID,
		UTR:           "UTREMI003",
		PaymentType:   models.PaymentTypeCourseFee,
		EMIOption:     models.EMIOptionEMI,
	})
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error for a third installment, got %v", err)
	}

	// a rejected installment frees its share of the cap
	if _, err := env.ledger.Reject(ctx, second.PaymentID, "wrong account", nil); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	retry := env.pay(t, app.ApplicationID, "UTREMI004", models.PaymentTypeCourseFee, models.EMIOptionEMI)
	if retry.InstallmentNo != 2 {
		t.Fatalf("expected retried installment 2, got %d", retry.InstallmentNo)
	}
}

func TestVerifyRegistrationPayment(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")
	p := env.pay(t, app.ApplicationID, "UTR001", models.PaymentTypeRegistration, "")

	admin := uint(3)
	verified, err := env.ledger.Verify(context.Background(), p.PaymentID, &admin)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if verified.Status != models.PaymentStatusVerified || verified.VerifiedAt == nil {
		t.Fatalf("unexpected verified payment: %+v", verified)
	}
	if verified.VerifiedBy == nil || *verified.VerifiedBy != admin {
		t.Fatalf("expected verified_by %d, got %v", admin, verified.VerifiedBy)
	}

	got := env.reload(t, app.ApplicationID)
	if got.FlowState != models.FlowPaymentVerified {
		t.Fatalf("expected flow_state payment_verified, got %s", got.FlowState)
	}
	if got.Status != models.StatusSubmitted {
		t.Fatalf("expected status to stay submitted, got %s", got.Status)
	}

	tl, err := env.apps.Timeline(context.Background(), got)
	if err != nil {
		t.Fatalf("Timeline returned error: %v", err)
	}
	if tl.Step2.Status != StepCompleted {
		t.Fatalf("expected step2 completed, got %s", tl.Step2.Status)
	}

	histBefore := countRows(t, env.db, &models.ApplicationStatusHistory{}, "application_id = ?", app.ApplicationID)
	if _, err := env.ledger.Verify(context.Background(), p.PaymentID, &admin); err != nil {
		t.Fatalf("second Verify returned error: %v", err)
	}
	if n := countRows(t, env.db, &models.ApplicationStatusHistory{}, "application_id = ?", app.ApplicationID); n != histBefore {
		t.Fatalf("repeat verify wrote history: before %d after %d", histBefore, n)
	}
	if n := countRows(t, env.db, &models.NotificationOutbox{}, "event = ?", EventPaymentVerified); n != 1 {
		t.Fatalf("expected one verified notice, got %d", n)
	}
}

func TestVerifyUnknownAndRejectedPayments(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.ledger.Verify(context.Background(), 404, nil); !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	app := env.createApp(t, "asha@example.com")
	p := env.pay(t, app.ApplicationID, "UTR001", models.PaymentTypeRegistration, "")
	if _, err := env.ledger.Reject(context.Background(), p.PaymentID, "", nil); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if _, err := env.ledger.Verify(context.Background(), p.PaymentID, nil); !IsKind(err, KindConflict) {
		t.Fatalf("expected conflict verifying a rejected payment, got %v", err)
	}
}

func TestVerifyRollsBackWhenInterrupted(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")
	p := env.pay(t, app.ApplicationID, "UTR001", models.PaymentTypeRegistration, "")
	histBefore := countRows(t, env.db, &models.ApplicationStatusHistory{}, "")

	env.ledger.afterVerifyUpdate = func(tx *gorm.DB, _ *models.Payment) error {
		return errors.New("simulated crash")
	}
	_, err := env.ledger.Verify(context.Background(), p.PaymentID, nil)
	if !IsKind(err, KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	var stored models.Payment
	if err := env.db.First(&stored, p.PaymentID).Error; err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	if stored.Status != models.PaymentStatusUploaded || stored.VerifiedAt != nil {
		t.Fatalf("payment change survived the rollback: %+v", stored)
	}
	if got := env.reload(t, app.ApplicationID); got.FlowState != models.FlowSubmitted {
		t.Fatalf("application change survived the rollback: flow_state %s", got.FlowState)
	}
	if n := countRows(t, env.db, &models.ApplicationStatusHistory{}, ""); n != histBefore {
		t.Fatalf("history rows changed: before %d after %d", histBefore, n)
	}
}

func TestEMIInstallmentsTotalVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	app := env.createApp(t, "asha@example.com")

	first := env.pay(t, app.ApplicationID, "UTR002", models.PaymentTypeCourseFee, models.EMIOptionEMI)
	second := env.pay(t, app.ApplicationID, "UTR003", models.PaymentTypeCourseFee, models.EMIOptionEMI)

	total, err := env.ledger.TotalVerified(ctx, app.ApplicationID, models.PaymentTypeCourseFee)
	if err != nil || total != 0 {
		t.Fatalf("expected 0 verified before review, got %d (%v)", total, err)
	}

	env.verify(t, first.PaymentID)
	env.verify(t, second.PaymentID)
	total, err = env.ledger.TotalVerified(ctx, app.ApplicationID, models.PaymentTypeCourseFee)
	if err != nil || total != models.CourseFeeTotal {
		t.Fatalf("expected %d verified, got %d (%v)", models.CourseFeeTotal, total, err)
	}

	tl, err := env.apps.Timeline(ctx, env.reload(t, app.ApplicationID))
	if err != nil {
		t.Fatalf("Timeline returned error: %v", err)
	}
	if tl.Step4.Status != StepCompleted {
		t.Fatalf("expected step4 completed, got %s", tl.Step4.Status)
	}

	if _, err := env.ledger.Reject(ctx, second.PaymentID, "chargeback", nil); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	total, err = env.ledger.TotalVerified(ctx, app.ApplicationID, models.PaymentTypeCourseFee)
	if err != nil || total != models.CourseFeeEMIAmount {
		t.Fatalf("expected rejected installment to drop out, got %d (%v)", total, err)
	}

	summary, err := env.ledger.Summary(ctx, app.ApplicationID)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if summary.CourseFeeVerified != models.CourseFeeEMIAmount || summary.CourseFeeOutstanding != models.CourseFeeEMIAmount || summary.CourseFeeComplete {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRejectVerifiedPaymentRejectsApplication(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")
	p := env.pay(t, app.ApplicationID, "UTR004", models.PaymentTypeRegistration, "")
	env.verify(t, p.PaymentID)

	rejected, err := env.ledger.Reject(context.Background(), p.PaymentID, "amount not received", nil)
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if rejected.Status != models.PaymentStatusRejected {
		t.Fatalf("expected rejected payment, got %s", rejected.Status)
	}
	if rejected.Remarks == nil || *rejected.Remarks != "amount not received" {
		t.Fatalf("expected remarks to be stored, got %v", rejected.Remarks)
	}

	got := env.reload(t, app.ApplicationID)
	if got.Status != models.StatusRejected || got.FlowState != models.FlowRejected {
		t.Fatalf("expected application rejected/rejected, got %s/%s", got.Status, got.FlowState)
	}

	// second reject is a no-op
	if _, err := env.ledger.Reject(context.Background(), p.PaymentID, "again", nil); err != nil {
		t.Fatalf("repeat Reject returned error: %v", err)
	}
	if n := countRows(t, env.db, &models.NotificationOutbox{}, "event = ?", EventPaymentRejected); n != 1 {
		t.Fatalf("expected one rejection notice, got %d", n)
	}
}

func TestRejectAfterAcceptanceMovesFlowToRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	app := env.createApp(t, "asha@example.com")
	p := env.pay(t, app.ApplicationID, "UTR005", models.PaymentTypeRegistration, "")
	env.verify(t, p.PaymentID)

	res, err := env.apps.Submit(ctx, app.ApplicationID)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected submit to accept the application")
	}
	if got := env.reload(t, app.ApplicationID); got.FlowState != models.FlowAccepted {
		t.Fatalf("expected flow_state accepted before reject, got %s", got.FlowState)
	}

	if _, err := env.ledger.Reject(ctx, p.PaymentID, "chargeback", nil); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}

	got := env.reload(t, app.ApplicationID)
	if got.Status != models.StatusRejected || got.FlowState != models.FlowRejected {
		t.Fatalf("expected rejected/rejected, got %s/%s", got.Status, got.FlowState)
	}
	if got.IsAccepted() {
		t.Fatalf("rejected application still reports accepted")
	}

	tl, err := env.apps.Timeline(ctx, got)
	if err != nil {
		t.Fatalf("Timeline returned error: %v", err)
	}
	if tl.Step3.Status == StepCompleted {
		t.Fatalf("review step must not be completed after rejection, got %+v", tl.Step3)
	}

	summary, err := env.ledger.Summary(ctx, app.ApplicationID)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if summary.RegistrationVerified {
		t.Fatalf("expected registration to be unverified after rejection: %+v", summary)
	}
}

func TestScreenshotStoredAndCleanedUpOnDuplicate(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")
	ctx := context.Background()

	in := RecordPaymentInput{
		ApplicationID: app.ApplicationID,
		UTR:           "UTRSHOT01",
		PaymentType:   models.PaymentTypeRegistration,
		Screenshot:    &UploadedFile{OriginalName: "receipt.PNG", Content: pngBytes},
	}
	res, err := env.ledger.RecordPayment(ctx, in)
	if err != nil {
		t.Fatalf("RecordPayment returned error: %v", err)
	}
	if res.Payment.ScreenshotPath == nil {
		t.Fatalf("expected screenshot path on payment")
	}
	paths := env.blobs.Paths()
	if len(paths) != 1 || paths[0] != *res.Payment.ScreenshotPath {
		t.Fatalf("unexpected blobs %v", paths)
	}
	wantPrefix := fmt.Sprintf("applications/%d/payments/", app.ApplicationID)
	if len(paths[0]) <= len(wantPrefix) || paths[0][:len(wantPrefix)] != wantPrefix {
		t.Fatalf("screenshot path %q is not under %q", paths[0], wantPrefix)
	}

	dup, err := env.ledger.RecordPayment(ctx, in)
	if err != nil || !dup.Duplicate {
		t.Fatalf("expected duplicate, got %+v (%v)", dup, err)
	}
	if got := env.blobs.Paths(); len(got) != 1 {
		t.Fatalf("duplicate left extra blobs: %v", got)
	}
}

func TestScreenshotMustBeImageOrPDF(t *testing.T) {
	env := newTestEnv(t)
	app := env.createApp(t, "asha@example.com")

	_, err := env.ledger.RecordPayment(context.Background(), RecordPaymentInput{
		ApplicationID: app.ApplicationID,
		UTR:           "UTRSHOT02",
		PaymentType:   models.PaymentTypeRegistration,
		Screenshot:    &UploadedFile{OriginalName: "receipt.png", Content: []byte("just some text")},
	})
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if env.blobs.Writes() != 0 {
		t.Fatalf("expected no blob writes, got %d", env.blobs.Writes())
	}
	if n := countRows(t, env.db, &models.Payment{}, ""); n != 0 {
		t.Fatalf("expected no payment rows, got %d", n)
	}
}

func TestListPaymentsFilters(t *testing.T) {
	env := newTestEnv(t)
	a := env.createApp(t, "asha@example.com")
	b := env.createApp(t, "ravi@example.com")
	pa := env.pay(t, a.ApplicationID, "UTRA0001", models.PaymentTypeRegistration, "")
	env.pay(t, b.ApplicationID, "UTRB0001", models.PaymentTypeRegistration, "")
	env.pay(t, b.ApplicationID, "UTRB0002", models.PaymentTypeCourseFee, models.EMIOptionFull)
	env.verify(t, pa.PaymentID)

	rows, total, err := env.ledger.List(context.Background(), PaymentFilter{Status: models.PaymentStatusUploaded})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 uploaded payments, got total=%d rows=%d", total, len(rows))
	}
	for _, r := range rows {
		if r.Application == nil || r.Application.ApplicationID != b.ApplicationID {
			t.Fatalf("expected attached application %d, got %+v", b.ApplicationID, r.Application)
		}
	}

	rows, total, err = env.ledger.List(context.Background(), PaymentFilter{ApplicationID: b.ApplicationID, PaymentType: models.PaymentTypeCourseFee})
	if err != nil || total != 1 || rows[0].UTR != "UTRB0002" {
		t.Fatalf("unexpected filtered list: total=%d rows=%+v err=%v", total, rows, err)
	}
}
