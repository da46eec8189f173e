package services

import (
	"context"
	"path/filepath"
	"testing"

	"admissions-api/config"
	"admissions-api/models"
	"admissions-api/utils"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAdminEmail = "admissions@example.org"

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")
)

type testEnv struct {
	db      *gorm.DB
	blobs   *MemoryBlobStore
	codec   *utils.IDCodec
	notices *Notices
	ledger  *PaymentLedgerService
	apps    *ApplicationService
	docs    *DocumentService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admissions.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	codec, err := utils.NewIDCodec("PGCERT", 2025, "test-secret")
	if err != nil {
		t.Fatalf("NewIDCodec returned error: %v", err)
	}
	blobs := NewMemoryBlobStore()
	notices := NewNotices(codec, testAdminEmail, "https://apply.example.org")
	ledger := NewPaymentLedgerService(db, blobs, notices)
	return &testEnv{
		db:      db,
		blobs:   blobs,
		codec:   codec,
		notices: notices,
		ledger:  ledger,
		apps:    NewApplicationService(db, codec, notices, ledger),
		docs:    NewDocumentService(db, blobs, notices),
	}
}

func validDraft(email string) DraftInput {
	return DraftInput{
		FullName:             "Asha Rao",
		Email:                email,
		Mobile:               "9876543210",
		HighestQualification: "B.Com",
		Percentage:           72.5,
	}
}

func (e *testEnv) createApp(t *testing.T, email string) *models.Application {
	t.Helper()
	app, err := e.apps.CreateDraft(context.Background(), validDraft(email))
	if err != nil {
		t.Fatalf("CreateDraft returned error: %v", err)
	}
	return app
}

func (e *testEnv) pay(t *testing.T, appID uint, utr, paymentType, emi string) *models.Payment {
	t.Helper()
	res, err := e.ledger.RecordPayment(context.Background(), RecordPaymentInput{
		ApplicationID: appID,
		UTR:           utr,
		PaymentType:   paymentType,
		EMIOption:     emi,
	})
	if err != nil {
		t.Fatalf("RecordPayment(%s) returned error: %v", utr, err)
	}
	if res.Duplicate {
		t.Fatalf("RecordPayment(%s) unexpectedly reported a duplicate", utr)
	}
	return res.Payment
}

func (e *testEnv) verify(t *testing.T, paymentID uint) *models.Payment {
	t.Helper()
	p, err := e.ledger.Verify(context.Background(), paymentID, nil)
	if err != nil {
		t.Fatalf("Verify(%d) returned error: %v", paymentID, err)
	}
	return p
}

func (e *testEnv) reload(t *testing.T, appID uint) *models.Application {
	t.Helper()
	app, err := e.apps.Get(context.Background(), appID)
	if err != nil {
		t.Fatalf("Get(%d) returned error: %v", appID, err)
	}
	return app
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}
