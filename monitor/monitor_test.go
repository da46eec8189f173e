package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"admissions-api/config"
	"admissions-api/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "monitor.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.AutoMigrate(db))
	return db
}

func TestOutboxStats(t *testing.T) {
	db := openDB(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	lastErr := "smtp: 550 mailbox unavailable"

	rows := []models.NotificationOutbox{
		{Event: "draft_created", Recipient: "a@example.org", Subject: "s", Body: "b", Status: models.OutboxStatusPending, CreatedAt: base},
		{Event: "draft_created", Recipient: "b@example.org", Subject: "s", Body: "b", Status: models.OutboxStatusPending, CreatedAt: base.Add(time.Minute)},
		{Event: "payment_received", Recipient: "c@example.org", Subject: "s", Body: "b", Status: models.OutboxStatusSent, CreatedAt: base},
		{Event: "emi_reminder", Recipient: "d@example.org", Subject: "s", Body: "b", Status: models.OutboxStatusFailed, Attempts: 5, LastError: &lastErr, CreatedAt: base},
	}
	require.NoError(t, db.Create(&rows).Error)

	m := New(db, "")
	m.now = func() time.Time { return base.Add(90 * time.Second) }

	stats, err := m.OutboxStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Counts[models.OutboxStatusPending])
	assert.Equal(t, int64(1), stats.Counts[models.OutboxStatusSent])
	assert.Equal(t, int64(1), stats.Counts[models.OutboxStatusFailed])
	require.NotNil(t, stats.OldestPendingSeconds)
	assert.Equal(t, int64(90), *stats.OldestPendingSeconds)
	require.Len(t, stats.RecentFailures, 1)
	assert.Equal(t, "d@example.org", stats.RecentFailures[0].Recipient)
	assert.Equal(t, 5, stats.RecentFailures[0].Attempts)
	assert.Equal(t, lastErr, stats.RecentFailures[0].LastError)
}

func TestOutboxStatsEmpty(t *testing.T) {
	stats, err := New(openDB(t), "").OutboxStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Counts[models.OutboxStatusPending])
	assert.Nil(t, stats.OldestPendingSeconds)
	assert.Empty(t, stats.RecentFailures)
}

func TestTailLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admissions-api.log")
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	m := New(nil, path)

	lines, err := m.TailLog(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 8", "line 9", "line 10"}, lines)

	lines, err = m.TailLog(0)
	require.NoError(t, err)
	assert.Len(t, lines, 10)
	assert.Equal(t, "line 1", lines[0])

	missing, err := New(nil, filepath.Join(t.TempDir(), "nope.log")).TailLog(5)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMonitorRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "admissions-api.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))

	router := gin.New()
	RegisterRoutes(router.Group("/admin"), New(openDB(t), path))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/monitor/logs?lines=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Success bool     `json:"success"`
		Lines   []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.True(t, logs.Success)
	assert.Equal(t, []string{"two"}, logs.Lines)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/monitor/logs?lines=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/monitor/outbox", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":0`)
}
