package monitor

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"admissions-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultTailLines = 200
	maxTailLines     = 2000
	recentFailures   = 20
)

// Monitor answers operator questions about the running process: how the
// notification outbox is draining and what the log file says.
type Monitor struct {
	db      *gorm.DB
	logPath string
	now     func() time.Time
}

func New(db *gorm.DB, logPath string) *Monitor {
	return &Monitor{db: db, logPath: logPath, now: time.Now}
}

type FailedDelivery struct {
	ID        uint      `json:"id"`
	Event     string    `json:"event"`
	Recipient string    `json:"recipient"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OutboxStats struct {
	Counts               map[string]int64 `json:"counts"`
	OldestPendingSeconds *int64           `json:"oldest_pending_seconds,omitempty"`
	RecentFailures       []FailedDelivery `json:"recent_failures"`
}

func (m *Monitor) OutboxStats(ctx context.Context) (*OutboxStats, error) {
	db := m.db.WithContext(ctx)

	var grouped []struct {
		Status string
		Total  int64
	}
	if err := db.Model(&models.NotificationOutbox{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&grouped).Error; err != nil {
		return nil, err
	}

	stats := &OutboxStats{
		Counts: map[string]int64{
			models.OutboxStatusPending: 0,
			models.OutboxStatusSent:    0,
			models.OutboxStatusFailed:  0,
		},
		RecentFailures: []FailedDelivery{},
	}
	for _, g := range grouped {
		stats.Counts[g.Status] = g.Total
	}

	var oldest []models.NotificationOutbox
	if err := db.Where("status = ?", models.OutboxStatusPending).
		Order("created_at ASC").
		Limit(1).
		Find(&oldest).Error; err != nil {
		return nil, err
	}
	if len(oldest) == 1 {
		age := int64(m.now().Sub(oldest[0].CreatedAt).Seconds())
		if age < 0 {
			age = 0
		}
		stats.OldestPendingSeconds = &age
	}

	var failed []models.NotificationOutbox
	if err := db.Where("status = ?", models.OutboxStatusFailed).
		Order("updated_at DESC").
		Limit(recentFailures).
		Find(&failed).Error; err != nil {
		return nil, err
	}
	for _, row := range failed {
		item := FailedDelivery{
			ID:        row.ID,
			Event:     row.Event,
			Recipient: row.Recipient,
			Attempts:  row.Attempts,
			UpdatedAt: row.UpdatedAt,
		}
		if row.LastError != nil {
			item.LastError = *row.LastError
		}
		stats.RecentFailures = append(stats.RecentFailures, item)
	}
	return stats, nil
}

// TailLog returns the last n lines of the log file. A missing file, or no file
// configured, gives an empty tail.
func (m *Monitor) TailLog(n int) ([]string, error) {
	if n <= 0 {
		n = defaultTailLines
	}
	if n > maxTailLines {
		n = maxTailLines
	}
	if m.logPath == "" {
		return []string{}, nil
	}

	f, err := os.Open(m.logPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	start := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[start] = scanner.Text()
		start = (start + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return append(ring[start:], ring[:start]...), nil
}

// RegisterRoutes mounts the monitor endpoints on an already authenticated group.
func RegisterRoutes(group *gin.RouterGroup, m *Monitor) {
	group.GET("/monitor/outbox", func(c *gin.Context) {
		stats, err := m.OutboxStats(c.Request.Context())
		if err != nil {
			log.Printf("monitor: outbox stats: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "outbox": stats})
	})

	group.GET("/monitor/logs", func(c *gin.Context) {
		n := 0
		if raw := c.Query("lines"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "lines must be a positive number"})
				return
			}
			n = v
		}
		lines, err := m.TailLog(n)
		if err != nil {
			log.Printf("monitor: tail log: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to read log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "lines": lines})
	})
}
