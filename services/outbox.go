package services

import (
	"context"
	"log"
	"strings"
	"time"

	"admissions-api/config"
	"admissions-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxBatchSize   = 50
	outboxMaxAttempts = 5
	outboxSendTimeout = 20 * time.Second
)

// enqueueNotifications writes intents into the outbox using tx, so they commit or roll back
// with the state change. Intents with an already-used dedupe key are skipped.
func enqueueNotifications(tx *gorm.DB, intents ...NotificationIntent) error {
	for _, in := range intents {
		recipient := strings.TrimSpace(in.Recipient)
		if recipient == "" {
			continue
		}
		row := models.NotificationOutbox{
			ApplicationID: in.ApplicationID,
			Event:         in.Event,
			Recipient:     recipient,
			Subject:       in.Subject,
			Body:          in.Body,
			Status:        models.OutboxStatusPending,
		}
		if in.DedupeKey != "" {
			key := in.DedupeKey + "|" + strings.ToLower(recipient)
			row.DedupeKey = &key
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// Dispatcher delivers pending outbox rows. One dispatcher runs per process.
type Dispatcher struct {
	db       *gorm.DB
	notifier Notifier
	interval time.Duration
	timeout  time.Duration
	kick     chan struct{}
}

func NewDispatcher(db *gorm.DB, notifier Notifier, interval time.Duration) *Dispatcher {
	if db == nil {
		db = config.DB
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		db:       db,
		notifier: notifier,
		interval: interval,
		timeout:  outboxSendTimeout,
		kick:     make(chan struct{}, 1),
	}
}

// Kick asks a running dispatcher to poll now instead of waiting for the next tick.
func (d *Dispatcher) Kick() {
	if d == nil {
		return
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Printf("notification dispatcher started (interval=%s)", d.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("notification dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.kick:
		}
		for {
			sent, failed, err := d.DispatchPending(ctx)
			if err != nil {
				log.Printf("notification dispatch failed: %v", err)
				break
			}
			if sent+failed < outboxBatchSize {
				break
			}
		}
	}
}

// DispatchPending sends one batch of pending rows and reports how many were sent and how
// many attempts failed.
func (d *Dispatcher) DispatchPending(ctx context.Context) (sent, failed int, err error) {
	var rows []models.NotificationOutbox
	if err := d.db.WithContext(ctx).
		Where("status = ?", models.OutboxStatusPending).
		Order("id ASC").
		Limit(outboxBatchSize).
		Find(&rows).Error; err != nil {
		return 0, 0, err
	}

	for i := range rows {
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		row := &rows[i]

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		sendErr := d.notifier.Send(sendCtx, row.Recipient, row.Subject, row.Body)
		cancel()

		now := time.Now()
		updates := map[string]interface{}{
			"attempts":   row.Attempts + 1,
			"updated_at": now,
		}
		if sendErr == nil {
			sent++
			updates["status"] = models.OutboxStatusSent
			updates["sent_at"] = now
			updates["last_error"] = nil
		} else {
			failed++
			msg := sendErr.Error()
			updates["last_error"] = msg
			if row.Attempts+1 >= outboxMaxAttempts {
				updates["status"] = models.OutboxStatusFailed
			}
			log.Printf("notification %d (%s) to %s failed (attempt %d): %v", row.ID, row.Event, row.Recipient, row.Attempts+1, sendErr)
		}

		if err := d.db.WithContext(persistentContext(ctx)).
			Model(&models.NotificationOutbox{}).
			Where("id = ?", row.ID).
			Updates(updates).Error; err != nil {
			return sent, failed, err
		}
	}
	return sent, failed, nil
}
