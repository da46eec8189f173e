package models

import "time"

const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// NotificationOutbox is a notification intent written in the same transaction as the
// state change that caused it. The dispatcher delivers it later.
type NotificationOutbox struct {
	ID            uint       `gorm:"primaryKey;column:id" json:"id"`
	DedupeKey     *string    `gorm:"column:dedupe_key;size:255;uniqueIndex" json:"dedupe_key,omitempty"`
	ApplicationID *uint      `gorm:"column:application_id;index" json:"application_id,omitempty"`
	Event         string     `gorm:"column:event;size:60;not null" json:"event"`
	Recipient     string     `gorm:"column:recipient;size:190;not null" json:"recipient"`
	Subject       string     `gorm:"column:subject;size:255;not null" json:"subject"`
	Body          string     `gorm:"column:body;type:text;not null" json:"-"`
	Status        string     `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	Attempts      int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
	SentAt        *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }
