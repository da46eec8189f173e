package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	MailBroadcastStatusRunning = "running"
	MailBroadcastStatusSuccess = "success"
	MailBroadcastStatusPartial = "partial"
)

// MailBroadcast records one admin-triggered bulk mail run.
type MailBroadcast struct {
	ID            uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CorrelationID string         `json:"correlation_id" gorm:"size:36;not null;uniqueIndex"`
	Subject       string         `json:"subject" gorm:"size:255;not null"`
	Filter        datatypes.JSON `json:"filter"`
	TriggeredBy   *uint          `json:"triggered_by,omitempty"`
	Status        string         `json:"status" gorm:"size:20;not null;default:running"`
	Recipients    int            `json:"recipients" gorm:"not null;default:0"`
	Sent          int            `json:"sent" gorm:"not null;default:0"`
	Failed        int            `json:"failed" gorm:"not null;default:0"`
	StartedAt     time.Time      `json:"started_at" gorm:"autoCreateTime"`
	FinishedAt    *time.Time     `json:"finished_at"`
}

func (MailBroadcast) TableName() string { return "mail_broadcasts" }
