package models

import "time"

// ApplicationStatusHistory tracks every status / flow_state change of an application.
type ApplicationStatusHistory struct {
	HistoryID     uint      `gorm:"primaryKey;column:history_id" json:"history_id"`
	ApplicationID uint      `gorm:"column:application_id;not null;index" json:"application_id"`
	OldStatus     string    `gorm:"column:old_status;size:30" json:"old_status"`
	NewStatus     string    `gorm:"column:new_status;size:30" json:"new_status"`
	OldFlowState  string    `gorm:"column:old_flow_state;size:30" json:"old_flow_state"`
	NewFlowState  string    `gorm:"column:new_flow_state;size:30" json:"new_flow_state"`
	Trigger       string    `gorm:"column:trigger_source;size:40" json:"trigger"`
	ChangedBy     *uint     `gorm:"column:changed_by" json:"changed_by,omitempty"`
	Notes         *string   `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table for ApplicationStatusHistory.
func (ApplicationStatusHistory) TableName() string {
	return "application_status_history"
}
