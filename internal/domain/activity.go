package domain

import (
	"time"
)

type ActivityEvent string

const (
	ActivityCreate      ActivityEvent = "Create"
	ActivityBlock       ActivityEvent = "Block"
	ActivityUnblock     ActivityEvent = "Unblock"
	ActivityKeyRotation ActivityEvent = "KeyRotation"
)

const (
	TargetSystemLocal = "Local"
	TargetSystemOdoo  = "Odoo"
	TargetSystemSteve = "SteVe"
)

// ActivityLogEntry is the append-only audit trail of user-affecting actions.
// The core only writes it, never reads it back.
type ActivityLogEntry struct {
	ID           int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       int64         `json:"user_id" gorm:"index;column:user_id"`
	EventType    ActivityEvent `json:"event_type" gorm:"column:event_type"`
	TargetSystem string        `json:"target_system" gorm:"column:target_system"`
	RFID         string        `json:"rfid" gorm:"column:rfid"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (ActivityLogEntry) TableName() string {
	return "activity_log"
}
