package domain

import (
	"time"
)

// SyncWatermark persists the ingestion high-water mark. One row exists per
// distinct watermark value; refetching the same boundary only bumps
// iterated_at, so the table is effectively a single current value with a
// history of touch times. The current mark is MAX(last_stop_timestamp).
type SyncWatermark struct {
	ID                int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	LastStopTimestamp time.Time `json:"last_stop_timestamp" gorm:"uniqueIndex;column:last_stop_timestamp"`
	IteratedAt        time.Time `json:"iterated_at" gorm:"column:iterated_at"`
}

func (SyncWatermark) TableName() string {
	return "sync_watermarks"
}

// SyncRunResult summarizes one sync run.
type SyncRunResult struct {
	Fetched       int        `json:"fetched"`
	Unique        int        `json:"unique"`
	Persisted     int        `json:"persisted"`
	Skipped       int        `json:"skipped"`
	Invoiced      int        `json:"invoiced"`
	HighWaterMark *time.Time `json:"high_water_mark,omitempty"`
}
