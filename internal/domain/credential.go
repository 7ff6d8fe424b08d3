package domain

import (
	"time"
)

// APIKeyCredential is the rotating secret material for billing portal access.
// Rows are append-only: rotation revokes the old row and inserts a new one in
// the same transaction, so the table doubles as an audit trail. At most one
// row per user has revoked_at IS NULL.
//
// Key is the opaque encrypted blob issued by the billing backend; Salt is the
// key_salt bound to it. The per-handshake nonce salt is never stored.
type APIKeyCredential struct {
	KeyID     int64      `json:"key_id" gorm:"primaryKey;autoIncrement;column:key_id"`
	UserID    int64      `json:"user_id" gorm:"index;column:user_id"`
	Key       string     `json:"-"`
	Salt      string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func (APIKeyCredential) TableName() string {
	return "api_key_credentials"
}

func (c *APIKeyCredential) Active() bool {
	return c.RevokedAt == nil
}
