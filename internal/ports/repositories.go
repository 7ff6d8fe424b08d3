package ports

import (
	"context"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// UserRepository persists user identity and downstream account links.
// Lookups return (nil, nil) when no row matches.
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (*domain.User, error)
	FindByOauthID(ctx context.Context, oauthID string) (*domain.User, error)
	// FindByTag cross-references the charge-point tag primary key and the
	// RFID presented during a session. Both must match the same user.
	FindByTag(ctx context.Context, idTag string, tagPk int64) (*domain.User, error)

	// Create inserts the user and its "Create" activity-log entry in one
	// transaction. A uniqueness race surfaces as a retryable
	// duplicate-entry error.
	Create(ctx context.Context, user *domain.User) error

	// LinkBillingAccount sets odoo_user_id/odoo_partner_id and inserts the
	// initial credential row in one transaction. It refuses when
	// odoo_user_id is already non-null.
	LinkBillingAccount(ctx context.Context, userID int64, acct *domain.BillingAccount) error

	// LinkChargePointAccount sets steve_id exactly once.
	LinkChargePointAccount(ctx context.Context, userID, steveID int64) error
}

type CredentialRepository interface {
	// Active returns the single non-revoked credential, or (nil, nil).
	Active(ctx context.Context, userID int64) (*domain.APIKeyCredential, error)
	// Rotate revokes oldKeyID and inserts the new material in one
	// transaction; key material is never mutated in place.
	Rotate(ctx context.Context, userID, oldKeyID int64, key, salt string) (*domain.APIKeyCredential, error)
}

type TransactionRepository interface {
	FindBySteveID(ctx context.Context, steveID int64) (*domain.ChargingTransaction, error)
	// Upsert inserts or updates by tx_steve_id. A record whose stored
	// stop_timestamp already matches the incoming one is final and is
	// returned unchanged with written=false. invoice_ref is never
	// overwritten here.
	Upsert(ctx context.Context, txn *domain.ChargingTransaction) (stored *domain.ChargingTransaction, written bool, err error)
	SetInvoiceRef(ctx context.Context, steveID int64, ref string) error
}

type WatermarkRepository interface {
	// Last returns the current high-water mark, nil when never synced.
	Last(ctx context.Context) (*time.Time, error)
	// Advance records a new mark; re-touching an existing mark only bumps
	// iterated_at.
	Advance(ctx context.Context, mark time.Time) error
}

type ActivityRepository interface {
	Record(ctx context.Context, entry *domain.ActivityLogEntry) error
}
