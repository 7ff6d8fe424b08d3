package ports

import (
	"context"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// BillingAdapter is the typed contract to the Odoo billing backend. Every
// response carrying credential material is HMAC-verified by the adapter
// before any field is returned to the caller.
type BillingAdapter interface {
	// CreateUser provisions a billing account. A 409 from the backend maps
	// to ErrDefBillingUserExists.
	CreateUser(ctx context.Context, name, email string) (*domain.BillingAccount, error)

	// CreateInvoice bills a finished charging session and returns the
	// invoice reference.
	CreateInvoice(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error)

	// RotateAPIKey sends a signed rotation request built from the current
	// key material and returns the verified replacement. The caller must
	// still check the returned owning id against its own record.
	RotateAPIKey(ctx context.Context, odooUserID int64, currentKey, currentKeySalt string) (*domain.BillingAccount, error)

	// PortalLoginURL builds a signed, time-limited portal login URL for
	// the caller to hand out as a redirect.
	PortalLoginURL(odooUserID int64, key, keySalt string) (string, error)

	Ping(ctx context.Context) error
}

// ChargePointAdapter is the typed contract to the SteVe OCPP backend.
type ChargePointAdapter interface {
	// FetchStopped returns STOPPED sessions; a nil from requests the full
	// history, otherwise the half-open window (from, to].
	FetchStopped(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error)

	// GetTag returns the tag for an id tag, (nil, nil) when absent. More
	// than one result is an invariant violation and errors.
	GetTag(ctx context.Context, idTag string) (*domain.OcppTag, error)

	// CreateTag provisions a tag, verifying the echoed idTag and block
	// state before returning.
	CreateTag(ctx context.Context, idTag string, blocked bool) (*domain.OcppTag, error)

	// SetTagBlocked flips the tag's block state via
	// maxActiveTransactionCount and verifies the result.
	SetTagBlocked(ctx context.Context, tagPk int64, idTag string, blocked bool) (*domain.OcppTag, error)

	Ping(ctx context.Context) error
}

// ReconcileLock serializes reconciliation per user across instances. The
// store's uniqueness constraints remain the hard backstop; the lock only
// avoids doing doomed downstream calls.
type ReconcileLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
