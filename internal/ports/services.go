package ports

import (
	"context"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// IdentityService reconciles a locally-known user with the two downstream
// systems and manages the rotating portal credential.
type IdentityService interface {
	// Reconcile is invoked on every authentication event. It inspects the
	// persisted state and performs only the missing provisioning steps;
	// completed steps are never re-run.
	Reconcile(ctx context.Context, subject domain.Subject) (*domain.User, error)

	// CreateBillingAccount explicitly provisions the billing account for
	// an existing user; fails hard with ErrDefBillingAlreadyLinked when
	// the account is already linked.
	CreateBillingAccount(ctx context.Context, identifier string) (*domain.User, error)

	// PortalLogin builds a signed billing-portal login URL.
	PortalLogin(ctx context.Context, identifier string) (string, error)

	// RotateAPIKey performs the signed rotation handshake and swaps the
	// local credential atomically.
	RotateAPIKey(ctx context.Context, identifier string) (*domain.APIKeyCredential, error)

	Block(ctx context.Context, identifier string) error
	Unblock(ctx context.Context, identifier string) error
}

// SyncService ingests completed charging sessions incrementally.
type SyncService interface {
	RunIncremental(ctx context.Context) (*domain.SyncRunResult, error)
	RunFull(ctx context.Context) (*domain.SyncRunResult, error)
	Watermark(ctx context.Context) (*time.Time, error)
}
