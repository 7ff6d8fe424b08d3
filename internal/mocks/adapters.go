package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// MockBillingAdapter is a mock implementation of BillingAdapter
type MockBillingAdapter struct {
	CreateUserFunc     func(ctx context.Context, name, email string) (*domain.BillingAccount, error)
	CreateInvoiceFunc  func(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error)
	RotateAPIKeyFunc   func(ctx context.Context, odooUserID int64, currentKey, currentKeySalt string) (*domain.BillingAccount, error)
	PortalLoginURLFunc func(odooUserID int64, key, keySalt string) (string, error)
	PingFunc           func(ctx context.Context) error
}

func (m *MockBillingAdapter) CreateUser(ctx context.Context, name, email string) (*domain.BillingAccount, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, name, email)
	}
	return &domain.BillingAccount{UserID: 1, Key: "key", KeySalt: "key-salt"}, nil
}

func (m *MockBillingAdapter) CreateInvoice(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error) {
	if m.CreateInvoiceFunc != nil {
		return m.CreateInvoiceFunc(ctx, txn, odooUserID)
	}
	return "INV-0001", nil
}

func (m *MockBillingAdapter) RotateAPIKey(ctx context.Context, odooUserID int64, currentKey, currentKeySalt string) (*domain.BillingAccount, error) {
	if m.RotateAPIKeyFunc != nil {
		return m.RotateAPIKeyFunc(ctx, odooUserID, currentKey, currentKeySalt)
	}
	return &domain.BillingAccount{UserID: odooUserID, Key: "new-key", KeySalt: "new-key-salt"}, nil
}

func (m *MockBillingAdapter) PortalLoginURL(odooUserID int64, key, keySalt string) (string, error) {
	if m.PortalLoginURLFunc != nil {
		return m.PortalLoginURLFunc(odooUserID, key, keySalt)
	}
	return "https://billing.example.com/portal_login", nil
}

func (m *MockBillingAdapter) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// MockChargePointAdapter is a mock implementation of ChargePointAdapter
type MockChargePointAdapter struct {
	FetchStoppedFunc  func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error)
	GetTagFunc        func(ctx context.Context, idTag string) (*domain.OcppTag, error)
	CreateTagFunc     func(ctx context.Context, idTag string, blocked bool) (*domain.OcppTag, error)
	SetTagBlockedFunc func(ctx context.Context, tagPk int64, idTag string, blocked bool) (*domain.OcppTag, error)
	PingFunc          func(ctx context.Context) error
}

func (m *MockChargePointAdapter) FetchStopped(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
	if m.FetchStoppedFunc != nil {
		return m.FetchStoppedFunc(ctx, from, to)
	}
	return nil, nil
}

func (m *MockChargePointAdapter) GetTag(ctx context.Context, idTag string) (*domain.OcppTag, error) {
	if m.GetTagFunc != nil {
		return m.GetTagFunc(ctx, idTag)
	}
	return nil, nil
}

func (m *MockChargePointAdapter) CreateTag(ctx context.Context, idTag string, blocked bool) (*domain.OcppTag, error) {
	if m.CreateTagFunc != nil {
		return m.CreateTagFunc(ctx, idTag, blocked)
	}
	return &domain.OcppTag{OcppTagPk: 1, IDTag: idTag, Blocked: blocked}, nil
}

func (m *MockChargePointAdapter) SetTagBlocked(ctx context.Context, tagPk int64, idTag string, blocked bool) (*domain.OcppTag, error) {
	if m.SetTagBlockedFunc != nil {
		return m.SetTagBlockedFunc(ctx, tagPk, idTag, blocked)
	}
	return &domain.OcppTag{OcppTagPk: tagPk, IDTag: idTag, Blocked: blocked}, nil
}

func (m *MockChargePointAdapter) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// MockReconcileLock is a mock implementation of ReconcileLock
type MockReconcileLock struct {
	mu          sync.Mutex
	held        map[string]bool
	AcquireFunc func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseFunc func(ctx context.Context, key string) error
}

func (m *MockReconcileLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = make(map[string]bool)
	}
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *MockReconcileLock) Release(ctx context.Context, key string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}
