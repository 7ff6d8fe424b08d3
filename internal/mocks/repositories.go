package mocks

import (
	"context"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	FindByIDFunc               func(ctx context.Context, userID int64) (*domain.User, error)
	FindByOauthIDFunc          func(ctx context.Context, oauthID string) (*domain.User, error)
	FindByTagFunc              func(ctx context.Context, idTag string, tagPk int64) (*domain.User, error)
	CreateFunc                 func(ctx context.Context, user *domain.User) error
	LinkBillingAccountFunc     func(ctx context.Context, userID int64, acct *domain.BillingAccount) error
	LinkChargePointAccountFunc func(ctx context.Context, userID, steveID int64) error
}

func (m *MockUserRepository) FindByID(ctx context.Context, userID int64) (*domain.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockUserRepository) FindByOauthID(ctx context.Context, oauthID string) (*domain.User, error) {
	if m.FindByOauthIDFunc != nil {
		return m.FindByOauthIDFunc(ctx, oauthID)
	}
	return nil, nil
}

func (m *MockUserRepository) FindByTag(ctx context.Context, idTag string, tagPk int64) (*domain.User, error) {
	if m.FindByTagFunc != nil {
		return m.FindByTagFunc(ctx, idTag, tagPk)
	}
	return nil, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

func (m *MockUserRepository) LinkBillingAccount(ctx context.Context, userID int64, acct *domain.BillingAccount) error {
	if m.LinkBillingAccountFunc != nil {
		return m.LinkBillingAccountFunc(ctx, userID, acct)
	}
	return nil
}

func (m *MockUserRepository) LinkChargePointAccount(ctx context.Context, userID, steveID int64) error {
	if m.LinkChargePointAccountFunc != nil {
		return m.LinkChargePointAccountFunc(ctx, userID, steveID)
	}
	return nil
}

// MockCredentialRepository is a mock implementation of CredentialRepository
type MockCredentialRepository struct {
	ActiveFunc func(ctx context.Context, userID int64) (*domain.APIKeyCredential, error)
	RotateFunc func(ctx context.Context, userID, oldKeyID int64, key, salt string) (*domain.APIKeyCredential, error)
}

func (m *MockCredentialRepository) Active(ctx context.Context, userID int64) (*domain.APIKeyCredential, error) {
	if m.ActiveFunc != nil {
		return m.ActiveFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockCredentialRepository) Rotate(ctx context.Context, userID, oldKeyID int64, key, salt string) (*domain.APIKeyCredential, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, userID, oldKeyID, key, salt)
	}
	return &domain.APIKeyCredential{UserID: userID, Key: key, Salt: salt}, nil
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	FindBySteveIDFunc func(ctx context.Context, steveID int64) (*domain.ChargingTransaction, error)
	UpsertFunc        func(ctx context.Context, txn *domain.ChargingTransaction) (*domain.ChargingTransaction, bool, error)
	SetInvoiceRefFunc func(ctx context.Context, steveID int64, ref string) error
}

func (m *MockTransactionRepository) FindBySteveID(ctx context.Context, steveID int64) (*domain.ChargingTransaction, error) {
	if m.FindBySteveIDFunc != nil {
		return m.FindBySteveIDFunc(ctx, steveID)
	}
	return nil, nil
}

func (m *MockTransactionRepository) Upsert(ctx context.Context, txn *domain.ChargingTransaction) (*domain.ChargingTransaction, bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, txn)
	}
	return txn, true, nil
}

func (m *MockTransactionRepository) SetInvoiceRef(ctx context.Context, steveID int64, ref string) error {
	if m.SetInvoiceRefFunc != nil {
		return m.SetInvoiceRefFunc(ctx, steveID, ref)
	}
	return nil
}

// MockWatermarkRepository is a mock implementation of WatermarkRepository
type MockWatermarkRepository struct {
	Mark        *time.Time
	LastFunc    func(ctx context.Context) (*time.Time, error)
	AdvanceFunc func(ctx context.Context, mark time.Time) error
}

func (m *MockWatermarkRepository) Last(ctx context.Context) (*time.Time, error) {
	if m.LastFunc != nil {
		return m.LastFunc(ctx)
	}
	return m.Mark, nil
}

func (m *MockWatermarkRepository) Advance(ctx context.Context, mark time.Time) error {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, mark)
	}
	if m.Mark == nil || mark.After(*m.Mark) {
		m.Mark = &mark
	}
	return nil
}

// MockActivityRepository is a mock implementation of ActivityRepository
type MockActivityRepository struct {
	Entries    []*domain.ActivityLogEntry
	RecordFunc func(ctx context.Context, entry *domain.ActivityLogEntry) error
}

func (m *MockActivityRepository) Record(ctx context.Context, entry *domain.ActivityLogEntry) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, entry)
	}
	m.Entries = append(m.Entries, entry)
	return nil
}
