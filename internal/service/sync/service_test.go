package sync

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/mocks"
)

type syncFixture struct {
	transactions *mocks.MockTransactionRepository
	watermarks   *mocks.MockWatermarkRepository
	users        *mocks.MockUserRepository
	chargePoint  *mocks.MockChargePointAdapter
	billing      *mocks.MockBillingAdapter
	mq           *mocks.MockMessageQueue
	svc          *Service

	store map[int64]*domain.ChargingTransaction
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		transactions: &mocks.MockTransactionRepository{},
		watermarks:   &mocks.MockWatermarkRepository{},
		users:        &mocks.MockUserRepository{},
		chargePoint:  &mocks.MockChargePointAdapter{},
		billing:      &mocks.MockBillingAdapter{},
		mq:           mocks.NewMockMessageQueue(),
		store:        make(map[int64]*domain.ChargingTransaction),
	}

	// In-memory upsert mirroring the final-record skip contract.
	f.transactions.UpsertFunc = func(ctx context.Context, txn *domain.ChargingTransaction) (*domain.ChargingTransaction, bool, error) {
		existing, ok := f.store[txn.SteveID]
		if !ok {
			copied := *txn
			f.store[txn.SteveID] = &copied
			return &copied, true, nil
		}
		if existing.Final() && txn.StopTimestamp != nil && existing.StopTimestamp.Equal(*txn.StopTimestamp) {
			return existing, false, nil
		}
		existing.StopTimestamp = txn.StopTimestamp
		existing.StopValue = txn.StopValue
		if existing.UserID == nil {
			existing.UserID = txn.UserID
		}
		return existing, true, nil
	}
	f.transactions.SetInvoiceRefFunc = func(ctx context.Context, steveID int64, ref string) error {
		f.store[steveID].InvoiceRef = &ref
		return nil
	}

	f.svc = NewService(f.transactions, f.watermarks, f.users, f.chargePoint, f.billing, f.mq, 0, zap.NewNop())
	return f
}

func session(id int64, stop string) domain.StoppedSession {
	return domain.StoppedSession{
		ID:             id,
		OcppTagPk:      7,
		OcppIDTag:      "CARD0001",
		StartTimestamp: "2024-01-01T08:00:00Z",
		StopTimestamp:  stop,
		StartValue:     "1000",
		StopValue:      "2500",
		StopReason:     "Local",
		StopEventActor: "station",
	}
}

func TestFirstRunFetchesFullHistoryAndSetsWatermark(t *testing.T) {
	f := newSyncFixture(t)

	var gotFrom *time.Time
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		gotFrom = from
		return []domain.StoppedSession{
			session(101, "2024-01-01T10:00:00Z"),
			session(102, "2024-01-01T11:00:00Z"),
		}, nil
	}

	result, err := f.svc.RunIncremental(context.Background())
	if err != nil {
		t.Fatalf("RunIncremental() error = %v", err)
	}

	if gotFrom != nil {
		t.Errorf("first run fetched from %v, want full history", gotFrom)
	}
	if result.Fetched != 2 || result.Persisted != 2 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}

	want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if f.watermarks.Mark == nil || !f.watermarks.Mark.Equal(want) {
		t.Errorf("watermark = %v, want %v", f.watermarks.Mark, want)
	}
}

func TestIncrementalRunOpensWindowPastWatermark(t *testing.T) {
	f := newSyncFixture(t)
	mark := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	f.watermarks.Mark = &mark

	var gotFrom *time.Time
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		gotFrom = from
		return nil, nil
	}

	if _, err := f.svc.RunIncremental(context.Background()); err != nil {
		t.Fatalf("RunIncremental() error = %v", err)
	}

	want := mark.Add(time.Second)
	if gotFrom == nil || !gotFrom.Equal(want) {
		t.Errorf("from = %v, want %v", gotFrom, want)
	}
}

func TestSlackWidensWindowBackwards(t *testing.T) {
	f := newSyncFixture(t)
	f.svc = NewService(f.transactions, f.watermarks, f.users, f.chargePoint, f.billing, f.mq, 30*time.Second, zap.NewNop())

	mark := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	f.watermarks.Mark = &mark

	var gotFrom *time.Time
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		gotFrom = from
		return nil, nil
	}

	if _, err := f.svc.RunIncremental(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := mark.Add(time.Second - 30*time.Second)
	if gotFrom == nil || !gotFrom.Equal(want) {
		t.Errorf("from = %v, want %v", gotFrom, want)
	}
}

func TestRerunSkipsFinalRecordsButAdvancesWatermark(t *testing.T) {
	f := newSyncFixture(t)
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return []domain.StoppedSession{session(101, "2024-01-01T10:00:00Z")}, nil
	}

	if _, err := f.svc.RunIncremental(context.Background()); err != nil {
		t.Fatal(err)
	}
	result, err := f.svc.RunIncremental(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if result.Persisted != 0 || result.Skipped != 1 {
		t.Errorf("rerun result = %+v, want all skipped", result)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if f.watermarks.Mark == nil || !f.watermarks.Mark.Equal(want) {
		t.Errorf("watermark = %v, want %v", f.watermarks.Mark, want)
	}
}

func TestDuplicateIDsWithinBatchCollapse(t *testing.T) {
	f := newSyncFixture(t)

	first := session(101, "2024-01-01T10:00:00Z")
	second := session(101, "2024-01-01T10:00:00Z")
	second.StopValue = "2600"

	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return []domain.StoppedSession{first, second}, nil
	}

	result, err := f.svc.RunIncremental(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Fetched != 2 || result.Unique != 1 || result.Persisted != 1 {
		t.Errorf("result = %+v", result)
	}
	if *f.store[101].StopValue != 2600 {
		t.Errorf("stop value = %v, want the last occurrence to win", *f.store[101].StopValue)
	}
}

func TestMalformedRecordAbortsRunBeforeAnyWrite(t *testing.T) {
	f := newSyncFixture(t)

	bad := session(102, "2024-01-01T11:00:00Z")
	bad.StopValue = "not-a-number"

	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return []domain.StoppedSession{session(101, "2024-01-01T10:00:00Z"), bad}, nil
	}

	_, err := f.svc.RunIncremental(context.Background())
	if !domain.HasCode(err, domain.ErrDefInvalidFormat) {
		t.Errorf("err = %v, want invalid format", err)
	}
	if len(f.store) != 0 {
		t.Error("records were written despite batch abort")
	}
	if f.watermarks.Mark != nil {
		t.Errorf("watermark advanced to %v on aborted run", f.watermarks.Mark)
	}
}

func TestUnresolvedUserKeepsSessionUnbilled(t *testing.T) {
	f := newSyncFixture(t)
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return []domain.StoppedSession{session(101, "2024-01-01T10:00:00Z")}, nil
	}
	f.users.FindByTagFunc = func(ctx context.Context, idTag string, tagPk int64) (*domain.User, error) {
		return nil, nil
	}
	f.billing.CreateInvoiceFunc = func(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error) {
		t.Error("invoice must not be created for an unresolved user")
		return "", nil
	}

	result, err := f.svc.RunIncremental(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Invoiced != 0 {
		t.Errorf("invoiced = %d, want 0", result.Invoiced)
	}
	if f.store[101].UserID != nil {
		t.Error("user id set despite unresolved tag")
	}
}

func TestInvoiceFailureIsIsolatedPerRecord(t *testing.T) {
	f := newSyncFixture(t)
	odooID := int64(42)
	owner := &domain.User{UserID: 1, RFID: "CARD0001", OdooUserID: &odooID}

	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return []domain.StoppedSession{
			session(101, "2024-01-01T10:00:00Z"),
			session(102, "2024-01-01T11:00:00Z"),
		}, nil
	}
	f.users.FindByTagFunc = func(ctx context.Context, idTag string, tagPk int64) (*domain.User, error) {
		return owner, nil
	}
	f.users.FindByIDFunc = func(ctx context.Context, userID int64) (*domain.User, error) {
		return owner, nil
	}
	f.billing.CreateInvoiceFunc = func(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error) {
		if txn.SteveID == 101 {
			return "", domain.NewSystemError(domain.ErrDefInvoiceCreateFailed, "", nil)
		}
		return "INV-0102", nil
	}

	result, err := f.svc.RunIncremental(context.Background())
	if err != nil {
		t.Fatalf("run failed despite per-record isolation: %v", err)
	}
	if result.Invoiced != 1 {
		t.Errorf("invoiced = %d, want 1", result.Invoiced)
	}
	if f.store[101].InvoiceRef != nil {
		t.Error("failed invoice left a reference")
	}
	if f.store[102].InvoiceRef == nil || *f.store[102].InvoiceRef != "INV-0102" {
		t.Errorf("invoice ref = %v", f.store[102].InvoiceRef)
	}

	// Watermark still advances; the unbilled record retries via its null
	// invoice_ref, not via re-fetching.
	want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if f.watermarks.Mark == nil || !f.watermarks.Mark.Equal(want) {
		t.Errorf("watermark = %v, want %v", f.watermarks.Mark, want)
	}
}

func TestAlreadyInvoicedRecordIsNotRebilled(t *testing.T) {
	f := newSyncFixture(t)
	odooID := int64(42)
	owner := &domain.User{UserID: 1, RFID: "CARD0001", OdooUserID: &odooID}

	ref := "INV-0101"
	stop := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	f.store[101] = &domain.ChargingTransaction{
		SteveID: 101, OcppTagPk: 7, OcppIDTag: "CARD0001",
		StopTimestamp: &stop, UserID: &owner.UserID, InvoiceRef: &ref,
	}

	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return []domain.StoppedSession{session(101, "2024-01-01T10:00:00Z")}, nil
	}
	f.users.FindByTagFunc = func(ctx context.Context, idTag string, tagPk int64) (*domain.User, error) {
		return owner, nil
	}
	f.billing.CreateInvoiceFunc = func(ctx context.Context, txn *domain.ChargingTransaction, odooUserID int64) (string, error) {
		t.Error("invoiced record must not be billed again")
		return "", nil
	}

	result, err := f.svc.RunIncremental(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Invoiced != 0 {
		t.Errorf("invoiced = %d, want 0", result.Invoiced)
	}
}

func TestRunFullIgnoresWatermark(t *testing.T) {
	f := newSyncFixture(t)
	mark := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	f.watermarks.Mark = &mark

	var gotFrom *time.Time
	called := false
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		called = true
		gotFrom = from
		return nil, nil
	}

	if _, err := f.svc.RunFull(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("fetch not called")
	}
	if gotFrom != nil {
		t.Errorf("full run fetched from %v, want nil", gotFrom)
	}
}

func TestFetchFailurePropagates(t *testing.T) {
	f := newSyncFixture(t)
	f.chargePoint.FetchStoppedFunc = func(ctx context.Context, from *time.Time, to time.Time) ([]domain.StoppedSession, error) {
		return nil, domain.NewSystemError(domain.ErrDefFetchFailed, "", nil)
	}

	_, err := f.svc.RunIncremental(context.Background())
	if !domain.HasCode(err, domain.ErrDefFetchFailed) {
		t.Errorf("err = %v, want fetch failed", err)
	}
}
