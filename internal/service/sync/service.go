package sync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/adapter/queue"
	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/observability/telemetry"
	"github.com/mincom-smart/chargebridge/internal/ports"
)

// Service ingests finished charging sessions from the charge-point backend
// into the local store and bills them. Runs are incremental: the persisted
// high-water mark is the maximum stop timestamp successfully processed, and
// the next run fetches from just past that mark.
type Service struct {
	transactions ports.TransactionRepository
	watermarks   ports.WatermarkRepository
	users        ports.UserRepository
	chargePoint  ports.ChargePointAdapter
	billing      ports.BillingAdapter
	mq           queue.MessageQueue
	slack        time.Duration
	log          *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewService(
	transactions ports.TransactionRepository,
	watermarks ports.WatermarkRepository,
	users ports.UserRepository,
	chargePoint ports.ChargePointAdapter,
	billing ports.BillingAdapter,
	mq queue.MessageQueue,
	slack time.Duration,
	log *zap.Logger,
) *Service {
	return &Service{
		transactions: transactions,
		watermarks:   watermarks,
		users:        users,
		chargePoint:  chargePoint,
		billing:      billing,
		mq:           mq,
		slack:        slack,
		log:          log,
		now:          time.Now,
	}
}

var _ ports.SyncService = (*Service)(nil)

// RunIncremental fetches everything stopped after the persisted watermark.
// The window opens at watermark+1s minus the configured slack; the backend
// filter has second granularity, so +1s excludes the already-processed
// boundary record and slack re-reads a margin for late commits. Re-read
// records are final locally and skipped.
func (s *Service) RunIncremental(ctx context.Context) (*domain.SyncRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark, err := s.watermarks.Last(ctx)
	if err != nil {
		return nil, err
	}

	var from *time.Time
	if mark != nil {
		f := mark.Add(time.Second - s.slack)
		from = &f
	}
	return s.run(ctx, "incremental", from)
}

// RunFull re-reads the entire backend history. Final local records are
// skipped, so a full run repairs gaps without rewriting settled data.
func (s *Service) RunFull(ctx context.Context) (*domain.SyncRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(ctx, "full", nil)
}

func (s *Service) Watermark(ctx context.Context) (*time.Time, error) {
	return s.watermarks.Last(ctx)
}

func (s *Service) run(ctx context.Context, mode string, from *time.Time) (*domain.SyncRunResult, error) {
	started := s.now()
	result, err := s.ingest(ctx, from)
	telemetry.SyncRunDuration.Observe(s.now().Sub(started).Seconds())
	if err != nil {
		telemetry.SyncRunsTotal.WithLabelValues(mode, "error").Inc()
		s.log.Error("sync run failed", zap.String("mode", mode), zap.Error(err))
		return nil, err
	}

	telemetry.SyncRunsTotal.WithLabelValues(mode, "ok").Inc()
	s.log.Info("sync run completed",
		zap.String("mode", mode),
		zap.Int("fetched", result.Fetched),
		zap.Int("unique", result.Unique),
		zap.Int("persisted", result.Persisted),
		zap.Int("skipped", result.Skipped),
		zap.Int("invoiced", result.Invoiced),
		zap.Timep("high_water_mark", result.HighWaterMark))

	s.publishResult(mode, result)
	return result, nil
}

func (s *Service) ingest(ctx context.Context, from *time.Time) (*domain.SyncRunResult, error) {
	to := s.now().UTC()
	sessions, err := s.chargePoint.FetchStopped(ctx, from, to)
	if err != nil {
		return nil, err
	}
	telemetry.SyncFetchedTotal.Add(float64(len(sessions)))

	// Any malformed record aborts the batch before the first write. A
	// partially ingested batch behind an advanced watermark would be
	// silent data loss.
	txns, err := validateBatch(sessions)
	if err != nil {
		return nil, err
	}
	txns = dedupe(txns)

	result := &domain.SyncRunResult{
		Fetched: len(sessions),
		Unique:  len(txns),
	}

	var maxStop *time.Time
	for _, txn := range txns {
		s.resolveUser(ctx, txn)

		stored, written, err := s.transactions.Upsert(ctx, txn)
		if err != nil {
			return nil, err
		}

		if written {
			result.Persisted++
			telemetry.SyncPersistedTotal.Inc()
		} else {
			result.Skipped++
		}

		if maxStop == nil || txn.StopTimestamp.After(*maxStop) {
			maxStop = txn.StopTimestamp
		}

		if s.invoice(ctx, stored) {
			result.Invoiced++
		}
	}

	// The watermark advances even when every record was already known:
	// re-reads of an idle backend must not re-fetch the same window
	// forever.
	if maxStop != nil {
		if err := s.watermarks.Advance(ctx, *maxStop); err != nil {
			return nil, err
		}
		result.HighWaterMark = maxStop
		telemetry.WatermarkTimestamp.Set(float64(maxStop.Unix()))
	} else if from != nil {
		result.HighWaterMark = s.currentMark(ctx)
	}

	return result, nil
}

// resolveUser attaches the owning user by cross-referencing the tag primary
// key and the presented id tag. An unresolved user is not an error; the
// session is kept for later backfill and simply not billed.
func (s *Service) resolveUser(ctx context.Context, txn *domain.ChargingTransaction) {
	user, err := s.users.FindByTag(ctx, txn.OcppIDTag, txn.OcppTagPk)
	if err != nil {
		s.log.Warn("user lookup failed for session",
			zap.Int64("tx_steve_id", txn.SteveID), zap.Error(err))
		return
	}
	if user == nil {
		s.log.Warn("no user matches session tag",
			zap.Int64("tx_steve_id", txn.SteveID),
			zap.String("ocpp_id_tag", txn.OcppIDTag),
			zap.Int64("ocpp_tag_pk", txn.OcppTagPk))
		return
	}
	txn.UserID = &user.UserID
}

// invoice bills one stored session. Failures are isolated to the record:
// the run continues and the next pass retries because invoice_ref is still
// null.
func (s *Service) invoice(ctx context.Context, stored *domain.ChargingTransaction) bool {
	if stored.InvoiceRef != nil || stored.UserID == nil {
		return false
	}

	user, err := s.users.FindByID(ctx, *stored.UserID)
	if err != nil || user == nil || !user.BillingLinked() {
		if err != nil {
			s.log.Warn("billing user lookup failed",
				zap.Int64("tx_steve_id", stored.SteveID), zap.Error(err))
		}
		return false
	}

	ref, err := s.billing.CreateInvoice(ctx, stored, *user.OdooUserID)
	if err != nil {
		telemetry.InvoicesCreatedTotal.WithLabelValues("error").Inc()
		s.log.Error("invoice creation failed",
			zap.Int64("tx_steve_id", stored.SteveID),
			zap.Int64("user_id", user.UserID),
			zap.Error(err))
		return false
	}

	if err := s.transactions.SetInvoiceRef(ctx, stored.SteveID, ref); err != nil {
		telemetry.InvoicesCreatedTotal.WithLabelValues("error").Inc()
		s.log.Error("failed to record invoice reference",
			zap.Int64("tx_steve_id", stored.SteveID),
			zap.String("invoice_ref", ref),
			zap.Error(err))
		return false
	}

	telemetry.InvoicesCreatedTotal.WithLabelValues("ok").Inc()
	stored.InvoiceRef = &ref

	payload, err := json.Marshal(map[string]interface{}{
		"tx_steve_id": stored.SteveID,
		"invoice_ref": ref,
		"user_id":     *stored.UserID,
		"energy_wh":   stored.EnergyWh(),
	})
	if err == nil && s.mq != nil {
		if err := s.mq.Publish(queue.SubjectInvoiceCreated, payload); err != nil {
			s.log.Warn("failed to publish invoice event", zap.Error(err))
		}
	}
	return true
}

func (s *Service) currentMark(ctx context.Context) *time.Time {
	mark, err := s.watermarks.Last(ctx)
	if err != nil {
		return nil
	}
	return mark
}

func (s *Service) publishResult(mode string, result *domain.SyncRunResult) {
	if s.mq == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"mode":   mode,
		"result": result,
	})
	if err != nil {
		return
	}
	if err := s.mq.Publish(queue.SubjectSyncCompleted, payload); err != nil {
		s.log.Warn("failed to publish sync event", zap.Error(err))
	}
}
