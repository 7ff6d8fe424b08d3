package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/ports"
)

type TransactionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTransactionRepository(db *gorm.DB, log *zap.Logger) ports.TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log,
	}
}

func (r *TransactionRepository) FindBySteveID(ctx context.Context, steveID int64) (*domain.ChargingTransaction, error) {
	var txn domain.ChargingTransaction
	err := r.db.WithContext(ctx).First(&txn, "tx_steve_id = ?", steveID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "find transaction")
	}
	return &txn, nil
}

// Upsert inserts a new session or updates an open one. A stored record whose
// stop_timestamp already equals the incoming value is final: re-ingestion is
// a no-op and the stored row is returned untouched. invoice_ref survives
// every update path.
func (r *TransactionRepository) Upsert(ctx context.Context, txn *domain.ChargingTransaction) (*domain.ChargingTransaction, bool, error) {
	var stored domain.ChargingTransaction
	written := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.ChargingTransaction
		err := tx.First(&existing, "tx_steve_id = ?", txn.SteveID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(txn).Error; err != nil {
				return translateError(err, "insert transaction")
			}
			stored = *txn
			written = true
			return nil
		}
		if err != nil {
			return translateError(err, "find transaction")
		}

		if existing.Final() && txn.StopTimestamp != nil &&
			existing.StopTimestamp.Equal(*txn.StopTimestamp) {
			stored = existing
			return nil
		}

		updates := map[string]interface{}{
			"stop_timestamp":   txn.StopTimestamp,
			"stop_value":       txn.StopValue,
			"stop_reason":      txn.StopReason,
			"stop_event_actor": txn.StopEventActor,
			"updated_at":       time.Now().UTC(),
		}
		if existing.UserID == nil && txn.UserID != nil {
			updates["user_id"] = *txn.UserID
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return translateError(err, "update transaction")
		}
		stored = existing
		written = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, written, nil
}

func (r *TransactionRepository) SetInvoiceRef(ctx context.Context, steveID int64, ref string) error {
	res := r.db.WithContext(ctx).Model(&domain.ChargingTransaction{}).
		Where("tx_steve_id = ? AND invoice_ref IS NULL", steveID).
		Updates(map[string]interface{}{
			"invoice_ref": ref,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error, "set invoice ref")
	}
	if res.RowsAffected == 0 {
		return domain.NewDatabaseError(domain.ErrDefDuplicateEntry, "invoice ref already set", nil)
	}
	return nil
}
