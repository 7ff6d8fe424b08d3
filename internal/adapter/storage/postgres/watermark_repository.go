package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/ports"
)

type WatermarkRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWatermarkRepository(db *gorm.DB, log *zap.Logger) ports.WatermarkRepository {
	return &WatermarkRepository{
		db:  db,
		log: log,
	}
}

// Last returns MAX(last_stop_timestamp). Rows only accumulate, so the
// watermark observed here is non-decreasing across runs even if a late run
// records an older mark.
func (r *WatermarkRepository) Last(ctx context.Context) (*time.Time, error) {
	var mark sql.NullTime
	err := r.db.WithContext(ctx).
		Model(&domain.SyncWatermark{}).
		Select("MAX(last_stop_timestamp)").
		Scan(&mark).Error
	if err != nil {
		return nil, translateError(err, "read watermark")
	}
	if !mark.Valid {
		return nil, nil
	}
	t := mark.Time.UTC()
	return &t, nil
}

// Advance records the mark; touching an existing mark only bumps
// iterated_at, preserving the history of touch times.
func (r *WatermarkRepository) Advance(ctx context.Context, mark time.Time) error {
	now := time.Now().UTC()
	row := domain.SyncWatermark{
		LastStopTimestamp: mark.UTC(),
		IteratedAt:        now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "last_stop_timestamp"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"iterated_at": now}),
		}).
		Create(&row).Error
	return translateError(err, "advance watermark")
}
