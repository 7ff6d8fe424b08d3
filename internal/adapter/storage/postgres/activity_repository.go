package postgres

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/ports"
)

type ActivityRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewActivityRepository(db *gorm.DB, log *zap.Logger) ports.ActivityRepository {
	return &ActivityRepository{
		db:  db,
		log: log,
	}
}

func (r *ActivityRepository) Record(ctx context.Context, entry *domain.ActivityLogEntry) error {
	return translateError(r.db.WithContext(ctx).Create(entry).Error, "record activity")
}
