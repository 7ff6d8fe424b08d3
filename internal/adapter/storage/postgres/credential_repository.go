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

type CredentialRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCredentialRepository(db *gorm.DB, log *zap.Logger) ports.CredentialRepository {
	return &CredentialRepository{
		db:  db,
		log: log,
	}
}

func (r *CredentialRepository) Active(ctx context.Context, userID int64) (*domain.APIKeyCredential, error) {
	var cred domain.APIKeyCredential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "load active credential")
	}
	return &cred, nil
}

// Rotate revokes the old row and inserts the replacement atomically. Key
// material is append-only; nothing is mutated in place.
func (r *CredentialRepository) Rotate(ctx context.Context, userID, oldKeyID int64, key, salt string) (*domain.APIKeyCredential, error) {
	var created domain.APIKeyCredential
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&domain.APIKeyCredential{}).
			Where("key_id = ? AND user_id = ? AND revoked_at IS NULL", oldKeyID, userID).
			Update("revoked_at", now)
		if res.Error != nil {
			return translateError(res.Error, "revoke credential")
		}
		if res.RowsAffected == 0 {
			return domain.NewValidationError(domain.ErrDefNoCredentials, "credential already revoked or unknown")
		}

		created = domain.APIKeyCredential{
			UserID: userID,
			Key:    key,
			Salt:   salt,
		}
		if err := tx.Create(&created).Error; err != nil {
			return translateError(err, "store rotated credential")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}
