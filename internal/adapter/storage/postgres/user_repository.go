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

type UserRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUserRepository(db *gorm.DB, log *zap.Logger) ports.UserRepository {
	return &UserRepository{
		db:  db,
		log: log,
	}
}

func (r *UserRepository) FindByID(ctx context.Context, userID int64) (*domain.User, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *UserRepository) FindByOauthID(ctx context.Context, oauthID string) (*domain.User, error) {
	return r.findOne(ctx, "oauth_id = ?", oauthID)
}

func (r *UserRepository) FindByTag(ctx context.Context, idTag string, tagPk int64) (*domain.User, error) {
	return r.findOne(ctx, "rfid = ? AND steve_id = ?", idTag, tagPk)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, append([]interface{}{query}, args...)...).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "find user")
	}
	return &user, nil
}

// Create inserts the user together with its audit entry; both commit or
// neither does.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		entry := domain.ActivityLogEntry{
			UserID:       user.UserID,
			EventType:    domain.ActivityCreate,
			TargetSystem: domain.TargetSystemLocal,
			RFID:         user.RFID,
		}
		return tx.Create(&entry).Error
	})
	return translateError(err, "create user")
}

// LinkBillingAccount writes the billing ids and the initial credential in
// one transaction. The guard WHERE odoo_user_id IS NULL makes a retry that
// raced past a completed link fail loudly instead of overwriting.
func (r *UserRepository) LinkBillingAccount(ctx context.Context, userID int64, acct *domain.BillingAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("user_id = ? AND odoo_user_id IS NULL", userID).
			Updates(map[string]interface{}{
				"odoo_user_id":    acct.UserID,
				"odoo_partner_id": acct.PartnerID,
				"updated_at":      time.Now().UTC(),
			})
		if res.Error != nil {
			return translateError(res.Error, "link billing account")
		}
		if res.RowsAffected == 0 {
			return domain.NewValidationError(domain.ErrDefBillingAlreadyLinked, "")
		}

		cred := domain.APIKeyCredential{
			UserID: userID,
			Key:    acct.Key,
			Salt:   acct.KeySalt,
		}
		if err := tx.Create(&cred).Error; err != nil {
			return translateError(err, "store initial credential")
		}
		return nil
	})
}

func (r *UserRepository) LinkChargePointAccount(ctx context.Context, userID, steveID int64) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ? AND steve_id IS NULL", userID).
		Updates(map[string]interface{}{
			"steve_id":   steveID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error, "link charge-point account")
	}
	if res.RowsAffected == 0 {
		return domain.NewValidationError(domain.ErrDefTagExists, "charge-point account already linked")
	}
	return nil
}
