package identity

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/ports"
	"github.com/mincom-smart/chargebridge/internal/service/activity"
)

const reconcileLockTTL = 30 * time.Second

// Service drives the cross-system provisioning of a user: the local row,
// the billing account with its credential material, and the charge-point
// tag. Every step is idempotent; Reconcile only performs what is missing.
type Service struct {
	users       ports.UserRepository
	credentials ports.CredentialRepository
	billing     ports.BillingAdapter
	chargePoint ports.ChargePointAdapter
	lock        ports.ReconcileLock
	recorder    *activity.Recorder
	log         *zap.Logger
}

func NewService(
	users ports.UserRepository,
	credentials ports.CredentialRepository,
	billing ports.BillingAdapter,
	chargePoint ports.ChargePointAdapter,
	lock ports.ReconcileLock,
	recorder *activity.Recorder,
	log *zap.Logger,
) ports.IdentityService {
	return &Service{
		users:       users,
		credentials: credentials,
		billing:     billing,
		chargePoint: chargePoint,
		lock:        lock,
		recorder:    recorder,
		log:         log,
	}
}

// Reconcile runs on every authentication event. It serializes per subject
// via a short lease so concurrent logins of the same user do not race the
// downstream systems; the unique constraints in the store remain the hard
// guarantee.
func (s *Service) Reconcile(ctx context.Context, subject domain.Subject) (*domain.User, error) {
	if subject.OauthID == "" || subject.Email == "" {
		return nil, domain.NewValidationError(domain.ErrDefMissingParameters, "oauth_id and email are required")
	}

	acquired, err := s.lock.Acquire(ctx, "reconcile:"+subject.OauthID, reconcileLockTTL)
	if err != nil {
		s.log.Warn("reconcile lock unavailable, proceeding unlocked",
			zap.String("oauth_id", subject.OauthID), zap.Error(err))
	} else if !acquired {
		return nil, domain.NewSystemError(domain.ErrDefReconcileBusy, "", nil)
	} else {
		defer func() {
			if err := s.lock.Release(context.Background(), "reconcile:"+subject.OauthID); err != nil {
				s.log.Warn("failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	user, err := s.findOrCreate(ctx, subject)
	if err != nil {
		return nil, err
	}

	if !user.BillingLinked() {
		if err := s.provisionBilling(ctx, user); err != nil {
			return nil, err
		}
	}

	if !user.ChargePointLinked() {
		if err := s.provisionChargePoint(ctx, user); err != nil {
			return nil, err
		}
	}

	return s.users.FindByOauthID(ctx, subject.OauthID)
}

func (s *Service) findOrCreate(ctx context.Context, subject domain.Subject) (*domain.User, error) {
	user, err := s.users.FindByOauthID(ctx, subject.OauthID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	rfid := subject.RFID
	if rfid == "" {
		rfid = placeholderRFID()
	}

	user = &domain.User{
		OauthID: subject.OauthID,
		Name:    subject.Name,
		Email:   subject.Email,
		RFID:    rfid,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent login may have created the row first.
		if domain.HasCode(err, domain.ErrDefDuplicateEntry) {
			existing, findErr := s.users.FindByOauthID(ctx, subject.OauthID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("created user",
		zap.Int64("user_id", user.UserID),
		zap.String("oauth_id", user.OauthID))
	return user, nil
}

func (s *Service) provisionBilling(ctx context.Context, user *domain.User) error {
	acct, err := s.billing.CreateUser(ctx, user.Name, user.Email)
	if err != nil {
		return err
	}
	if err := s.linkBilling(ctx, user, acct); err != nil {
		return err
	}

	s.log.Info("linked billing account",
		zap.Int64("user_id", user.UserID),
		zap.Int64("odoo_user_id", acct.UserID))
	s.recorder.Record(user.UserID, domain.ActivityCreate, domain.TargetSystemOdoo, user.RFID)
	return nil
}

func (s *Service) linkBilling(ctx context.Context, user *domain.User, acct *domain.BillingAccount) error {
	err := s.users.LinkBillingAccount(ctx, user.UserID, acct)
	if err == nil {
		user.OdooUserID = &acct.UserID
		if acct.PartnerID != 0 {
			user.OdooPartnerID = &acct.PartnerID
		}
		return nil
	}

	// Lost a race against a concurrent reconcile that linked first.
	if domain.HasCode(err, domain.ErrDefBillingAlreadyLinked) || domain.HasCode(err, domain.ErrDefDuplicateEntry) {
		refreshed, findErr := s.users.FindByID(ctx, user.UserID)
		if findErr == nil && refreshed != nil && refreshed.BillingLinked() {
			*user = *refreshed
			return nil
		}
	}
	return err
}

func (s *Service) provisionChargePoint(ctx context.Context, user *domain.User) error {
	tag, err := s.chargePoint.GetTag(ctx, user.RFID)
	if err != nil {
		return err
	}
	if tag == nil {
		// New tags start blocked; unblocking is an explicit admin action.
		tag, err = s.chargePoint.CreateTag(ctx, user.RFID, true)
		if err != nil {
			return err
		}
	}

	if err := s.users.LinkChargePointAccount(ctx, user.UserID, tag.OcppTagPk); err != nil {
		if domain.HasCode(err, domain.ErrDefDuplicateEntry) {
			refreshed, findErr := s.users.FindByID(ctx, user.UserID)
			if findErr == nil && refreshed != nil && refreshed.ChargePointLinked() {
				*user = *refreshed
				return nil
			}
		}
		return err
	}
	user.SteveID = &tag.OcppTagPk

	s.log.Info("linked charge-point tag",
		zap.Int64("user_id", user.UserID),
		zap.Int64("ocpp_tag_pk", tag.OcppTagPk))
	s.recorder.Record(user.UserID, domain.ActivityCreate, domain.TargetSystemSteve, user.RFID)
	return nil
}

// CreateBillingAccount is the explicit provisioning entry point. Unlike
// Reconcile it treats an already-linked account as an error so the caller
// learns that no fresh key material was produced.
func (s *Service) CreateBillingAccount(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.identify(ctx, identifier, false)
	if err != nil {
		return nil, err
	}
	if user.BillingLinked() {
		return nil, domain.NewValidationError(domain.ErrDefBillingAlreadyLinked, "")
	}

	if err := s.provisionBilling(ctx, user); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, user.UserID)
}

func (s *Service) PortalLogin(ctx context.Context, identifier string) (string, error) {
	user, err := s.identify(ctx, identifier, true)
	if err != nil {
		return "", err
	}

	cred, err := s.credentials.Active(ctx, user.UserID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", domain.NewValidationError(domain.ErrDefNoCredentials, "")
	}

	return s.billing.PortalLoginURL(*user.OdooUserID, cred.Key, cred.Salt)
}

// RotateAPIKey performs the signed rotation handshake. The remote swap and
// the local write are not a distributed transaction: once the backend has
// acknowledged the new key, a local write failure leaves the old material
// useless and is reported as rotation-not-recorded so an operator can
// re-rotate.
func (s *Service) RotateAPIKey(ctx context.Context, identifier string) (*domain.APIKeyCredential, error) {
	user, err := s.identify(ctx, identifier, true)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.Active(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.NewValidationError(domain.ErrDefNoCredentials, "")
	}

	acct, err := s.billing.RotateAPIKey(ctx, *user.OdooUserID, cred.Key, cred.Salt)
	if err != nil {
		return nil, err
	}
	if acct.UserID != *user.OdooUserID {
		return nil, domain.NewSystemError(domain.ErrDefIDMismatch,
			"rotation response names user "+strconv.FormatInt(acct.UserID, 10), nil)
	}

	newCred, err := s.credentials.Rotate(ctx, user.UserID, cred.KeyID, acct.Key, acct.KeySalt)
	if err != nil {
		s.log.Error("rotation accepted remotely but not recorded",
			zap.Int64("user_id", user.UserID),
			zap.Int64("key_id", cred.KeyID),
			zap.Error(err))
		return nil, domain.NewSystemError(domain.ErrDefRotationNotRecorded, "", err)
	}

	s.recorder.Record(user.UserID, domain.ActivityKeyRotation, domain.TargetSystemOdoo, user.RFID)
	return newCred, nil
}

func (s *Service) Block(ctx context.Context, identifier string) error {
	return s.setBlocked(ctx, identifier, true)
}

func (s *Service) Unblock(ctx context.Context, identifier string) error {
	return s.setBlocked(ctx, identifier, false)
}

func (s *Service) setBlocked(ctx context.Context, identifier string, blocked bool) error {
	user, err := s.identify(ctx, identifier, false)
	if err != nil {
		return err
	}
	if !user.ChargePointLinked() {
		return domain.NewValidationError(domain.ErrDefTagNotLinked, "")
	}

	if _, err := s.chargePoint.SetTagBlocked(ctx, *user.SteveID, user.RFID, blocked); err != nil {
		return err
	}

	event := domain.ActivityUnblock
	if blocked {
		event = domain.ActivityBlock
	}
	s.recorder.Record(user.UserID, event, domain.TargetSystemSteve, user.RFID)
	return nil
}

// identify resolves a user by numeric id or oauth subject.
func (s *Service) identify(ctx context.Context, identifier string, requireBilling bool) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.NewValidationError(domain.ErrDefMissingParameters, "user identifier is required")
	}

	var user *domain.User
	var err error
	if id, convErr := strconv.ParseInt(identifier, 10, 64); convErr == nil {
		user, err = s.users.FindByID(ctx, id)
	} else {
		user, err = s.users.FindByOauthID(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewValidationError(domain.ErrDefUserNotFound, "")
	}
	if requireBilling && !user.BillingLinked() {
		return nil, domain.NewValidationError(domain.ErrDefBillingNotLinked, "")
	}
	return user, nil
}

// placeholderRFID produces a tag value for users whose physical card is not
// yet registered. 14 hex characters fits the OCPP idTag limit of 20.
func placeholderRFID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:14])
}
