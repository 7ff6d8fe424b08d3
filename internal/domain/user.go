package domain

import (
	"time"
)

// LinkState describes how far a user has progressed through downstream
// account provisioning.
type LinkState string

const (
	LinkStateLocalOnly     LinkState = "LocalOnly"
	LinkStateBillingLinked LinkState = "BillingLinked"
	LinkStateFullyLinked   LinkState = "FullyLinked"
)

// Subject is the identity asserted by the OIDC provider for an inbound
// request. RFID is optional; a placeholder is generated when absent.
type Subject struct {
	OauthID string `json:"oauth_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	RFID    string `json:"rfid,omitempty"`
}

type User struct {
	UserID        int64     `json:"user_id" gorm:"primaryKey;autoIncrement;column:user_id"`
	OauthID       string    `json:"oauth_id" gorm:"uniqueIndex;column:oauth_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	RFID          string    `json:"rfid" gorm:"uniqueIndex;column:rfid"`
	OdooUserID    *int64    `json:"odoo_user_id,omitempty" gorm:"uniqueIndex;column:odoo_user_id"`
	OdooPartnerID *int64    `json:"odoo_partner_id,omitempty" gorm:"column:odoo_partner_id"`
	SteveID       *int64    `json:"steve_id,omitempty" gorm:"uniqueIndex;column:steve_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BillingLinked reports whether the Odoo account has been provisioned.
// odoo_user_id is written exactly once and never cleared.
func (u *User) BillingLinked() bool {
	return u.OdooUserID != nil
}

// ChargePointLinked reports whether the SteVe OCPP tag has been provisioned.
func (u *User) ChargePointLinked() bool {
	return u.SteveID != nil
}

func (u *User) LinkState() LinkState {
	switch {
	case u.BillingLinked() && u.ChargePointLinked():
		return LinkStateFullyLinked
	case u.BillingLinked():
		return LinkStateBillingLinked
	default:
		return LinkStateLocalOnly
	}
}
