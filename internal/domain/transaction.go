package domain

import (
	"time"
)

// ChargingTransaction is a charging session as recorded locally. SteveID is
// the charge-point backend's transaction id and is the identity of the
// record; once stop_timestamp is set and re-ingestion observes the same
// value, the row is final and is not rewritten.
type ChargingTransaction struct {
	ID             int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	SteveID        int64      `json:"tx_steve_id" gorm:"uniqueIndex;column:tx_steve_id"`
	ConnectorID    *int       `json:"connector_id,omitempty" gorm:"column:connector_id"`
	ChargeBoxPk    *int64     `json:"charge_box_pk,omitempty" gorm:"column:charge_box_pk"`
	OcppTagPk      int64      `json:"ocpp_tag_pk" gorm:"column:ocpp_tag_pk"`
	ChargeBoxID    *string    `json:"charge_box_id,omitempty" gorm:"column:charge_box_id"`
	OcppIDTag      string     `json:"ocpp_id_tag" gorm:"column:ocpp_id_tag"`
	StartTimestamp time.Time  `json:"start_timestamp"`
	StopTimestamp  *time.Time `json:"stop_timestamp,omitempty"`
	StartValue     float64    `json:"start_value"`
	StopValue      *float64   `json:"stop_value,omitempty"`
	StopReason     *string    `json:"stop_reason,omitempty"`
	StopEventActor *string    `json:"stop_event_actor,omitempty"`
	UserID         *int64     `json:"user_id,omitempty" gorm:"column:user_id"`
	InvoiceRef     *string    `json:"invoice_ref,omitempty" gorm:"column:invoice_ref"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (ChargingTransaction) TableName() string {
	return "charging_transactions"
}

// Final reports whether the session has ended and the record may be treated
// as immutable.
func (t *ChargingTransaction) Final() bool {
	return t.StopTimestamp != nil
}

// EnergyWh returns the metered energy of a finished session.
func (t *ChargingTransaction) EnergyWh() float64 {
	if t.StopValue == nil {
		return 0
	}
	return *t.StopValue - t.StartValue
}
