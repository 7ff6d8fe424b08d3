package domain

import (
	"time"
)

// OcppTag is a tag record as returned by the charge-point backend's
// ocppTags API. A blocked tag has maxActiveTransactionCount 0, an active
// one has 1.
type OcppTag struct {
	OcppTagPk                 int64      `json:"ocppTagPk"`
	IDTag                     string     `json:"idTag"`
	InTransaction             bool       `json:"inTransaction"`
	Blocked                   bool       `json:"blocked"`
	MaxActiveTransactionCount int        `json:"maxActiveTransactionCount"`
	ExpiryDate                *time.Time `json:"expiryDate,omitempty"`
	ActiveTransactionCount    *int       `json:"activeTransactionCount,omitempty"`
	Note                      string     `json:"note,omitempty"`
}

// StoppedSession is the wire shape of a STOPPED transaction from the
// charge-point backend. Meter values and timestamps arrive as strings and
// are validated into a ChargingTransaction by the sync engine.
type StoppedSession struct {
	ID             int64   `json:"id"`
	ConnectorID    *int    `json:"connectorId"`
	ChargeBoxPk    *int64  `json:"chargeBoxPk"`
	OcppTagPk      int64   `json:"ocppTagPk"`
	ChargeBoxID    *string `json:"chargeBoxId"`
	OcppIDTag      string  `json:"ocppIdTag"`
	StartTimestamp string  `json:"startTimestamp"`
	StopTimestamp  string  `json:"stopTimestamp"`
	StartValue     string  `json:"startValue"`
	StopValue      string  `json:"stopValue"`
	StopReason     string  `json:"stopReason"`
	StopEventActor string  `json:"stopEventActor"`
}
