package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// The charge-point backend has emitted timestamps in three shapes across
// versions. All are interpreted as UTC when no zone is present.
var sessionTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseSessionTime(value string) (time.Time, error) {
	for _, layout := range sessionTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func parseMeterValue(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized meter value %q", value)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative meter value %q", value)
	}
	return v, nil
}

func validStopEventActor(actor string) bool {
	switch actor {
	case "", "station", "manual":
		return true
	}
	return false
}

// parseSession validates one wire record and converts it into the local
// representation. The sync run treats any failure here as a schema change
// upstream and aborts the whole batch.
func parseSession(s domain.StoppedSession) (*domain.ChargingTransaction, error) {
	if s.ID <= 0 {
		return nil, fmt.Errorf("session id %d is not positive", s.ID)
	}
	if s.OcppTagPk <= 0 {
		return nil, fmt.Errorf("session %d: ocppTagPk %d is not positive", s.ID, s.OcppTagPk)
	}
	if s.OcppIDTag == "" {
		return nil, fmt.Errorf("session %d: ocppIdTag is empty", s.ID)
	}
	if s.StartTimestamp == "" || s.StopTimestamp == "" {
		return nil, fmt.Errorf("session %d: missing timestamps", s.ID)
	}

	start, err := parseSessionTime(s.StartTimestamp)
	if err != nil {
		return nil, fmt.Errorf("session %d: start: %w", s.ID, err)
	}
	stop, err := parseSessionTime(s.StopTimestamp)
	if err != nil {
		return nil, fmt.Errorf("session %d: stop: %w", s.ID, err)
	}
	if stop.Before(start) {
		return nil, fmt.Errorf("session %d: stop %s precedes start %s", s.ID, s.StopTimestamp, s.StartTimestamp)
	}

	startValue, err := parseMeterValue(s.StartValue)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", s.ID, err)
	}
	stopValue, err := parseMeterValue(s.StopValue)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", s.ID, err)
	}
	if stopValue < startValue {
		return nil, fmt.Errorf("session %d: stop value %s below start value %s", s.ID, s.StopValue, s.StartValue)
	}

	if !validStopEventActor(s.StopEventActor) {
		return nil, fmt.Errorf("session %d: unknown stopEventActor %q", s.ID, s.StopEventActor)
	}

	txn := &domain.ChargingTransaction{
		SteveID:        s.ID,
		ConnectorID:    s.ConnectorID,
		ChargeBoxPk:    s.ChargeBoxPk,
		OcppTagPk:      s.OcppTagPk,
		ChargeBoxID:    s.ChargeBoxID,
		OcppIDTag:      s.OcppIDTag,
		StartTimestamp: start,
		StopTimestamp:  &stop,
		StartValue:     startValue,
		StopValue:      &stopValue,
	}
	if s.StopReason != "" {
		reason := s.StopReason
		txn.StopReason = &reason
	}
	if s.StopEventActor != "" {
		actor := s.StopEventActor
		txn.StopEventActor = &actor
	}
	return txn, nil
}

// validateBatch converts a fetched batch, failing on the first invalid
// record. An invalid record means the upstream contract changed; partial
// ingestion would silently lose data behind an advanced watermark.
func validateBatch(sessions []domain.StoppedSession) ([]*domain.ChargingTransaction, error) {
	txns := make([]*domain.ChargingTransaction, 0, len(sessions))
	for _, s := range sessions {
		txn, err := parseSession(s)
		if err != nil {
			return nil, domain.NewValidationError(domain.ErrDefInvalidFormat, err.Error())
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// dedupe collapses records sharing a backend transaction id. The last
// occurrence wins, in first-seen order. Backends have returned the same id
// twice within one page during boundary races.
func dedupe(txns []*domain.ChargingTransaction) []*domain.ChargingTransaction {
	latest := make(map[int64]*domain.ChargingTransaction, len(txns))
	order := make([]int64, 0, len(txns))
	for _, txn := range txns {
		if _, seen := latest[txn.SteveID]; !seen {
			order = append(order, txn.SteveID)
		}
		latest[txn.SteveID] = txn
	}

	out := make([]*domain.ChargingTransaction, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}
