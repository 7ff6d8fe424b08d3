package sync

import (
	"testing"
	"time"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

func validSession() domain.StoppedSession {
	return domain.StoppedSession{
		ID:             101,
		OcppTagPk:      7,
		OcppIDTag:      "CARD0001",
		StartTimestamp: "2024-01-01T09:00:00Z",
		StopTimestamp:  "2024-01-01T10:00:00Z",
		StartValue:     "1000",
		StopValue:      "2500.5",
		StopReason:     "Local",
		StopEventActor: "station",
	}
}

func TestParseSessionAcceptsKnownTimestampShapes(t *testing.T) {
	shapes := []string{
		"2024-01-01T10:00:00Z",
		"2024-01-01T10:00:00",
		"2024-01-01 10:00:00",
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, shape := range shapes {
		s := validSession()
		s.StopTimestamp = shape

		txn, err := parseSession(s)
		if err != nil {
			t.Errorf("shape %q rejected: %v", shape, err)
			continue
		}
		if !txn.StopTimestamp.Equal(want) {
			t.Errorf("shape %q parsed to %v, want %v", shape, txn.StopTimestamp, want)
		}
	}
}

func TestParseSessionConvertsMeterValues(t *testing.T) {
	txn, err := parseSession(validSession())
	if err != nil {
		t.Fatalf("parseSession() error = %v", err)
	}
	if txn.StartValue != 1000 || *txn.StopValue != 2500.5 {
		t.Errorf("values = %v/%v", txn.StartValue, *txn.StopValue)
	}
	if txn.EnergyWh() != 1500.5 {
		t.Errorf("EnergyWh() = %v", txn.EnergyWh())
	}
}

func TestParseSessionRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.StoppedSession)
	}{
		{"zero id", func(s *domain.StoppedSession) { s.ID = 0 }},
		{"negative tag pk", func(s *domain.StoppedSession) { s.OcppTagPk = -1 }},
		{"empty id tag", func(s *domain.StoppedSession) { s.OcppIDTag = "" }},
		{"missing stop time", func(s *domain.StoppedSession) { s.StopTimestamp = "" }},
		{"garbled stop time", func(s *domain.StoppedSession) { s.StopTimestamp = "yesterday" }},
		{"stop before start", func(s *domain.StoppedSession) { s.StopTimestamp = "2024-01-01T08:00:00Z" }},
		{"non-numeric meter", func(s *domain.StoppedSession) { s.StopValue = "12,5" }},
		{"negative meter", func(s *domain.StoppedSession) { s.StartValue = "-5" }},
		{"meter going backwards", func(s *domain.StoppedSession) { s.StopValue = "900" }},
		{"unknown actor", func(s *domain.StoppedSession) { s.StopEventActor = "gremlin" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(&s)
			if _, err := parseSession(s); err == nil {
				t.Error("parseSession() accepted an invalid record")
			}
		})
	}
}

func TestParseSessionAllowsEmptyActorAndReason(t *testing.T) {
	s := validSession()
	s.StopReason = ""
	s.StopEventActor = ""

	txn, err := parseSession(s)
	if err != nil {
		t.Fatalf("parseSession() error = %v", err)
	}
	if txn.StopReason != nil || txn.StopEventActor != nil {
		t.Error("empty optional fields must map to nil")
	}
}

func TestValidateBatchFailsOnFirstInvalid(t *testing.T) {
	bad := validSession()
	bad.ID = 102
	bad.StopValue = "NaN-ish"

	_, err := validateBatch([]domain.StoppedSession{validSession(), bad})
	if !domain.HasCode(err, domain.ErrDefInvalidFormat) {
		t.Errorf("err = %v, want invalid format", err)
	}
}

func TestDedupeKeepsLastOccurrenceInFirstSeenOrder(t *testing.T) {
	a1, _ := parseSession(validSession())
	b := validSession()
	b.ID = 102
	b1, _ := parseSession(b)
	a2dup := validSession()
	a2dup.StopValue = "2600"
	a2, _ := parseSession(a2dup)

	out := dedupe([]*domain.ChargingTransaction{a1, b1, a2})
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].SteveID != 101 || out[1].SteveID != 102 {
		t.Errorf("order = [%d %d], want [101 102]", out[0].SteveID, out[1].SteveID)
	}
	if *out[0].StopValue != 2600 {
		t.Errorf("stop value = %v, want the later occurrence", *out[0].StopValue)
	}
}
