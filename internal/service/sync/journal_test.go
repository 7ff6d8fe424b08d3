package sync

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/adapter/queue"
	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/mocks"
)

func newJournalFixture(t *testing.T) (*RunJournal, func([]byte) error) {
	t.Helper()

	var handler func([]byte) error
	mq := mocks.NewMockMessageQueue()
	mq.SubscribeFunc = func(subject string, h func([]byte) error) error {
		if subject != queue.SubjectSyncCompleted {
			t.Fatalf("subscribed to %q, want %q", subject, queue.SubjectSyncCompleted)
		}
		handler = h
		return nil
	}

	journal, err := NewRunJournal(mq, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRunJournal: %v", err)
	}
	if handler == nil {
		t.Fatal("journal did not subscribe")
	}
	return journal, handler
}

func TestRunJournalRecordsLastRun(t *testing.T) {
	journal, deliver := newJournalFixture(t)
	journal.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}

	if journal.LastRun() != nil {
		t.Fatal("expected no run before first event")
	}

	mark := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(map[string]interface{}{
		"mode": "incremental",
		"result": domain.SyncRunResult{
			Fetched:       3,
			Unique:        3,
			Persisted:     2,
			Skipped:       1,
			Invoiced:      2,
			HighWaterMark: &mark,
		},
	})
	if err := deliver(payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	last := journal.LastRun()
	if last == nil {
		t.Fatal("expected a recorded run")
	}
	if last.Mode != "incremental" {
		t.Errorf("mode = %q, want incremental", last.Mode)
	}
	if last.Result.Persisted != 2 || last.Result.Invoiced != 2 {
		t.Errorf("result = %+v, want persisted=2 invoiced=2", last.Result)
	}
	if last.Result.HighWaterMark == nil || !last.Result.HighWaterMark.Equal(mark) {
		t.Errorf("high-water mark = %v, want %v", last.Result.HighWaterMark, mark)
	}
	if !last.ReceivedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("received at = %v", last.ReceivedAt)
	}
}

func TestRunJournalKeepsNewestRun(t *testing.T) {
	journal, deliver := newJournalFixture(t)

	first, _ := json.Marshal(map[string]interface{}{"mode": "full", "result": domain.SyncRunResult{Persisted: 10}})
	second, _ := json.Marshal(map[string]interface{}{"mode": "incremental", "result": domain.SyncRunResult{Persisted: 1}})
	if err := deliver(first); err != nil {
		t.Fatalf("deliver first: %v", err)
	}
	if err := deliver(second); err != nil {
		t.Fatalf("deliver second: %v", err)
	}

	last := journal.LastRun()
	if last.Mode != "incremental" || last.Result.Persisted != 1 {
		t.Errorf("last run = %+v, want the second event", last)
	}
}

func TestRunJournalRejectsMalformedEvent(t *testing.T) {
	journal, deliver := newJournalFixture(t)

	if err := deliver([]byte("{not json")); err == nil {
		t.Fatal("expected an error for a malformed event")
	}
	if journal.LastRun() != nil {
		t.Error("malformed event must not overwrite the journal")
	}
}

func TestRunJournalSubscribeFailure(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	mq.SubscribeFunc = func(string, func([]byte) error) error {
		return errors.New("broker down")
	}

	if _, err := NewRunJournal(mq, zap.NewNop()); err == nil {
		t.Fatal("expected subscribe failure to surface")
	}
}
