package sync

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/adapter/queue"
	"github.com/mincom-smart/chargebridge/internal/domain"
)

// RunRecord is the journal's view of one completed sync run, rebuilt from
// the sync.run.completed event.
type RunRecord struct {
	Mode       string               `json:"mode"`
	Result     domain.SyncRunResult `json:"result"`
	ReceivedAt time.Time            `json:"received_at"`
}

// RunJournal keeps the most recent completed run in memory for the status
// endpoint. It is fed through the broker rather than the service so an
// operator console attached to one instance sees runs from every replica.
type RunJournal struct {
	mu   sync.RWMutex
	last *RunRecord
	log  *zap.Logger
	now  func() time.Time
}

func NewRunJournal(mq queue.MessageQueue, log *zap.Logger) (*RunJournal, error) {
	j := &RunJournal{
		log: log,
		now: time.Now,
	}
	if err := mq.Subscribe(queue.SubjectSyncCompleted, j.record); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *RunJournal) record(data []byte) error {
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("malformed sync run event: %w", err)
	}
	rec.ReceivedAt = j.now().UTC()

	j.mu.Lock()
	j.last = &rec
	j.mu.Unlock()

	j.log.Debug("sync run recorded",
		zap.String("mode", rec.Mode),
		zap.Int("persisted", rec.Result.Persisted))
	return nil
}

// LastRun returns the most recent run seen on the broker, or nil before the
// first one arrives.
func (j *RunJournal) LastRun() *RunRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}
