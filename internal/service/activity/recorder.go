package activity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/adapter/queue"
	"github.com/mincom-smart/chargebridge/internal/domain"
	"github.com/mincom-smart/chargebridge/internal/ports"
)

// Recorder writes audit entries asynchronously so a slow activity table or
// message broker never stalls a provisioning flow. Entries are dropped with a
// log line when the buffer is full; the audit trail is best-effort by
// contract.
type Recorder struct {
	repo ports.ActivityRepository
	mq   queue.MessageQueue
	log  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan *domain.ActivityLogEntry
	done    chan struct{}
	once    sync.Once
}

func NewRecorder(repo ports.ActivityRepository, mq queue.MessageQueue, log *zap.Logger) *Recorder {
	r := &Recorder{
		repo:    repo,
		mq:      mq,
		log:     log,
		entries: make(chan *domain.ActivityLogEntry, 256),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an audit entry without blocking the caller.
func (r *Recorder) Record(userID int64, event domain.ActivityEvent, targetSystem, rfid string) {
	entry := &domain.ActivityLogEntry{
		UserID:       userID,
		EventType:    event,
		TargetSystem: targetSystem,
		RFID:         rfid,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn("activity recorder closed, dropping entry",
			zap.Int64("user_id", userID),
			zap.String("event", string(event)))
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.log.Warn("activity buffer full, dropping entry",
			zap.Int64("user_id", userID),
			zap.String("event", string(event)))
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for entry := range r.entries {
		r.persist(entry)
	}
}

func (r *Recorder) persist(entry *domain.ActivityLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.Record(ctx, entry); err != nil {
		r.log.Error("failed to record activity",
			zap.Int64("user_id", entry.UserID),
			zap.String("event", string(entry.EventType)),
			zap.Error(err))
	}

	if r.mq == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := r.mq.Publish(queue.SubjectUserActivity, payload); err != nil {
		r.log.Warn("failed to publish activity event", zap.Error(err))
	}
}

// Close stops accepting entries and drains what is buffered. Record stays
// safe to call afterwards; late entries are dropped.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.entries)
		<-r.done
	})
}
