package queue

// MessageQueue is the interface for publishing audit and billing events.
// Publishing is best-effort everywhere in this service: a failed publish is
// logged, never propagated.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// Subjects emitted by this service.
const (
	SubjectUserActivity   = "user.activity"
	SubjectInvoiceCreated = "billing.invoice.created"
	SubjectSyncCompleted  = "sync.run.completed"
)
