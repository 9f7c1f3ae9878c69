package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event kinds written by the domain services. The coordinator appends
// these in the same transaction as the state change; the relay ships
// them out afterwards, so a slow or dead broker never blocks a status
// write.
const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderCancelled       = "order.cancelled"
	EventOrderRefunded        = "order.refunded"
	EventPaymentStatusChanged = "payment.status_changed"
)

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   int64
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}
