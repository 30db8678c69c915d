package domain

// EventType identifies the kind of state change an event records.
type EventType string

const (
	EventCreate   EventType = "create"
	EventDeposit  EventType = "deposit"
	EventWithdraw EventType = "withdraw"
)

// Event is a single immutable entry in an account's history.
//
// Version is the aggregate version after the event is applied. Timestamp
// is the ordering token the log assigns at append time (a Redis stream
// entry ID); it is never part of the serialized payload.
type Event struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Type      EventType `json:"type"`
	Amount    int64     `json:"amount,omitempty"`
	Timestamp string    `json:"-"`
}

// Delta returns the signed funds change the event contributes to a
// materialized view: deposits add, withdrawals subtract, everything
// else (including create) contributes nothing.
func (e Event) Delta() int64 {
	switch e.Type {
	case EventDeposit:
		return e.Amount
	case EventWithdraw:
		return -e.Amount
	default:
		return 0
	}
}
