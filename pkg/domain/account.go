package domain

// Account is the write-side aggregate: pure state plus the commands
// that guard its invariants. The canonical state lives on the event
// log; an Account instance is only ever a fold of that history.
type Account struct {
	ID        string
	Version   int64
	Timestamp string
	Funds     int64
}

// NewAccount returns an account that has not been hydrated yet. Its
// empty Timestamp makes a rehydration read the stream from the start.
func NewAccount(id string) *Account {
	return &Account{ID: id}
}

// Deposit increases the balance. The amount must be positive.
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.Funds += amount
	return nil
}

// Withdraw decreases the balance. The amount must be positive and the
// balance must never go below zero.
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Funds-amount < 0 {
		return ErrInsufficientFunds
	}
	a.Funds -= amount
	return nil
}

// Rehydrate folds a sequence of events into the aggregate. Events for
// a different account are skipped, as is an event whose timestamp
// equals the aggregate's current one (already applied). Every applied
// event advances Version and Timestamp; deposit and withdraw events
// additionally move funds. Given the log's ordering the fold is
// deterministic.
func (a *Account) Rehydrate(events []Event) {
	for _, evt := range events {
		if evt.ID != a.ID || evt.Timestamp == a.Timestamp {
			continue
		}
		a.Version = evt.Version
		a.Timestamp = evt.Timestamp
		switch evt.Type {
		case EventDeposit:
			a.Funds += evt.Amount
		case EventWithdraw:
			a.Funds -= evt.Amount
		}
	}
}

// Snapshot is the read model of a single hydrated aggregate, as served
// by the write side's fetch operation.
type Snapshot struct {
	ID        string `json:"id"`
	Version   int64  `json:"version"`
	Timestamp string `json:"timestamp"`
	Funds     int64  `json:"funds"`
}

// Snapshot projects the aggregate into its transport form.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		ID:        a.ID,
		Version:   a.Version,
		Timestamp: a.Timestamp,
		Funds:     a.Funds,
	}
}
