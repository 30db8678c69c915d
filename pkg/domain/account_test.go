package domain_test

import (
	"errors"
	"testing"

	"github.com/plaenen/accountledger/pkg/domain"
)

func TestAccount_Deposit(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wantErr error
		want    int64
	}{
		{name: "positive amount", amount: 100, want: 100},
		{name: "zero amount", amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", amount: -5, wantErr: domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := domain.NewAccount("acc-1")
			err := acct.Deposit(tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Deposit() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && acct.Funds != tt.want {
				t.Errorf("funds = %d, want %d", acct.Funds, tt.want)
			}
		})
	}
}

func TestAccount_Withdraw(t *testing.T) {
	tests := []struct {
		name    string
		funds   int64
		amount  int64
		wantErr error
		want    int64
	}{
		{name: "full balance", funds: 100, amount: 100, want: 0},
		{name: "partial balance", funds: 100, amount: 40, want: 60},
		{name: "below zero", funds: 10, amount: 11, wantErr: domain.ErrInsufficientFunds},
		{name: "zero balance", funds: 0, amount: 1, wantErr: domain.ErrInsufficientFunds},
		{name: "zero amount", funds: 100, amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", funds: 100, amount: -1, wantErr: domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := domain.NewAccount("acc-1")
			acct.Funds = tt.funds
			err := acct.Withdraw(tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Withdraw() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && acct.Funds != tt.want {
				t.Errorf("funds = %d, want %d", acct.Funds, tt.want)
			}
			if err != nil && acct.Funds != tt.funds {
				t.Errorf("failed withdraw mutated funds: %d", acct.Funds)
			}
		})
	}
}

func history() []domain.Event {
	return []domain.Event{
		{ID: "acc-1", Version: 1, Type: domain.EventCreate, Timestamp: "1000-0"},
		{ID: "acc-1", Version: 2, Type: domain.EventDeposit, Amount: 100, Timestamp: "1001-0"},
		{ID: "acc-1", Version: 3, Type: domain.EventWithdraw, Amount: 30, Timestamp: "1002-0"},
	}
}

func TestAccount_Rehydrate(t *testing.T) {
	acct := domain.NewAccount("acc-1")
	acct.Rehydrate(history())

	if acct.Funds != 70 {
		t.Errorf("funds = %d, want 70", acct.Funds)
	}
	if acct.Version != 3 {
		t.Errorf("version = %d, want 3", acct.Version)
	}
	if acct.Timestamp != "1002-0" {
		t.Errorf("timestamp = %s, want 1002-0", acct.Timestamp)
	}
}

func TestAccount_Rehydrate_SkipsForeignAndApplied(t *testing.T) {
	acct := domain.NewAccount("acc-1")
	acct.Version = 3
	acct.Timestamp = "1002-0"
	acct.Funds = 70

	acct.Rehydrate([]domain.Event{
		// Different account.
		{ID: "acc-2", Version: 9, Type: domain.EventDeposit, Amount: 500, Timestamp: "1003-0"},
		// Already applied.
		{ID: "acc-1", Version: 3, Type: domain.EventWithdraw, Amount: 30, Timestamp: "1002-0"},
	})

	if acct.Funds != 70 || acct.Version != 3 || acct.Timestamp != "1002-0" {
		t.Errorf("state changed: funds=%d version=%d ts=%s", acct.Funds, acct.Version, acct.Timestamp)
	}
}

func TestAccount_Rehydrate_IsIdempotentFromCurrent(t *testing.T) {
	full := domain.NewAccount("acc-1")
	full.Rehydrate(history())

	// Folding the tail on top of an up-to-date aggregate is a no-op
	// only for the exact last event; everything strictly newer applies.
	again := *full
	again.Rehydrate(history()[2:])
	if again != *full {
		t.Errorf("refold diverged: %+v vs %+v", again, *full)
	}
}

func TestEvent_Delta(t *testing.T) {
	tests := []struct {
		evt  domain.Event
		want int64
	}{
		{domain.Event{Type: domain.EventCreate}, 0},
		{domain.Event{Type: domain.EventDeposit, Amount: 25}, 25},
		{domain.Event{Type: domain.EventWithdraw, Amount: 25}, -25},
		{domain.Event{Type: "unknown", Amount: 25}, 0},
	}
	for _, tt := range tests {
		if got := tt.evt.Delta(); got != tt.want {
			t.Errorf("Delta(%s) = %d, want %d", tt.evt.Type, got, tt.want)
		}
	}
}
