package entity

import "errors"

// BalanceLedger tracks the consumable token budget for the remote AI
// service. The server-reported figure is the only ground truth: client
// computed deltas are transient estimates that the next authoritative
// value overwrites.
type BalanceLedger struct {
	balance    int64
	authorized bool
	estimated  bool
}

// NewBalanceLedger creates an empty ledger with no known balance.
func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{}
}

// Balance returns the current balance figure. Valid only once a
// server-reported value has been observed (Known returns true).
func (l *BalanceLedger) Balance() int64 {
	return l.balance
}

// Known returns true once at least one authoritative value was recorded.
func (l *BalanceLedger) Known() bool {
	return l.authorized
}

// IsEstimate returns true while the current figure is a client-side
// estimate awaiting the next authoritative update.
func (l *BalanceLedger) IsEstimate() bool {
	return l.estimated
}

// SetAuthoritative overwrites the ledger with a server-reported balance.
// Negative server figures are rejected; the budget can never go negative.
func (l *BalanceLedger) SetAuthoritative(balance int64) error {
	if balance < 0 {
		return errors.New("balance cannot be negative")
	}
	l.balance = balance
	l.authorized = true
	l.estimated = false
	return nil
}

// ApplyEstimate subtracts a client-computed token cost as an optimistic
// estimate. The result is floored at zero and flagged as an estimate
// until the next authoritative value arrives. Estimates before any
// authoritative value are ignored.
func (l *BalanceLedger) ApplyEstimate(tokens int64) {
	if !l.authorized || tokens <= 0 {
		return
	}
	l.balance -= tokens
	if l.balance < 0 {
		l.balance = 0
	}
	l.estimated = true
}
