package domain

import "github.com/shopspring/decimal"

// MaxAmountExponent bounds the decimal exponent of balances, amounts and
// prices, so 1e-64 and 1e64 are the finest and coarsest accepted scales.
const MaxAmountExponent = 64

func amountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -MaxAmountExponent && exp <= MaxAmountExponent
}

// Ledger holds a balance and enforces the overdraft rule on decrements.
type Ledger struct {
	balance decimal.Decimal
}

// NewLedger returns a ledger opened at balance.
func NewLedger(balance decimal.Decimal) Ledger {
	return Ledger{balance: balance}
}

// Balance returns the current balance.
func (l *Ledger) Balance() decimal.Decimal {
	return l.balance
}

// IncrementBalance adds amount to the balance.
func (l *Ledger) IncrementBalance(amount decimal.Decimal) error {
	if amount.IsNegative() || !amountInRange(amount) {
		return ErrInvalidAmount
	}
	l.balance = l.balance.Add(amount)
	return nil
}

// DecrementBalance subtracts amount from the balance. With preventOverdraw set
// the balance is left untouched when amount exceeds it.
func (l *Ledger) DecrementBalance(amount decimal.Decimal, preventOverdraw bool) error {
	if amount.IsNegative() || !amountInRange(amount) {
		return ErrInvalidAmount
	}
	if preventOverdraw && amount.GreaterThan(l.balance) {
		return ErrBalanceOverdraw
	}
	l.balance = l.balance.Sub(amount)
	return nil
}
