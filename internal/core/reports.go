package core

import "github.com/shopspring/decimal"

// OutstandingStatus classifies a lend/borrow entry by how much of it has
// been repaid.
type OutstandingStatus string

const (
	StatusOngoing OutstandingStatus = "ongoing"
	StatusPartial OutstandingStatus = "partial"
	StatusPaid    OutstandingStatus = "paid"
)

// SourceBalance is one row of the balances view. AvailableCredit is set for
// credit-card sources only.
type SourceBalance struct {
	SourceID        string
	Name            string
	Type            SourceType
	Currency        string
	CurrentBalance  decimal.Decimal
	AvailableCredit *decimal.Decimal
}

// OutstandingEntry is the derived repayment state of one lend/borrow
// transaction: original amount minus the sum of linked repayments.
type OutstandingEntry struct {
	TransactionID string
	Counterparty  string
	Date          Date
	Amount        decimal.Decimal
	Repaid        decimal.Decimal
	Outstanding   decimal.Decimal
	Status        OutstandingStatus
}

// MonthSummary aggregates one calendar month of transactions. Transfer legs
// are internal movement and are excluded from the income/expense sums.
type MonthSummary struct {
	Month        string // YYYY-MM
	Income       decimal.Decimal
	Expense      decimal.Decimal
	Transactions int
}

// BalanceDrift reports a source whose stored balance disagrees with the
// balance recomputed from the transaction log.
type BalanceDrift struct {
	SourceID string
	Name     string
	Stored   decimal.Decimal
	Computed decimal.Decimal
}

// Overview bundles the aggregate views for one owner.
type Overview struct {
	Balances  []SourceBalance
	Lending   []OutstandingEntry
	Borrowing []OutstandingEntry
	Months    []MonthSummary
}

// StatusFor derives the repayment status from the amounts.
func StatusFor(amount, repaid decimal.Decimal) OutstandingStatus {
	switch {
	case repaid.IsZero():
		return StatusOngoing
	case repaid.GreaterThanOrEqual(amount):
		return StatusPaid
	default:
		return StatusPartial
	}
}
