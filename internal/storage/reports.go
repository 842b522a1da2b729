package storage

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"moneta/internal/core"
)

// Aggregates are derived in Go rather than in SQL: amounts live as decimal
// text and SQLite's SUM would go through floats. Every view here is a pure
// function of the sources table and the transaction log.

func (r *SQLiteRepository) SourceBalances(ctx context.Context, owner string) ([]core.SourceBalance, error) {
	sources, err := r.ListSources(ctx, owner)
	if err != nil {
		return nil, err
	}
	balances := make([]core.SourceBalance, 0, len(sources))
	for _, s := range sources {
		b := core.SourceBalance{
			SourceID:       s.ID,
			Name:           s.Name,
			Type:           s.Type,
			Currency:       s.Currency,
			CurrentBalance: s.CurrentBalance,
		}
		if avail, ok := s.AvailableCredit(); ok {
			b.AvailableCredit = &avail
		}
		balances = append(balances, b)
	}
	return balances, nil
}

// outstanding builds the derived repayment view for one lend/borrow type.
func (r *SQLiteRepository) outstanding(ctx context.Context, owner string, principal core.TransactionType) ([]core.OutstandingEntry, error) {
	txs, err := r.ListTransactions(ctx, owner, "")
	if err != nil {
		return nil, err
	}

	repaid := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if t.Type.IsRepayment() && t.RelatedTransactionID != "" {
			repaid[t.RelatedTransactionID] = repaid[t.RelatedTransactionID].Add(t.Amount)
		}
	}

	var entries []core.OutstandingEntry
	for _, t := range txs {
		if t.Type != principal {
			continue
		}
		rep := repaid[t.ID]
		entries = append(entries, core.OutstandingEntry{
			TransactionID: t.ID,
			Counterparty:  t.Counterparty,
			Date:          t.Date,
			Amount:        t.Amount,
			Repaid:        rep,
			Outstanding:   t.Amount.Sub(rep),
			Status:        core.StatusFor(t.Amount, rep),
		})
	}
	// Deterministic output: same log, same order.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Counterparty != entries[j].Counterparty {
			return entries[i].Counterparty < entries[j].Counterparty
		}
		return entries[i].TransactionID < entries[j].TransactionID
	})
	return entries, nil
}

func (r *SQLiteRepository) LendingOutstanding(ctx context.Context, owner string) ([]core.OutstandingEntry, error) {
	return r.outstanding(ctx, owner, core.TypeLend)
}

func (r *SQLiteRepository) BorrowingOutstanding(ctx context.Context, owner string) ([]core.OutstandingEntry, error) {
	return r.outstanding(ctx, owner, core.TypeBorrow)
}

// MonthlySummary groups the owner's transactions by calendar month. Transfer
// legs move money between the owner's own sources and are excluded from the
// income/expense sums but still counted.
func (r *SQLiteRepository) MonthlySummary(ctx context.Context, owner string) ([]core.MonthSummary, error) {
	txs, err := r.ListTransactions(ctx, owner, "")
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*core.MonthSummary)
	for _, t := range txs {
		key := t.Date.MonthKey()
		m, ok := byMonth[key]
		if !ok {
			m = &core.MonthSummary{Month: key}
			byMonth[key] = m
		}
		m.Transactions++
		if t.Type == core.TypeTransfer {
			continue
		}
		if t.Type.Direction() > 0 {
			m.Income = m.Income.Add(t.Amount)
		} else {
			m.Expense = m.Expense.Add(t.Amount)
		}
	}

	months := make([]core.MonthSummary, 0, len(byMonth))
	for _, m := range byMonth {
		months = append(months, *m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month > months[j].Month })
	return months, nil
}

// VerifyBalances recomputes every source balance from initial_balance plus
// the signed transaction log and returns the sources whose stored balance
// disagrees. An empty result means the ledger is internally consistent.
func (r *SQLiteRepository) VerifyBalances(ctx context.Context, owner string) ([]core.BalanceDrift, error) {
	sources, err := r.ListSources(ctx, owner)
	if err != nil {
		return nil, err
	}
	txs, err := r.ListTransactions(ctx, owner, "")
	if err != nil {
		return nil, err
	}

	effect := make(map[string]decimal.Decimal)
	for _, t := range txs {
		effect[t.SourceID] = effect[t.SourceID].Add(t.SignedAmount())
	}

	var drifts []core.BalanceDrift
	for _, s := range sources {
		computed := s.InitialBalance.Add(effect[s.ID])
		if !computed.Equal(s.CurrentBalance) {
			drifts = append(drifts, core.BalanceDrift{
				SourceID: s.ID,
				Name:     s.Name,
				Stored:   s.CurrentBalance,
				Computed: computed,
			})
		}
	}
	return drifts, nil
}
