package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"moneta/internal/core"
)

// ReportService is the read-only aggregator. Every view is recomputed from
// the source table and the transaction log on demand; nothing here mutates
// state, and re-running any view with no intervening writes yields the same
// result.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

func (s *ReportService) SourceBalances(ctx context.Context, owner string) ([]core.SourceBalance, error) {
	return s.store.SourceBalances(ctx, owner)
}

func (s *ReportService) LendingOutstanding(ctx context.Context, owner string) ([]core.OutstandingEntry, error) {
	return s.store.LendingOutstanding(ctx, owner)
}

func (s *ReportService) BorrowingOutstanding(ctx context.Context, owner string) ([]core.OutstandingEntry, error) {
	return s.store.BorrowingOutstanding(ctx, owner)
}

func (s *ReportService) MonthlySummary(ctx context.Context, owner string) ([]core.MonthSummary, error) {
	return s.store.MonthlySummary(ctx, owner)
}

// Overview fans out the four aggregate reads concurrently. This is the
// advisory dashboard path: a failing view degrades to empty rather than
// failing the whole overview.
func (s *ReportService) Overview(ctx context.Context, owner string) (core.Overview, error) {
	var ov core.Overview

	degrade := func(view string, fn func() error) func() error {
		return func() error {
			if err := fn(); err != nil {
				slog.WarnContext(ctx, "overview view degraded to empty",
					"view", view, "error", err)
			}
			return nil
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(degrade("balances", func() (err error) {
		ov.Balances, err = s.store.SourceBalances(ctx, owner)
		return
	}))
	g.Go(degrade("lending", func() (err error) {
		ov.Lending, err = s.store.LendingOutstanding(ctx, owner)
		return
	}))
	g.Go(degrade("borrowing", func() (err error) {
		ov.Borrowing, err = s.store.BorrowingOutstanding(ctx, owner)
		return
	}))
	g.Go(degrade("months", func() (err error) {
		ov.Months, err = s.store.MonthlySummary(ctx, owner)
		return
	}))

	if err := g.Wait(); err != nil {
		return core.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return ov, nil
}

// VerifyOwner recomputes every source balance from the log and returns the
// drifting sources. Used by the reconciler after mutation events.
func (s *ReportService) VerifyOwner(ctx context.Context, owner string) ([]core.BalanceDrift, error) {
	return s.store.VerifyBalances(ctx, owner)
}
