// Package services holds the orchestration layer of the ledger: validation,
// owner scoping, multi-step compensation, and event publication on top of
// the storage ports.
package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"moneta/internal/amqp"
	"moneta/internal/core"
)

// Storage ports. The SQLite repository implements all of them; tests inject
// fakes to exercise failure paths the real store can't produce on demand.
type (
	SourceStore interface {
		CreateSource(ctx context.Context, s core.Source) error
		GetSource(ctx context.Context, owner, id string) (core.Source, error)
		ListSources(ctx context.Context, owner string) ([]core.Source, error)
		UpdateSource(ctx context.Context, s core.Source) error
		DeleteSource(ctx context.Context, owner, id string) error
		UpsertCreditCard(ctx context.Context, cc core.CreditCardDetails) error
		DeleteCreditCard(ctx context.Context, owner, sourceID string) error
		AdjustBalance(ctx context.Context, owner, id string, delta decimal.Decimal) error
		SourceHasHistory(ctx context.Context, owner, id string) (bool, error)
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, owner, id string) (core.Category, error)
		ListCategories(ctx context.Context, owner string) ([]core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, owner, id string) error
		CategoryInUse(ctx context.Context, owner, id string) (bool, error)
		CreateSubCategory(ctx context.Context, sc core.SubCategory) error
		GetSubCategory(ctx context.Context, owner, id string) (core.SubCategory, error)
		ListSubCategories(ctx context.Context, owner, categoryID string) ([]core.SubCategory, error)
		UpdateSubCategory(ctx context.Context, sc core.SubCategory) error
		DeleteSubCategory(ctx context.Context, owner, id string) error
		SubCategoryInUse(ctx context.Context, owner, id string) (bool, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, owner, month string) ([]core.Transaction, error)
		UpdateTransaction(ctx context.Context, old, updated core.Transaction) error
		DeleteTransaction(ctx context.Context, owner, id string) (core.Transaction, error)
		InsertTransferLeg(ctx context.Context, t core.Transaction) error
		DeleteTransferLeg(ctx context.Context, owner, id string) error
		GetTransferLegs(ctx context.Context, owner, transferID string) ([]core.Transaction, error)
		UpdateTransferLeg(ctx context.Context, old, updated core.Transaction) error
		DeleteTransferLegs(ctx context.Context, owner, transferID string, amount decimal.Decimal) (int, error)
	}

	ReportStore interface {
		SourceBalances(ctx context.Context, owner string) ([]core.SourceBalance, error)
		LendingOutstanding(ctx context.Context, owner string) ([]core.OutstandingEntry, error)
		BorrowingOutstanding(ctx context.Context, owner string) ([]core.OutstandingEntry, error)
		MonthlySummary(ctx context.Context, owner string) ([]core.MonthSummary, error)
		VerifyBalances(ctx context.Context, owner string) ([]core.BalanceDrift, error)
	}

	// EventPublisher is the outbound event stream. A nil publisher disables
	// events; a failing one is logged and ignored, since the ledger write
	// has already committed.
	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, event amqp.LedgerEvent) error
	}
)

// publishEvent is the shared best-effort publication path.
func publishEvent(ctx context.Context, pub EventPublisher, entity, id, owner, op string) {
	if pub == nil {
		return
	}
	if err := pub.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(entity, id, owner, op)); err != nil {
		slog.ErrorContext(ctx, "failed to publish ledger event",
			"error", err, "entity", entity, "entity_id", id, "op", op)
	}
}

// casRetries bounds how often an operation retries after losing a
// compare-and-swap race on a source balance.
const casRetries = 3

func withConflictRetry(fn func() error) error {
	var err error
	for i := 0; i < casRetries; i++ {
		err = fn()
		if !errors.Is(err, core.ErrConflict) {
			return err
		}
	}
	return err
}
