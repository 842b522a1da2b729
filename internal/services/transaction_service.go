package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneta/internal/amqp"
	"moneta/internal/core"
)

// TransactionService owns single-source ledger entries. Every write couples
// the row and the one balance change in a single atomic storage step; the
// referential checks (source, category, repayment link) happen here.
type TransactionService struct {
	store      TransactionStore
	sources    SourceStore
	categories CategoryStore
	events     EventPublisher
}

func NewTransactionService(store TransactionStore, sources SourceStore, categories CategoryStore, events EventPublisher) *TransactionService {
	return &TransactionService{store: store, sources: sources, categories: categories, events: events}
}

// TransactionInput carries the caller-supplied fields of a non-transfer
// transaction.
type TransactionInput struct {
	Date                 core.Date
	Type                 core.TransactionType
	CategoryID           string
	SubCategoryID        string
	SourceID             string
	Amount               decimal.Decimal
	Notes                string
	Counterparty         string
	RelatedTransactionID string
}

func (s *TransactionService) Create(ctx context.Context, owner string, in TransactionInput) (core.Transaction, error) {
	now := time.Now().UTC()
	t := core.Transaction{
		ID:                   uuid.NewString(),
		Owner:                owner,
		Date:                 in.Date,
		Type:                 in.Type,
		CategoryID:           in.CategoryID,
		SubCategoryID:        in.SubCategoryID,
		SourceID:             in.SourceID,
		Amount:               in.Amount,
		Notes:                in.Notes,
		Counterparty:         in.Counterparty,
		RelatedTransactionID: in.RelatedTransactionID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkReferences(ctx, owner, t); err != nil {
		return core.Transaction{}, err
	}

	if err := withConflictRetry(func() error {
		return s.store.CreateTransaction(ctx, t)
	}); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	publishEvent(ctx, s.events, amqp.EntityTransaction, t.ID, owner, amqp.OpCreated)
	return t, nil
}

// Update rewrites a transaction. The source is immutable (move = delete +
// create); the balance delta between old and new signed amounts is applied,
// never the new amount from scratch.
func (s *TransactionService) Update(ctx context.Context, owner, id string, in TransactionInput) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if old.Type == core.TypeTransfer {
		// Transfer legs are managed by the coordinator; hide them here.
		return core.Transaction{}, fmt.Errorf("update transaction: %w", core.ErrNotFound)
	}
	if in.SourceID != "" && in.SourceID != old.SourceID {
		return core.Transaction{}, core.Validationf("source_id", "immutable; delete and recreate to move sources")
	}

	updated := old
	updated.Date = in.Date
	updated.Type = in.Type
	updated.CategoryID = in.CategoryID
	updated.SubCategoryID = in.SubCategoryID
	updated.Amount = in.Amount
	updated.Notes = in.Notes
	updated.Counterparty = in.Counterparty
	updated.RelatedTransactionID = in.RelatedTransactionID
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkReferences(ctx, owner, updated); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, old, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	publishEvent(ctx, s.events, amqp.EntityTransaction, id, owner, amqp.OpUpdated)
	return updated, nil
}

// Delete removes a transaction and reverses its balance effect. Lend/borrow
// entries with linked repayments are refused with ErrConflict; the store
// checks inside the delete transaction, so a repayment created concurrently
// cannot slip past the refusal.
func (s *TransactionService) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.store.DeleteTransaction(ctx, owner, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	publishEvent(ctx, s.events, amqp.EntityTransaction, id, owner, amqp.OpDeleted)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, owner, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, owner, id)
}

// List returns the owner's transactions, optionally filtered to a YYYY-MM
// month.
func (s *TransactionService) List(ctx context.Context, owner, month string) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, owner, month)
}

// checkReferences verifies that everything the transaction points at exists
// and belongs to the same owner. Cross-owner references fail closed as
// not-found.
func (s *TransactionService) checkReferences(ctx context.Context, owner string, t core.Transaction) error {
	if _, err := s.sources.GetSource(ctx, owner, t.SourceID); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if t.CategoryID != "" {
		if _, err := s.categories.GetCategory(ctx, owner, t.CategoryID); err != nil {
			return fmt.Errorf("category: %w", err)
		}
	}
	if t.SubCategoryID != "" {
		sc, err := s.categories.GetSubCategory(ctx, owner, t.SubCategoryID)
		if err != nil {
			return fmt.Errorf("subcategory: %w", err)
		}
		if sc.CategoryID != t.CategoryID {
			return core.Validationf("subcategory_id", "does not belong to category %s", t.CategoryID)
		}
	}
	if t.Type.IsRepayment() {
		related, err := s.store.GetTransaction(ctx, owner, t.RelatedTransactionID)
		if err != nil {
			return fmt.Errorf("related transaction: %w", err)
		}
		want := core.TypeLend
		if t.Type == core.TypeBorrowRepayment {
			want = core.TypeBorrow
		}
		if related.Type != want {
			return core.Validationf("related_transaction_id", "%s must link a %s transaction", t.Type, want)
		}
	}
	return nil
}
