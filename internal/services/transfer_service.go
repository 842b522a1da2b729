package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneta/internal/amqp"
	"moneta/internal/core"
)

// TransferService coordinates two-sided transfers. The storage boundary only
// offers single-row writes, so every entry point runs as a compensating
// action sequence: each applied step is reversed when a later step fails,
// and a failed reversal surfaces as the fatal CompensationFailure.
type TransferService struct {
	store   TransactionStore
	sources SourceStore
	events  EventPublisher
}

func NewTransferService(store TransactionStore, sources SourceStore, events EventPublisher) *TransferService {
	return &TransferService{store: store, sources: sources, events: events}
}

// TransferInput carries the caller-supplied fields of a new transfer.
type TransferInput struct {
	SourceID            string
	DestinationSourceID string
	Amount              decimal.Decimal
	Date                core.Date
	Notes               string
}

func (in TransferInput) validate() error {
	if in.SourceID == "" {
		return core.Validationf("source_id", "required")
	}
	if in.DestinationSourceID == "" {
		return core.Validationf("destination_source_id", "required")
	}
	if in.SourceID == in.DestinationSourceID {
		return core.ErrSameSource
	}
	if err := core.ValidateAmount(in.Amount); err != nil {
		return err
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if len(in.Notes) > 500 {
		return core.Validationf("notes", "too long (max 500 characters)")
	}
	return nil
}

// Create debits the origin, credits the destination, and writes the two
// correlated legs. Any later step failing reverses the earlier ones, so no
// state is ever left with exactly one side applied.
func (s *TransferService) Create(ctx context.Context, owner string, in TransferInput) (core.Transfer, error) {
	if err := in.validate(); err != nil {
		return core.Transfer{}, err
	}
	if _, err := s.sources.GetSource(ctx, owner, in.SourceID); err != nil {
		return core.Transfer{}, fmt.Errorf("source: %w", err)
	}
	if _, err := s.sources.GetSource(ctx, owner, in.DestinationSourceID); err != nil {
		return core.Transfer{}, fmt.Errorf("destination source: %w", err)
	}

	transferID := uuid.NewString()
	now := time.Now().UTC()
	leg := func(sourceID string, side core.TransferLeg) core.Transaction {
		return core.Transaction{
			ID:          uuid.NewString(),
			Owner:       owner,
			Date:        in.Date,
			Type:        core.TypeTransfer,
			SourceID:    sourceID,
			Amount:      in.Amount,
			Notes:       in.Notes,
			TransferID:  transferID,
			TransferLeg: side,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	outLeg := leg(in.SourceID, core.LegOut)
	inLeg := leg(in.DestinationSourceID, core.LegIn)

	seq := newCompensator("create transfer")

	// Step 1: debit the origin.
	if err := withConflictRetry(func() error {
		return s.sources.AdjustBalance(ctx, owner, in.SourceID, in.Amount.Neg())
	}); err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: debit: %w", err)
	}
	seq.add(func() error {
		return withConflictRetry(func() error {
			return s.sources.AdjustBalance(ctx, owner, in.SourceID, in.Amount)
		})
	})

	// Step 2: credit the destination.
	if err := withConflictRetry(func() error {
		return s.sources.AdjustBalance(ctx, owner, in.DestinationSourceID, in.Amount)
	}); err != nil {
		return core.Transfer{}, seq.rollback(ctx, fmt.Errorf("credit: %w", err))
	}
	seq.add(func() error {
		return withConflictRetry(func() error {
			return s.sources.AdjustBalance(ctx, owner, in.DestinationSourceID, in.Amount.Neg())
		})
	})

	// Steps 3 and 4: the correlated legs.
	if err := s.store.InsertTransferLeg(ctx, outLeg); err != nil {
		return core.Transfer{}, seq.rollback(ctx, fmt.Errorf("debit leg: %w", err))
	}
	seq.add(func() error { return s.store.DeleteTransferLeg(ctx, owner, outLeg.ID) })

	if err := s.store.InsertTransferLeg(ctx, inLeg); err != nil {
		return core.Transfer{}, seq.rollback(ctx, fmt.Errorf("credit leg: %w", err))
	}

	slog.InfoContext(ctx, "transfer created", "transfer_id", transferID,
		"source_id", in.SourceID, "destination_source_id", in.DestinationSourceID,
		"amount", in.Amount.String())
	publishEvent(ctx, s.events, amqp.EntityTransfer, transferID, owner, amqp.OpCreated)

	return assemble(transferID, owner, outLeg, inLeg), nil
}

// TransferUpdateInput carries the updatable transfer fields. Nil means keep
// the current value. Source and destination are immutable once created.
type TransferUpdateInput struct {
	Amount *decimal.Decimal
	Date   *core.Date
	Notes  *string
}

// Update applies the amount delta to both balances and rewrites both legs.
// The leg row writes are compare-and-swap guarded by the old amount, so two
// racing updates of the same transfer cannot both apply their delta.
func (s *TransferService) Update(ctx context.Context, owner, transferID string, in TransferUpdateInput) (core.Transfer, error) {
	outOld, inOld, err := s.legs(ctx, owner, transferID)
	if err != nil {
		return core.Transfer{}, err
	}

	outNew, inNew := outOld, inOld
	if in.Amount != nil {
		if err := core.ValidateAmount(*in.Amount); err != nil {
			return core.Transfer{}, err
		}
		outNew.Amount = *in.Amount
		inNew.Amount = *in.Amount
	}
	if in.Date != nil {
		if err := in.Date.Validate(); err != nil {
			return core.Transfer{}, err
		}
		outNew.Date = *in.Date
		inNew.Date = *in.Date
	}
	if in.Notes != nil {
		if len(*in.Notes) > 500 {
			return core.Transfer{}, core.Validationf("notes", "too long (max 500 characters)")
		}
		outNew.Notes = *in.Notes
		inNew.Notes = *in.Notes
	}

	seq := newCompensator("update transfer")

	if err := s.store.UpdateTransferLeg(ctx, outOld, outNew); err != nil {
		return core.Transfer{}, fmt.Errorf("update transfer: debit leg: %w", err)
	}
	seq.add(func() error { return s.store.UpdateTransferLeg(ctx, outNew, outOld) })

	if err := s.store.UpdateTransferLeg(ctx, inOld, inNew); err != nil {
		return core.Transfer{}, seq.rollback(ctx, fmt.Errorf("credit leg: %w", err))
	}
	seq.add(func() error { return s.store.UpdateTransferLeg(ctx, inNew, inOld) })

	// The delta between old and new amount, applied to both balances. Never
	// re-applied from scratch.
	delta := outNew.Amount.Sub(outOld.Amount)
	if !delta.IsZero() {
		if err := withConflictRetry(func() error {
			return s.sources.AdjustBalance(ctx, owner, outOld.SourceID, delta.Neg())
		}); err != nil {
			return core.Transfer{}, seq.rollback(ctx, fmt.Errorf("debit adjustment: %w", err))
		}
		seq.add(func() error {
			return withConflictRetry(func() error {
				return s.sources.AdjustBalance(ctx, owner, outOld.SourceID, delta)
			})
		})

		if err := withConflictRetry(func() error {
			return s.sources.AdjustBalance(ctx, owner, inOld.SourceID, delta)
		}); err != nil {
			return core.Transfer{}, seq.rollback(ctx, fmt.Errorf("credit adjustment: %w", err))
		}
	}

	publishEvent(ctx, s.events, amqp.EntityTransfer, transferID, owner, amqp.OpUpdated)
	return assemble(transferID, owner, outNew, inNew), nil
}

// Delete removes both legs and reverses both balance changes. A second call
// with the same id finds no legs and returns ErrNotFound; the reversal can
// never run twice.
func (s *TransferService) Delete(ctx context.Context, owner, transferID string) error {
	var outLeg, inLeg core.Transaction

	// Deleting the rows first makes the operation race-safe: of two
	// concurrent deletes only one sees rows disappear. The delete is guarded
	// by the amount just read, so an update committing between the read and
	// the delete loses the compare-and-swap, and the read and delete retry
	// together with fresh amounts.
	err := withConflictRetry(func() error {
		var err error
		outLeg, inLeg, err = s.legs(ctx, owner, transferID)
		if err != nil {
			return err
		}
		n, err := s.store.DeleteTransferLegs(ctx, owner, transferID, outLeg.Amount)
		if err != nil {
			return fmt.Errorf("delete transfer: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("delete transfer: %w", core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	seq := newCompensator("delete transfer")
	seq.add(func() error { return s.store.InsertTransferLeg(ctx, outLeg) })
	seq.add(func() error { return s.store.InsertTransferLeg(ctx, inLeg) })

	if err := withConflictRetry(func() error {
		return s.sources.AdjustBalance(ctx, owner, outLeg.SourceID, outLeg.Amount)
	}); err != nil {
		return seq.rollback(ctx, fmt.Errorf("debit reversal: %w", err))
	}
	seq.add(func() error {
		return withConflictRetry(func() error {
			return s.sources.AdjustBalance(ctx, owner, outLeg.SourceID, outLeg.Amount.Neg())
		})
	})

	if err := withConflictRetry(func() error {
		return s.sources.AdjustBalance(ctx, owner, inLeg.SourceID, inLeg.Amount.Neg())
	}); err != nil {
		return seq.rollback(ctx, fmt.Errorf("credit reversal: %w", err))
	}

	slog.InfoContext(ctx, "transfer deleted", "transfer_id", transferID)
	publishEvent(ctx, s.events, amqp.EntityTransfer, transferID, owner, amqp.OpDeleted)
	return nil
}

func (s *TransferService) Get(ctx context.Context, owner, transferID string) (core.Transfer, error) {
	outLeg, inLeg, err := s.legs(ctx, owner, transferID)
	if err != nil {
		return core.Transfer{}, err
	}
	return assemble(transferID, owner, outLeg, inLeg), nil
}

// legs resolves the correlated pair. Anything other than exactly two legs is
// treated as the transfer not existing.
func (s *TransferService) legs(ctx context.Context, owner, transferID string) (outLeg, inLeg core.Transaction, err error) {
	legs, err := s.store.GetTransferLegs(ctx, owner, transferID)
	if err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("transfer: %w", err)
	}
	if len(legs) != 2 {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("transfer: %w", core.ErrNotFound)
	}
	for _, l := range legs {
		switch l.TransferLeg {
		case core.LegOut:
			outLeg = l
		case core.LegIn:
			inLeg = l
		}
	}
	if outLeg.ID == "" || inLeg.ID == "" {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("transfer: %w", core.ErrNotFound)
	}
	return outLeg, inLeg, nil
}

func assemble(transferID, owner string, outLeg, inLeg core.Transaction) core.Transfer {
	return core.Transfer{
		ID:                  transferID,
		Owner:               owner,
		Date:                outLeg.Date,
		Amount:              outLeg.Amount,
		Notes:               outLeg.Notes,
		SourceID:            outLeg.SourceID,
		DestinationSourceID: inLeg.SourceID,
		OutLeg:              outLeg,
		InLeg:               inLeg,
	}
}

// compensator records the undo action for each applied step of a multi-step
// operation and runs them in reverse order on rollback. If any undo fails
// the whole operation becomes a CompensationFailure.
type compensator struct {
	op    string
	undos []func() error
}

func newCompensator(op string) *compensator {
	return &compensator{op: op}
}

func (c *compensator) add(undo func() error) {
	c.undos = append(c.undos, undo)
}

// rollback reverses the applied steps and wraps cause for the caller. The
// returned error is either the wrapped cause (rollback clean) or a fatal
// CompensationFailure (rollback failed, manual reconciliation needed).
func (c *compensator) rollback(ctx context.Context, cause error) error {
	for i := len(c.undos) - 1; i >= 0; i-- {
		if err := c.undos[i](); err != nil {
			slog.ErrorContext(ctx, "compensation failed, ledger may be inconsistent",
				"operation", c.op, "cause", cause, "error", err)
			return &core.CompensationFailure{Op: c.op, Cause: cause, CompensationErr: err}
		}
	}
	slog.WarnContext(ctx, "operation rolled back", "operation", c.op, "cause", cause)
	return fmt.Errorf("%s: %w", c.op, cause)
}
