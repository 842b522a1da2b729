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

// SourceService is the source registry: it owns Source rows together with
// their credit-card extension and keeps the two physically separate writes
// looking atomic to callers.
type SourceService struct {
	store  SourceStore
	events EventPublisher
}

func NewSourceService(store SourceStore, events EventPublisher) *SourceService {
	return &SourceService{store: store, events: events}
}

// SourceInput carries the caller-supplied source fields. The credit-card
// fields are honored only when Type is credit_card and ignored otherwise.
type SourceInput struct {
	Name                 string
	Type                 core.SourceType
	Currency             string
	InitialBalance       decimal.Decimal
	Notes                string
	CreditLimit          decimal.Decimal
	InterestRate         decimal.Decimal
	BillingCycleStartDay int
}

func (in SourceInput) toSource(owner string) core.Source {
	now := time.Now().UTC()
	s := core.Source{
		ID:             uuid.NewString(),
		Owner:          owner,
		Name:           in.Name,
		Type:           in.Type,
		Currency:       in.Currency,
		InitialBalance: in.InitialBalance,
		CurrentBalance: in.InitialBalance,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Type == core.SourceCreditCard {
		day := in.BillingCycleStartDay
		if day == 0 {
			day = 1
		}
		s.CreditCard = &core.CreditCardDetails{
			SourceID:             s.ID,
			Owner:                owner,
			CreditLimit:          in.CreditLimit,
			InterestRate:         in.InterestRate,
			BillingCycleStartDay: day,
		}
	}
	return s
}

// Create persists a source and, for credit cards, its details row. The two
// writes are all-or-nothing: if the details write fails the source row is
// compensated away before the error returns.
func (s *SourceService) Create(ctx context.Context, owner string, in SourceInput) (core.Source, error) {
	src := in.toSource(owner)
	if err := src.Validate(); err != nil {
		return core.Source{}, err
	}

	if err := s.store.CreateSource(ctx, src); err != nil {
		return core.Source{}, fmt.Errorf("create source: %w", err)
	}

	if src.CreditCard != nil {
		if err := s.store.UpsertCreditCard(ctx, *src.CreditCard); err != nil {
			if compErr := s.store.DeleteSource(ctx, owner, src.ID); compErr != nil {
				return core.Source{}, &core.CompensationFailure{
					Op:              "create source",
					Cause:           err,
					CompensationErr: compErr,
				}
			}
			slog.WarnContext(ctx, "source creation rolled back",
				"source_id", src.ID, "error", err)
			return core.Source{}, fmt.Errorf("create credit card details: %w", err)
		}
	}

	publishEvent(ctx, s.events, amqp.EntitySource, src.ID, owner, amqp.OpCreated)
	return src, nil
}

// Update rewrites the mutable source fields. Changing type to credit_card
// upserts the details row; changing away deletes it. Either follow-up write
// failing reverts the row update, so the coupling invariant holds at every
// exit.
func (s *SourceService) Update(ctx context.Context, owner, id string, in SourceInput) (core.Source, error) {
	existing, err := s.store.GetSource(ctx, owner, id)
	if err != nil {
		return core.Source{}, err
	}

	updated := existing
	updated.Name = in.Name
	updated.Type = in.Type
	updated.Currency = in.Currency
	updated.Notes = in.Notes
	updated.CreditCard = nil
	if in.Type == core.SourceCreditCard {
		day := in.BillingCycleStartDay
		if day == 0 {
			day = 1
		}
		updated.CreditCard = &core.CreditCardDetails{
			SourceID:             id,
			Owner:                owner,
			CreditLimit:          in.CreditLimit,
			InterestRate:         in.InterestRate,
			BillingCycleStartDay: day,
		}
	}
	if err := updated.Validate(); err != nil {
		return core.Source{}, err
	}

	if err := s.store.UpdateSource(ctx, updated); err != nil {
		return core.Source{}, fmt.Errorf("update source: %w", err)
	}

	revert := func(cause error) error {
		reread, compErr := s.store.GetSource(ctx, owner, id)
		if compErr == nil {
			reread.Name = existing.Name
			reread.Type = existing.Type
			reread.Currency = existing.Currency
			reread.Notes = existing.Notes
			compErr = s.store.UpdateSource(ctx, reread)
		}
		if compErr != nil {
			return &core.CompensationFailure{Op: "update source", Cause: cause, CompensationErr: compErr}
		}
		return fmt.Errorf("update source: %w", cause)
	}

	switch {
	case updated.CreditCard != nil:
		if err := s.store.UpsertCreditCard(ctx, *updated.CreditCard); err != nil {
			return core.Source{}, revert(err)
		}
	case existing.Type == core.SourceCreditCard:
		// Type moved away from credit card: drop the orphaned details row.
		if err := s.store.DeleteCreditCard(ctx, owner, id); err != nil {
			return core.Source{}, revert(err)
		}
	}

	publishEvent(ctx, s.events, amqp.EntitySource, id, owner, amqp.OpUpdated)
	return s.store.GetSource(ctx, owner, id)
}

// Delete removes a source and its credit-card details. A source with any
// transaction or transfer history is refused with ErrConflict: the ledger
// trail must not be silently dropped.
func (s *SourceService) Delete(ctx context.Context, owner, id string) error {
	src, err := s.store.GetSource(ctx, owner, id)
	if err != nil {
		return err
	}

	hasHistory, err := s.store.SourceHasHistory(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if hasHistory {
		return fmt.Errorf("delete source: transaction history exists: %w", core.ErrConflict)
	}

	// Details row first, then the parent.
	if src.Type == core.SourceCreditCard {
		if err := s.store.DeleteCreditCard(ctx, owner, id); err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
	}
	if err := s.store.DeleteSource(ctx, owner, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}

	publishEvent(ctx, s.events, amqp.EntitySource, id, owner, amqp.OpDeleted)
	return nil
}

func (s *SourceService) Get(ctx context.Context, owner, id string) (core.Source, error) {
	return s.store.GetSource(ctx, owner, id)
}

func (s *SourceService) List(ctx context.Context, owner string) ([]core.Source, error) {
	return s.store.ListSources(ctx, owner)
}
