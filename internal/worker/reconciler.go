// Package worker runs the reconciler: it consumes ledger mutation events and
// re-verifies that every affected owner's stored balances still equal the
// balances recomputed from the transaction log.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"moneta/internal/amqp"
	"moneta/internal/services"
)

type Reconciler struct {
	client  *amqp.Client
	reports *services.ReportService
}

func NewReconciler(client *amqp.Client, reports *services.ReportService) *Reconciler {
	return &Reconciler{client: client, reports: reports}
}

// Run consumes events until ctx is cancelled. A verification error requeues
// the event; detected drift is logged loudly but acked, since replaying the
// event cannot repair it.
func (r *Reconciler) Run(ctx context.Context) error {
	return r.client.ConsumeLedgerEvents(ctx, func(event amqp.LedgerEvent) error {
		return r.handle(ctx, event)
	})
}

func (r *Reconciler) handle(ctx context.Context, event amqp.LedgerEvent) error {
	drifts, err := r.reports.VerifyOwner(ctx, event.Owner)
	if err != nil {
		return fmt.Errorf("verify owner %s: %w", event.Owner, err)
	}

	if len(drifts) == 0 {
		slog.DebugContext(ctx, "ledger verified",
			"owner", event.Owner, "entity", event.Entity, "op", event.Op)
		return nil
	}

	for _, d := range drifts {
		slog.ErrorContext(ctx, "balance drift detected, manual reconciliation required",
			"owner", event.Owner,
			"source_id", d.SourceID,
			"source_name", d.Name,
			"stored", d.Stored.String(),
			"computed", d.Computed.String(),
			"trigger_entity", event.Entity,
			"trigger_id", event.ID)
	}
	return nil
}
