package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"moneta/internal/core"
)

// Single-leg transaction writes couple the row write and the balance change
// in one sqlite transaction: they succeed or fail together. Transfer legs
// are written as bare rows; the transfer coordinator owns their balance
// choreography and compensation.

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transactions
		(id, owner, date, type, category_id, subcategory_id, source_id, amount, notes,
		 counterparty, related_transaction_id, transfer_id, transfer_leg, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Owner, t.Date.String(), string(t.Type),
		nullable(t.CategoryID), nullable(t.SubCategoryID), t.SourceID,
		t.Amount.String(), t.Notes, nullable(t.Counterparty),
		nullable(t.RelatedTransactionID), nullable(t.TransferID), nullable(string(t.TransferLeg)),
		t.CreatedAt, t.UpdatedAt)
	return wrapDBErr("insert transaction", err)
}

// CreateTransaction inserts a non-transfer transaction and applies its
// signed amount to the source balance atomically.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransactionTx(ctx, tx, t); err != nil {
			return err
		}
		return adjustBalanceTx(ctx, tx, t.Owner, t.SourceID, t.SignedAmount())
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "transaction created", "transaction_id", t.ID,
		"type", t.Type, "source_id", t.SourceID, "amount", t.Amount.String())
	return nil
}

// UpdateTransaction replaces the mutable fields of a transaction and applies
// the balance delta between the old and new signed amounts. The row update
// is guarded by the old amount and type, so a concurrent update of the same
// row surfaces as ErrConflict instead of double-counting.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, old, updated core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE transactions
			SET date = ?, type = ?, category_id = ?, subcategory_id = ?, amount = ?,
			    notes = ?, counterparty = ?, related_transaction_id = ?, updated_at = ?
			WHERE id = ? AND owner = ? AND amount = ? AND type = ?`,
			updated.Date.String(), string(updated.Type),
			nullable(updated.CategoryID), nullable(updated.SubCategoryID),
			updated.Amount.String(), updated.Notes, nullable(updated.Counterparty),
			nullable(updated.RelatedTransactionID), time.Now().UTC(),
			old.ID, old.Owner, old.Amount.String(), string(old.Type))
		if err != nil {
			return wrapDBErr("update transaction", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapDBErr("update transaction", err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM transactions WHERE id = ? AND owner = ?`, old.ID, old.Owner).Scan(&exists)
			if err == sql.ErrNoRows {
				return fmt.Errorf("update transaction: %w", core.ErrNotFound)
			}
			if err != nil {
				return wrapDBErr("update transaction", err)
			}
			return fmt.Errorf("update transaction: concurrent modification: %w", core.ErrConflict)
		}

		delta := updated.SignedAmount().Sub(old.SignedAmount())
		if delta.IsZero() {
			return nil
		}
		return adjustBalanceTx(ctx, tx, old.Owner, old.SourceID, delta)
	})
}

// DeleteTransaction removes a non-transfer transaction and reverses its
// balance effect atomically. A row still referenced by repayments is refused
// with ErrConflict; the check runs inside the same transaction, so a
// repayment created concurrently cannot be left dangling. Returns the
// deleted row.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	var deleted core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, selectTransaction+` WHERE id = ? AND owner = ?`, id, owner)
		t, err := scanTransaction(row)
		if err != nil {
			return err
		}
		if t.Type == core.TypeTransfer {
			// Transfer legs are deleted through the coordinator only.
			return fmt.Errorf("delete transaction: %w", core.ErrNotFound)
		}
		var refs int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE owner = ? AND related_transaction_id = ?`,
			owner, id).Scan(&refs); err != nil {
			return wrapDBErr("delete transaction", err)
		}
		if refs > 0 {
			return fmt.Errorf("delete transaction: repayments reference it: %w", core.ErrConflict)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE id = ? AND owner = ?`, id, owner); err != nil {
			return wrapDBErr("delete transaction", err)
		}
		if err := adjustBalanceTx(ctx, tx, owner, t.SourceID, t.SignedAmount().Neg()); err != nil {
			return err
		}
		deleted = t
		return nil
	})
	return deleted, err
}

const selectTransaction = `SELECT id, owner, date, type, category_id, subcategory_id,
	source_id, amount, notes, counterparty, related_transaction_id, transfer_id, transfer_leg,
	created_at, updated_at
	FROM transactions`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                                  core.Transaction
		dateStr, typ, amountStr            string
		cat, sub, cp, related, trID, trLeg sql.NullString
	)
	err := row.Scan(&t.ID, &t.Owner, &dateStr, &typ, &cat, &sub, &t.SourceID,
		&amountStr, &t.Notes, &cp, &related, &trID, &trLeg, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Transaction{}, wrapDBErr("select transaction", err)
	}
	t.Type = core.TransactionType(typ)
	t.CategoryID = cat.String
	t.SubCategoryID = sub.String
	t.Counterparty = cp.String
	t.RelatedTransactionID = related.String
	t.TransferID = trID.String
	t.TransferLeg = core.TransferLeg(trLeg.String)
	if t.Date, err = core.ParseDate(dateStr); err != nil {
		return core.Transaction{}, fmt.Errorf("corrupt date %q: %w", dateStr, core.ErrBackendUnavailable)
	}
	if t.Amount, err = scanDec(amountStr); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ? AND owner = ?`, id, owner)
	return scanTransaction(row)
}

// ListTransactions returns the owner's transactions, newest first. month
// filters by YYYY-MM when non-empty.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner, month string) ([]core.Transaction, error) {
	q := selectTransaction + ` WHERE owner = ?`
	args := []any{owner}
	if month != "" {
		q += ` AND date LIKE ?`
		args = append(args, month+"%")
	}
	q += ` ORDER BY date DESC, created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBErr("list transactions", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, wrapDBErr("list transactions", rows.Err())
}

// InsertTransferLeg writes one bare transfer leg row without touching any
// balance.
func (r *SQLiteRepository) InsertTransferLeg(ctx context.Context, t core.Transaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return insertTransactionTx(ctx, tx, t)
	})
}

// DeleteTransferLeg removes one leg row by id, used for compensation when
// the second leg write fails.
func (r *SQLiteRepository) DeleteTransferLeg(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner = ? AND transfer_id IS NOT NULL`, id, owner)
	if err != nil {
		return wrapDBErr("delete transfer leg", err)
	}
	return requireRow(res, "delete transfer leg")
}

// GetTransferLegs returns both rows correlated by transferID.
func (r *SQLiteRepository) GetTransferLegs(ctx context.Context, owner, transferID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTransaction+` WHERE owner = ? AND transfer_id = ? ORDER BY transfer_leg DESC`, owner, transferID)
	if err != nil {
		return nil, wrapDBErr("select transfer legs", err)
	}
	defer rows.Close()

	var legs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		legs = append(legs, t)
	}
	return legs, wrapDBErr("select transfer legs", rows.Err())
}

// UpdateTransferLeg rewrites the shared fields of one leg, guarded by the
// old amount (compare-and-swap against concurrent transfer updates).
func (r *SQLiteRepository) UpdateTransferLeg(ctx context.Context, old, updated core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET date = ?, amount = ?, notes = ?, updated_at = ?
		WHERE id = ? AND owner = ? AND amount = ?`,
		updated.Date.String(), updated.Amount.String(), updated.Notes, time.Now().UTC(),
		old.ID, old.Owner, old.Amount.String())
	if err != nil {
		return wrapDBErr("update transfer leg", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr("update transfer leg", err)
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM transactions WHERE id = ? AND owner = ?`, old.ID, old.Owner).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("update transfer leg: %w", core.ErrNotFound)
		}
		if err != nil {
			return wrapDBErr("update transfer leg", err)
		}
		return fmt.Errorf("update transfer leg: concurrent modification: %w", core.ErrConflict)
	}
	return nil
}

// DeleteTransferLegs removes both legs of a transfer, guarded by the amount
// the caller read (compare-and-swap, like the leg update). A concurrent
// update that changed the amount surfaces as ErrConflict with both rows
// intact, so the caller re-reads before reversing balances. Zero rows means
// the transfer is already gone.
func (r *SQLiteRepository) DeleteTransferLegs(ctx context.Context, owner, transferID string, amount decimal.Decimal) (int, error) {
	var deleted int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE owner = ? AND transfer_id = ? AND amount = ?`,
			owner, transferID, amount.String())
		if err != nil {
			return wrapDBErr("delete transfer legs", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapDBErr("delete transfer legs", err)
		}
		switch n {
		case 2:
			deleted = 2
			return nil
		case 0:
			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM transactions WHERE owner = ? AND transfer_id = ?`,
				owner, transferID).Scan(&exists)
			if err == sql.ErrNoRows {
				return nil
			}
			if err != nil {
				return wrapDBErr("delete transfer legs", err)
			}
			return fmt.Errorf("delete transfer legs: concurrent modification: %w", core.ErrConflict)
		default:
			// One leg matched while the other was concurrently rewritten.
			// Rolling back keeps the pair intact.
			return fmt.Errorf("delete transfer legs: concurrent modification: %w", core.ErrConflict)
		}
	})
	return deleted, err
}

// RepaymentCount reports how many repayments link to a lend/borrow
// transaction. The delete path enforces the refuse policy itself; this is a
// read-only view of the same count.
func (r *SQLiteRepository) RepaymentCount(ctx context.Context, owner, transactionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner = ? AND related_transaction_id = ?`,
		owner, transactionID).Scan(&n)
	if err != nil {
		return 0, wrapDBErr("count repayments", err)
	}
	return n, nil
}
