package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"moneta/internal/core"
)

// Balances are stored as decimal text and all arithmetic happens in Go, so
// every balance change is a read-modify-write. The version column turns that
// into a compare-and-swap: a stale write hits zero rows and surfaces
// ErrConflict instead of silently losing an update.

func scanDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt decimal %q: %w", s, err)
	}
	return d, nil
}

func (r *SQLiteRepository) CreateSource(ctx context.Context, s core.Source) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sources
		(id, owner, name, type, currency, initial_balance, current_balance, notes, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.ID, s.Owner, s.Name, string(s.Type), s.Currency,
		s.InitialBalance.String(), s.CurrentBalance.String(), s.Notes, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return wrapDBErr("insert source", err)
	}

	slog.InfoContext(ctx, "source row created", "source_id", s.ID, "type", s.Type)
	return nil
}

func (r *SQLiteRepository) GetSource(ctx context.Context, owner, id string) (core.Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
			s.id, s.owner, s.name, s.type, s.currency, s.initial_balance, s.current_balance,
			s.notes, s.version, s.created_at, s.updated_at,
			c.credit_limit, c.interest_rate, c.billing_cycle_start_day
		FROM sources s
		LEFT JOIN credit_card_details c ON c.source_id = s.id
		WHERE s.id = ? AND s.owner = ?`, id, owner)
	return scanSource(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (core.Source, error) {
	var (
		s                core.Source
		typ              string
		initial, current string
		limit, rate      sql.NullString
		cycleDay         sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.Owner, &s.Name, &typ, &s.Currency, &initial, &current,
		&s.Notes, &s.Version, &s.CreatedAt, &s.UpdatedAt, &limit, &rate, &cycleDay)
	if err != nil {
		return core.Source{}, wrapDBErr("select source", err)
	}
	s.Type = core.SourceType(typ)
	if s.InitialBalance, err = scanDec(initial); err != nil {
		return core.Source{}, err
	}
	if s.CurrentBalance, err = scanDec(current); err != nil {
		return core.Source{}, err
	}
	if limit.Valid {
		cc := &core.CreditCardDetails{SourceID: s.ID, Owner: s.Owner, BillingCycleStartDay: int(cycleDay.Int64)}
		if cc.CreditLimit, err = scanDec(limit.String); err != nil {
			return core.Source{}, err
		}
		if cc.InterestRate, err = scanDec(rate.String); err != nil {
			return core.Source{}, err
		}
		s.CreditCard = cc
	}
	return s, nil
}

func (r *SQLiteRepository) ListSources(ctx context.Context, owner string) ([]core.Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
			s.id, s.owner, s.name, s.type, s.currency, s.initial_balance, s.current_balance,
			s.notes, s.version, s.created_at, s.updated_at,
			c.credit_limit, c.interest_rate, c.billing_cycle_start_day
		FROM sources s
		LEFT JOIN credit_card_details c ON c.source_id = s.id
		WHERE s.owner = ?
		ORDER BY s.name, s.id`, owner)
	if err != nil {
		return nil, wrapDBErr("list sources", err)
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, wrapDBErr("list sources", rows.Err())
}

// UpdateSource writes the mutable source fields, guarded by the version the
// caller read. InitialBalance and CurrentBalance are untouched here; balance
// changes go through AdjustBalance.
func (r *SQLiteRepository) UpdateSource(ctx context.Context, s core.Source) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sources
		SET name = ?, type = ?, currency = ?, notes = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND owner = ? AND version = ?`,
		s.Name, string(s.Type), s.Currency, s.Notes, time.Now().UTC(),
		s.ID, s.Owner, s.Version)
	if err != nil {
		return wrapDBErr("update source", err)
	}
	return r.casOutcome(ctx, res, s.Owner, s.ID, "update source")
}

// casOutcome distinguishes "row gone" from "version mismatch" after a
// zero-row CAS update.
func (r *SQLiteRepository) casOutcome(ctx context.Context, res sql.Result, owner, id, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(op, err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM sources WHERE id = ? AND owner = ?`, id, owner).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return wrapDBErr(op, err)
	}
	return fmt.Errorf("%s: concurrent modification: %w", op, core.ErrConflict)
}

func (r *SQLiteRepository) DeleteSource(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return wrapDBErr("delete source", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr("delete source", err)
	}
	if n == 0 {
		return fmt.Errorf("delete source: %w", core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) UpsertCreditCard(ctx context.Context, cc core.CreditCardDetails) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO credit_card_details
		(source_id, owner, credit_limit, interest_rate, billing_cycle_start_day)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			credit_limit = excluded.credit_limit,
			interest_rate = excluded.interest_rate,
			billing_cycle_start_day = excluded.billing_cycle_start_day`,
		cc.SourceID, cc.Owner, cc.CreditLimit.String(), cc.InterestRate.String(), cc.BillingCycleStartDay)
	return wrapDBErr("upsert credit card details", err)
}

// DeleteCreditCard removes the extension row. Absence is not an error: the
// registry calls this unconditionally when a source stops being a credit
// card.
func (r *SQLiteRepository) DeleteCreditCard(ctx context.Context, owner, sourceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM credit_card_details WHERE source_id = ? AND owner = ?`, sourceID, owner)
	return wrapDBErr("delete credit card details", err)
}

// AdjustBalance applies a signed delta to one source balance as a
// compare-and-swap read-modify-write. Concurrent writers to the same source
// serialize: the loser gets ErrConflict and retries.
func (r *SQLiteRepository) AdjustBalance(ctx context.Context, owner, id string, delta decimal.Decimal) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return adjustBalanceTx(ctx, tx, owner, id, delta)
	})
}

// adjustBalanceTx is the CAS core of AdjustBalance, reusable inside larger
// storage transactions.
func adjustBalanceTx(ctx context.Context, tx *sql.Tx, owner, id string, delta decimal.Decimal) error {
	var balStr string
	var version int64
	err := tx.QueryRowContext(ctx,
		`SELECT current_balance, version FROM sources WHERE id = ? AND owner = ?`,
		id, owner).Scan(&balStr, &version)
	if err != nil {
		return wrapDBErr("read balance", err)
	}
	bal, err := scanDec(balStr)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE sources
		SET current_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND owner = ? AND version = ?`,
		bal.Add(delta).String(), time.Now().UTC(), id, owner, version)
	if err != nil {
		return wrapDBErr("adjust balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr("adjust balance", err)
	}
	if n == 0 {
		return fmt.Errorf("adjust balance: concurrent modification: %w", core.ErrConflict)
	}
	return nil
}

// SourceHasHistory reports whether any transaction or transfer leg still
// references the source.
func (r *SQLiteRepository) SourceHasHistory(ctx context.Context, owner, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE source_id = ? AND owner = ?`, id, owner).Scan(&n)
	if err != nil {
		return false, wrapDBErr("count source history", err)
	}
	return n > 0, nil
}
