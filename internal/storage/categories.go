package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"moneta/internal/core"
)

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, owner, name, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Owner, c.Name, string(c.Type), c.CreatedAt)
	return wrapDBErr("insert category", err)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, owner, id string) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner, name, type, created_at FROM categories WHERE id = ? AND owner = ?`,
		id, owner).Scan(&c.ID, &c.Owner, &c.Name, &typ, &c.CreatedAt)
	if err != nil {
		return core.Category{}, wrapDBErr("select category", err)
	}
	c.Type = core.CategoryType(typ)
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner, name, type, created_at FROM categories WHERE owner = ? ORDER BY name, id`, owner)
	if err != nil {
		return nil, wrapDBErr("list categories", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var (
			c   core.Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &typ, &c.CreatedAt); err != nil {
			return nil, wrapDBErr("scan category", err)
		}
		c.Type = core.CategoryType(typ)
		cats = append(cats, c)
	}
	return cats, wrapDBErr("list categories", rows.Err())
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ? WHERE id = ? AND owner = ?`,
		c.Name, string(c.Type), c.ID, c.Owner)
	if err != nil {
		return wrapDBErr("update category", err)
	}
	return requireRow(res, "update category")
}

// DeleteCategory removes the category and all its subcategories in one
// transaction (cascade).
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, owner, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM subcategories WHERE category_id = ? AND owner = ?`, id, owner); err != nil {
			return wrapDBErr("delete subcategories", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM categories WHERE id = ? AND owner = ?`, id, owner)
		if err != nil {
			return wrapDBErr("delete category", err)
		}
		if err := requireRow(res, "delete category"); err != nil {
			return err
		}
		slog.InfoContext(ctx, "category deleted with cascade", "category_id", id)
		return nil
	})
}

// CategoryInUse reports whether any transaction references the category or
// one of its subcategories.
func (r *SQLiteRepository) CategoryInUse(ctx context.Context, owner, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions
		WHERE owner = ? AND (category_id = ?
			OR subcategory_id IN (SELECT id FROM subcategories WHERE category_id = ? AND owner = ?))`,
		owner, id, id, owner).Scan(&n)
	if err != nil {
		return false, wrapDBErr("count category references", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateSubCategory(ctx context.Context, sc core.SubCategory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subcategories (id, owner, category_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		sc.ID, sc.Owner, sc.CategoryID, sc.Name, sc.CreatedAt)
	return wrapDBErr("insert subcategory", err)
}

func (r *SQLiteRepository) GetSubCategory(ctx context.Context, owner, id string) (core.SubCategory, error) {
	var sc core.SubCategory
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner, category_id, name, created_at FROM subcategories WHERE id = ? AND owner = ?`,
		id, owner).Scan(&sc.ID, &sc.Owner, &sc.CategoryID, &sc.Name, &sc.CreatedAt)
	if err != nil {
		return core.SubCategory{}, wrapDBErr("select subcategory", err)
	}
	return sc, nil
}

func (r *SQLiteRepository) ListSubCategories(ctx context.Context, owner, categoryID string) ([]core.SubCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner, category_id, name, created_at FROM subcategories
		 WHERE owner = ? AND category_id = ? ORDER BY name, id`, owner, categoryID)
	if err != nil {
		return nil, wrapDBErr("list subcategories", err)
	}
	defer rows.Close()

	var subs []core.SubCategory
	for rows.Next() {
		var sc core.SubCategory
		if err := rows.Scan(&sc.ID, &sc.Owner, &sc.CategoryID, &sc.Name, &sc.CreatedAt); err != nil {
			return nil, wrapDBErr("scan subcategory", err)
		}
		subs = append(subs, sc)
	}
	return subs, wrapDBErr("list subcategories", rows.Err())
}

func (r *SQLiteRepository) UpdateSubCategory(ctx context.Context, sc core.SubCategory) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subcategories SET name = ? WHERE id = ? AND owner = ?`,
		sc.Name, sc.ID, sc.Owner)
	if err != nil {
		return wrapDBErr("update subcategory", err)
	}
	return requireRow(res, "update subcategory")
}

func (r *SQLiteRepository) DeleteSubCategory(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM subcategories WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return wrapDBErr("delete subcategory", err)
	}
	return requireRow(res, "delete subcategory")
}

// SubCategoryInUse reports whether any transaction references the
// subcategory.
func (r *SQLiteRepository) SubCategoryInUse(ctx context.Context, owner, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner = ? AND subcategory_id = ?`, owner, id).Scan(&n)
	if err != nil {
		return false, wrapDBErr("count subcategory references", err)
	}
	return n > 0, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
