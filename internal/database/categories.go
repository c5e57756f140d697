package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, discount_percent, is_active, created_at`

func scanCategory(row interface{ Scan(dest ...interface{}) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.DiscountPercent, &c.IsActive, &c.CreatedAt)
	return c, err
}

const listCategories = `
SELECT ` + categoryColumns + `
FROM categories
WHERE is_active = TRUE
ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const getCategory = `
SELECT ` + categoryColumns + `
FROM categories
WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategory, id))
}

type CreateCategoryParams struct {
	Name            string
	DiscountPercent pgtype.Numeric
}

const createCategory = `
INSERT INTO categories (name, discount_percent)
VALUES ($1, $2)
RETURNING ` + categoryColumns

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory, arg.Name, arg.DiscountPercent))
}

type UpdateCategoryParams struct {
	ID              uuid.UUID
	Name            string
	DiscountPercent pgtype.Numeric
}

const updateCategory = `
UPDATE categories
SET name = $2, discount_percent = $3
WHERE id = $1 AND is_active = TRUE
RETURNING ` + categoryColumns

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory, arg.ID, arg.Name, arg.DiscountPercent))
}

const softDeleteCategory = `
UPDATE categories
SET is_active = FALSE
WHERE id = $1 AND is_active = TRUE
RETURNING id`

func (q *Queries) SoftDeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCategory, id).Scan(&deleted)
	return deleted, err
}
