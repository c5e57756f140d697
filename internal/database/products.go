package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, category_id, name, description, price, stock, discount_percent, apply_category_discount, image_url, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...interface{}) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.DiscountPercent, &p.ApplyCategoryDiscount, &p.ImageUrl,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE is_active = TRUE
ORDER BY name`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const listProductsByCategory = `
SELECT ` + productColumns + `
FROM products
WHERE category_id = $1 AND is_active = TRUE
ORDER BY name`

func (q *Queries) ListProductsByCategory(ctx context.Context, categoryID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

type CreateProductParams struct {
	CategoryID            uuid.UUID
	Name                  string
	Description           pgtype.Text
	Price                 pgtype.Numeric
	Stock                 int32
	DiscountPercent       pgtype.Numeric
	ApplyCategoryDiscount bool
	ImageUrl              pgtype.Text
}

const createProduct = `
INSERT INTO products (category_id, name, description, price, stock, discount_percent, apply_category_discount, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.Stock,
		arg.DiscountPercent, arg.ApplyCategoryDiscount, arg.ImageUrl,
	))
}

type UpdateProductParams struct {
	ID                    uuid.UUID
	CategoryID            uuid.UUID
	Name                  string
	Description           pgtype.Text
	Price                 pgtype.Numeric
	DiscountPercent       pgtype.Numeric
	ApplyCategoryDiscount bool
	ImageUrl              pgtype.Text
}

const updateProduct = `
UPDATE products
SET category_id = $2, name = $3, description = $4, price = $5,
    discount_percent = $6, apply_category_discount = $7, image_url = $8,
    updated_at = NOW()
WHERE id = $1 AND is_active = TRUE
RETURNING ` + productColumns

// UpdateProduct never touches stock; stock only moves through the
// Reserve/Restore primitives below.
func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.CategoryID, arg.Name, arg.Description, arg.Price,
		arg.DiscountPercent, arg.ApplyCategoryDiscount, arg.ImageUrl,
	))
}

const softDeleteProduct = `
UPDATE products
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1 AND is_active = TRUE
RETURNING id`

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteProduct, id).Scan(&deleted)
	return deleted, err
}

type ReserveProductStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

const reserveProductStock = `
UPDATE products
SET stock = stock - $2, updated_at = NOW()
WHERE id = $1 AND is_active = TRUE AND stock >= $2
RETURNING stock`

// ReserveProductStock atomically decrements stock. It returns pgx.ErrNoRows
// when the product is missing, inactive, or has fewer than quantity units,
// so concurrent reservations can never drive stock negative.
func (q *Queries) ReserveProductStock(ctx context.Context, arg ReserveProductStockParams) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, reserveProductStock, arg.ID, arg.Quantity).Scan(&stock)
	return stock, err
}

type RestoreProductStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

const restoreProductStock = `
UPDATE products
SET stock = stock + $2, updated_at = NOW()
WHERE id = $1
RETURNING stock`

// RestoreProductStock atomically increments stock. It intentionally skips the
// is_active filter: cancelling an order must return units even if the product
// was deactivated in the meantime.
func (q *Queries) RestoreProductStock(ctx context.Context, arg RestoreProductStockParams) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, restoreProductStock, arg.ID, arg.Quantity).Scan(&stock)
	return stock, err
}

type GetProductForOrderRow struct {
	ID                    uuid.UUID
	Name                  string
	Price                 pgtype.Numeric
	Stock                 int32
	DiscountPercent       pgtype.Numeric
	ApplyCategoryDiscount bool
	CategoryDiscount      pgtype.Numeric
}

const getProductForOrder = `
SELECT p.id, p.name, p.price, p.stock, p.discount_percent, p.apply_category_discount, c.discount_percent
FROM products p
JOIN categories c ON c.id = p.category_id
WHERE p.id = $1 AND p.is_active = TRUE`

// GetProductForOrder returns the pricing and stock fields needed when
// building an order, including the category discount for products flagged
// to inherit it.
func (q *Queries) GetProductForOrder(ctx context.Context, id uuid.UUID) (GetProductForOrderRow, error) {
	var row GetProductForOrderRow
	err := q.db.QueryRow(ctx, getProductForOrder, id).Scan(
		&row.ID, &row.Name, &row.Price, &row.Stock,
		&row.DiscountPercent, &row.ApplyCategoryDiscount, &row.CategoryDiscount,
	)
	return row, err
}
