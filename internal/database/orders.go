package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, order_type, status, paid, customer_id, subtotal, discount_amount, total_amount, notes, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.OrderType, &o.Status, &o.Paid, &o.CustomerID,
		&o.Subtotal, &o.DiscountAmount, &o.TotalAmount, &o.Notes,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1
FROM orders`

// GetNextOrderNumber returns the next sequential number for "ORD-NNN"
// order numbers. Concurrent transactions can read the same MAX; the caller
// retries on the resulting unique constraint violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	OrderNumber    string
	OrderType      string
	CustomerID     pgtype.UUID
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
}

const createOrder = `
INSERT INTO orders (order_number, order_type, customer_id, subtotal, discount_amount, total_amount, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber, arg.OrderType, arg.CustomerID, arg.Subtotal,
		arg.DiscountAmount, arg.TotalAmount, arg.Notes, arg.CreatedBy,
	))
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR NO KEY UPDATE`

// GetOrderForUpdate locks the order row so concurrent payment, shipment and
// item edits on the same order are serialized.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

type ListOrdersParams struct {
	Status    pgtype.Text
	OrderType pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR order_type = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4 + INTERVAL '1 day')
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status, arg.OrderType, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrdersByCustomer = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

// UpdateOrderStatus is a compare-and-swap: it only applies when the order is
// still in FromStatus. No rows means the status moved under us.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus))
}

type MarkOrderPaidParams struct {
	ID     uuid.UUID
	Status string
}

const markOrderPaid = `
UPDATE orders
SET paid = TRUE, status = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

// MarkOrderPaid sets the paid flag and the post-payment status in one
// statement, so paid=true can never be observed together with
// AWAITING_PAYMENT_VERIFICATION.
func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.Status))
}

const cancelOrder = `
UPDATE orders
SET status = 'CANCELLED', updated_at = NOW()
WHERE id = $1 AND status <> 'CANCELLED'
RETURNING ` + orderColumns

// CancelOrder enforces its precondition atomically: no rows means the order
// is missing or already cancelled.
func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, id))
}

const reactivateOrder = `
UPDATE orders
SET status = 'AWAITING_PAYMENT_VERIFICATION', paid = FALSE, updated_at = NOW()
WHERE id = $1 AND status = 'CANCELLED'
RETURNING ` + orderColumns

func (q *Queries) ReactivateOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, reactivateOrder, id))
}

type UpdateOrderTotalsParams struct {
	ID             uuid.UUID
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
}

const updateOrderTotals = `
UPDATE orders
SET subtotal = $2, discount_amount = $3, total_amount = $4, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID, arg.Subtotal, arg.DiscountAmount, arg.TotalAmount,
	))
}

// --- Order items ---

const orderItemColumns = `id, order_id, product_id, quantity, unit_price, discount_percent, subtotal`

func scanOrderItem(row interface{ Scan(dest ...interface{}) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
		&it.UnitPrice, &it.DiscountPercent, &it.Subtotal,
	)
	return it, err
}

type CreateOrderItemParams struct {
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	Quantity        int32
	UnitPrice       pgtype.Numeric
	DiscountPercent pgtype.Numeric
	Subtotal        pgtype.Numeric
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount_percent, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderItemColumns

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ProductID, arg.Quantity,
		arg.UnitPrice, arg.DiscountPercent, arg.Subtotal,
	))
}

const listOrderItemsByOrder = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteOrderItems = `
DELETE FROM order_items
WHERE order_id = $1`

// DeleteOrderItems clears an order's items before the replacement set is
// inserted. Only called inside the item-edit transaction.
func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItems, orderID)
	return err
}
