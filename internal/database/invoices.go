package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, order_id, invoice_number, description, issued_at`

func scanInvoice(row interface{ Scan(dest ...interface{}) error }) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.InvoiceNumber, &inv.Description, &inv.IssuedAt)
	return inv, err
}

type CreateInvoiceParams struct {
	OrderID       uuid.UUID
	InvoiceNumber string
	Description   pgtype.Text
}

const createInvoice = `
INSERT INTO invoices (order_id, invoice_number, description)
VALUES ($1, $2, $3)
RETURNING ` + invoiceColumns

// CreateInvoice inserts the order's invoice. A UNIQUE constraint on order_id
// backs the at-most-one-invoice-per-order rule; callers check for an
// existing invoice first and treat the constraint as a safety net.
func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, createInvoice,
		arg.OrderID, arg.InvoiceNumber, arg.Description,
	))
}

const getInvoiceByOrder = `
SELECT ` + invoiceColumns + `
FROM invoices
WHERE order_id = $1`

func (q *Queries) GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceByOrder, orderID))
}

const getNextInvoiceNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(invoice_number FROM 5) AS INTEGER)), 0) + 1
FROM invoices`

func (q *Queries) GetNextInvoiceNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextInvoiceNumber).Scan(&n)
	return n, err
}
