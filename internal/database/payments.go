package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, payment_method_id, amount, reference_number, voucher_url, processed_by, processed_at`

func scanPayment(row interface{ Scan(dest ...interface{}) error }) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.PaymentMethodID, &p.Amount,
		&p.ReferenceNumber, &p.VoucherUrl, &p.ProcessedBy, &p.ProcessedAt,
	)
	return p, err
}

type CreatePaymentParams struct {
	OrderID         uuid.UUID
	PaymentMethodID uuid.UUID
	Amount          pgtype.Numeric
	ReferenceNumber pgtype.Text
	VoucherUrl      pgtype.Text
	ProcessedBy     uuid.UUID
}

const createPayment = `
INSERT INTO payments (order_id, payment_method_id, amount, reference_number, voucher_url, processed_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + paymentColumns

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.OrderID, arg.PaymentMethodID, arg.Amount,
		arg.ReferenceNumber, arg.VoucherUrl, arg.ProcessedBy,
	))
}

const listPaymentsByOrder = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
ORDER BY processed_at`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// --- Payment methods ---

const paymentMethodColumns = `id, name, kind, requires_reference, is_active, created_at`

func scanPaymentMethod(row interface{ Scan(dest ...interface{}) error }) (PaymentMethod, error) {
	var pm PaymentMethod
	err := row.Scan(&pm.ID, &pm.Name, &pm.Kind, &pm.RequiresReference, &pm.IsActive, &pm.CreatedAt)
	return pm, err
}

const listPaymentMethods = `
SELECT ` + paymentMethodColumns + `
FROM payment_methods
WHERE is_active = TRUE
ORDER BY name`

func (q *Queries) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := q.db.Query(ctx, listPaymentMethods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, pm)
	}
	return methods, rows.Err()
}

const getPaymentMethod = `
SELECT ` + paymentMethodColumns + `
FROM payment_methods
WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetPaymentMethod(ctx context.Context, id uuid.UUID) (PaymentMethod, error) {
	return scanPaymentMethod(q.db.QueryRow(ctx, getPaymentMethod, id))
}

type CreatePaymentMethodParams struct {
	Name              string
	Kind              string
	RequiresReference bool
}

const createPaymentMethod = `
INSERT INTO payment_methods (name, kind, requires_reference)
VALUES ($1, $2, $3)
RETURNING ` + paymentMethodColumns

func (q *Queries) CreatePaymentMethod(ctx context.Context, arg CreatePaymentMethodParams) (PaymentMethod, error) {
	return scanPaymentMethod(q.db.QueryRow(ctx, createPaymentMethod,
		arg.Name, arg.Kind, arg.RequiresReference,
	))
}

type UpdatePaymentMethodParams struct {
	ID                uuid.UUID
	Name              string
	Kind              string
	RequiresReference bool
}

const updatePaymentMethod = `
UPDATE payment_methods
SET name = $2, kind = $3, requires_reference = $4
WHERE id = $1 AND is_active = TRUE
RETURNING ` + paymentMethodColumns

func (q *Queries) UpdatePaymentMethod(ctx context.Context, arg UpdatePaymentMethodParams) (PaymentMethod, error) {
	return scanPaymentMethod(q.db.QueryRow(ctx, updatePaymentMethod,
		arg.ID, arg.Name, arg.Kind, arg.RequiresReference,
	))
}

const softDeletePaymentMethod = `
UPDATE payment_methods
SET is_active = FALSE
WHERE id = $1 AND is_active = TRUE
RETURNING id`

func (q *Queries) SoftDeletePaymentMethod(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeletePaymentMethod, id).Scan(&deleted)
	return deleted, err
}
