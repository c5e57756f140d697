package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const shipmentColumns = `id, order_id, delivery_method, carrier_id, tracking_number, recipient_name, recipient_phone, recipient_address, created_at, updated_at`

func scanShipment(row interface{ Scan(dest ...interface{}) error }) (Shipment, error) {
	var s Shipment
	err := row.Scan(
		&s.ID, &s.OrderID, &s.DeliveryMethod, &s.CarrierID, &s.TrackingNumber,
		&s.RecipientName, &s.RecipientPhone, &s.RecipientAddress,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

type CreateShipmentParams struct {
	OrderID          uuid.UUID
	DeliveryMethod   string
	CarrierID        pgtype.UUID
	TrackingNumber   pgtype.Text
	RecipientName    string
	RecipientPhone   pgtype.Text
	RecipientAddress pgtype.Text
}

const createShipment = `
INSERT INTO shipments (order_id, delivery_method, carrier_id, tracking_number, recipient_name, recipient_phone, recipient_address)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + shipmentColumns

func (q *Queries) CreateShipment(ctx context.Context, arg CreateShipmentParams) (Shipment, error) {
	return scanShipment(q.db.QueryRow(ctx, createShipment,
		arg.OrderID, arg.DeliveryMethod, arg.CarrierID, arg.TrackingNumber,
		arg.RecipientName, arg.RecipientPhone, arg.RecipientAddress,
	))
}

const getShipmentByOrder = `
SELECT ` + shipmentColumns + `
FROM shipments
WHERE order_id = $1`

func (q *Queries) GetShipmentByOrder(ctx context.Context, orderID uuid.UUID) (Shipment, error) {
	return scanShipment(q.db.QueryRow(ctx, getShipmentByOrder, orderID))
}

type UpdateShipmentParams struct {
	OrderID          uuid.UUID
	CarrierID        pgtype.UUID
	TrackingNumber   pgtype.Text
	RecipientName    string
	RecipientPhone   pgtype.Text
	RecipientAddress pgtype.Text
}

const updateShipment = `
UPDATE shipments
SET carrier_id = $2, tracking_number = $3, recipient_name = $4,
    recipient_phone = $5, recipient_address = $6, updated_at = NOW()
WHERE order_id = $1
RETURNING ` + shipmentColumns

func (q *Queries) UpdateShipment(ctx context.Context, arg UpdateShipmentParams) (Shipment, error) {
	return scanShipment(q.db.QueryRow(ctx, updateShipment,
		arg.OrderID, arg.CarrierID, arg.TrackingNumber,
		arg.RecipientName, arg.RecipientPhone, arg.RecipientAddress,
	))
}

// --- Carriers ---

const carrierColumns = `id, name, phone, is_active, created_at`

func scanCarrier(row interface{ Scan(dest ...interface{}) error }) (Carrier, error) {
	var c Carrier
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.IsActive, &c.CreatedAt)
	return c, err
}

const listCarriers = `
SELECT ` + carrierColumns + `
FROM carriers
WHERE is_active = TRUE
ORDER BY name`

func (q *Queries) ListCarriers(ctx context.Context) ([]Carrier, error) {
	rows, err := q.db.Query(ctx, listCarriers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var carriers []Carrier
	for rows.Next() {
		c, err := scanCarrier(rows)
		if err != nil {
			return nil, err
		}
		carriers = append(carriers, c)
	}
	return carriers, rows.Err()
}

const getCarrier = `
SELECT ` + carrierColumns + `
FROM carriers
WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetCarrier(ctx context.Context, id uuid.UUID) (Carrier, error) {
	return scanCarrier(q.db.QueryRow(ctx, getCarrier, id))
}

type CreateCarrierParams struct {
	Name  string
	Phone pgtype.Text
}

const createCarrier = `
INSERT INTO carriers (name, phone)
VALUES ($1, $2)
RETURNING ` + carrierColumns

func (q *Queries) CreateCarrier(ctx context.Context, arg CreateCarrierParams) (Carrier, error) {
	return scanCarrier(q.db.QueryRow(ctx, createCarrier, arg.Name, arg.Phone))
}

const softDeleteCarrier = `
UPDATE carriers
SET is_active = FALSE
WHERE id = $1 AND is_active = TRUE
RETURNING id`

func (q *Queries) SoftDeleteCarrier(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCarrier, id).Scan(&deleted)
	return deleted, err
}
