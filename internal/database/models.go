package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Customer struct {
	ID         uuid.UUID
	UserID     pgtype.UUID
	Name       string
	DocumentID pgtype.Text
	Phone      pgtype.Text
	Address    pgtype.Text
	IsActive   bool
	CreatedAt  time.Time
}

type Category struct {
	ID              uuid.UUID
	Name            string
	DiscountPercent pgtype.Numeric
	IsActive        bool
	CreatedAt       time.Time
}

type Product struct {
	ID                    uuid.UUID
	CategoryID            uuid.UUID
	Name                  string
	Description           pgtype.Text
	Price                 pgtype.Numeric
	Stock                 int32
	DiscountPercent       pgtype.Numeric
	ApplyCategoryDiscount bool
	ImageUrl              pgtype.Text
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type PaymentMethod struct {
	ID                uuid.UUID
	Name              string
	Kind              string
	RequiresReference bool
	IsActive          bool
	CreatedAt         time.Time
}

type Carrier struct {
	ID        uuid.UUID
	Name      string
	Phone     pgtype.Text
	IsActive  bool
	CreatedAt time.Time
}

type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	OrderType      string
	Status         string
	Paid           bool
	CustomerID     pgtype.UUID
	Subtotal       pgtype.Numeric
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	Notes          pgtype.Text
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	Quantity        int32
	UnitPrice       pgtype.Numeric
	DiscountPercent pgtype.Numeric
	Subtotal        pgtype.Numeric
}

type Payment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	PaymentMethodID uuid.UUID
	Amount          pgtype.Numeric
	ReferenceNumber pgtype.Text
	VoucherUrl      pgtype.Text
	ProcessedBy     uuid.UUID
	ProcessedAt     time.Time
}

type Invoice struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	InvoiceNumber string
	Description   pgtype.Text
	IssuedAt      time.Time
}

type Shipment struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	DeliveryMethod   string
	CarrierID        pgtype.UUID
	TrackingNumber   pgtype.Text
	RecipientName    string
	RecipientPhone   pgtype.Text
	RecipientAddress pgtype.Text
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
