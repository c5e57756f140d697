package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidProductID  = errors.New("invalid product_id")
	ErrInvalidCustomerID = errors.New("invalid customer_id")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrOrderNotEditable  = errors.New("order items can no longer be edited")
	ErrOrderPaid         = errors.New("order is paid, items can no longer be edited")
	ErrOrderActive       = errors.New("order is not cancelled")
)

// InsufficientStockError reports a reservation that would drive a product's
// stock negative. It names the product and the stock still available.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Product   string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Product, e.Requested, e.Available)
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order workflow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
	ReserveProductStock(ctx context.Context, arg database.ReserveProductStockParams) (int32, error)
	RestoreProductStock(ctx context.Context, arg database.RestoreProductStockParams) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ReactivateOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CreatedBy  uuid.UUID
	OrderType  string
	CustomerID string
	Notes      string
	Items      []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
}

// OrderResult is an order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService owns the order/stock workflow. Every multi-step mutation
// (reserve stock + write order rows) runs in a single transaction, so a
// failure in any step leaves no partial state behind.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// pricedItem is an order item with its price resolved.
type pricedItem struct {
	params database.CreateOrderItemParams
}

// CreateOrder validates the request, reserves stock, and inserts the order
// and its items atomically. Retries up to maxOrderNumberRetries times on
// order_number unique constraint violations (concurrent transactions can
// read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if !enum.ValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items, err := parseItems(req.Items)
	if err != nil {
		return nil, err
	}

	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, items, customerID)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, items []ItemRequest, customerID pgtype.UUID) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%03d", nextNum)

	priced, subtotal, discountAmount, err := s.priceAndReserve(ctx, store, items)
	if err != nil {
		return nil, err
	}
	totalAmount := subtotal.Sub(discountAmount)

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:    orderNumber,
		OrderType:      req.OrderType,
		CustomerID:     customerID,
		Subtotal:       decimalToNumeric(subtotal),
		DiscountAmount: decimalToNumeric(discountAmount),
		TotalAmount:    decimalToNumeric(totalAmount),
		Notes:          notes,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var itemResults []database.OrderItem
	for _, pi := range priced {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemResults = append(itemResults, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: itemResults}, nil
}

// priceAndReserve resolves pricing for each item and reserves its stock.
// Reservation is a conditional decrement; when it reports no rows the product
// either vanished or lacks stock, and the re-read distinguishes the two for
// the error message. Any error rolls the whole transaction back.
func (s *OrderService) priceAndReserve(ctx context.Context, store OrderStore, items []ItemRequest) ([]pricedItem, decimal.Decimal, decimal.Decimal, error) {
	subtotal := decimal.Zero
	discountTotal := decimal.Zero
	var priced []pricedItem

	for i, item := range items {
		product, err := store.GetProductForOrder(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("items[%d]: get product: %w", i, err)
		}

		if _, err := store.ReserveProductStock(ctx, database.ReserveProductStockParams{
			ID:       item.ProductID,
			Quantity: item.Quantity,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, decimal.Zero, &InsufficientStockError{
					ProductID: item.ProductID,
					Product:   product.Name,
					Requested: item.Quantity,
					Available: product.Stock,
				}
			}
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("items[%d]: reserve stock: %w", i, err)
		}

		unitPrice := numericToDecimal(product.Price)
		discount := effectiveDiscount(product)
		qty := decimal.NewFromInt32(item.Quantity)

		lineGross := unitPrice.Mul(qty)
		lineDiscount := lineGross.Mul(discount).Div(decimal.NewFromInt(100))
		lineNet := lineGross.Sub(lineDiscount)

		subtotal = subtotal.Add(lineGross)
		discountTotal = discountTotal.Add(lineDiscount)

		priced = append(priced, pricedItem{
			params: database.CreateOrderItemParams{
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				UnitPrice:       decimalToNumeric(unitPrice),
				DiscountPercent: decimalToNumeric(discount),
				Subtotal:        decimalToNumeric(lineNet),
			},
		})
	}

	return priced, subtotal, discountTotal, nil
}

// ReplaceItems swaps an order's item set for a new one, adjusting stock by
// the per-product delta: increases are conditional reservations, decreases
// and removals are restores. Runs in one transaction with the order row
// locked, so concurrent edits of the same order serialize and a failed
// reservation rolls every adjustment back.
func (s *OrderService) ReplaceItems(ctx context.Context, orderID uuid.UUID, reqItems []CreateOrderItemRequest) (*OrderResult, error) {
	if len(reqItems) == 0 {
		return nil, ErrEmptyItems
	}
	newItems, err := parseItems(reqItems)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	switch order.Status {
	case enum.OrderStatusCancelled:
		return nil, ErrOrderCancelled
	case enum.OrderStatusShipped, enum.OrderStatusReadyForPickup:
		return nil, ErrOrderNotEditable
	}
	// The recorded payment matched the total at payment time; editing the
	// items afterwards would desync the two.
	if order.Paid {
		return nil, ErrOrderPaid
	}

	existing, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	oldItems := make([]ItemRequest, len(existing))
	for i, it := range existing {
		oldItems[i] = ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	// Apply stock deltas. Restores cannot fail on stock; reservations can.
	for productID, delta := range stockDeltas(oldItems, newItems) {
		if delta < 0 {
			if _, err := store.RestoreProductStock(ctx, database.RestoreProductStockParams{
				ID:       productID,
				Quantity: -delta,
			}); err != nil {
				return nil, fmt.Errorf("restore stock: %w", err)
			}
			continue
		}
		product, err := store.GetProductForOrder(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		if _, err := store.ReserveProductStock(ctx, database.ReserveProductStockParams{
			ID:       productID,
			Quantity: delta,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &InsufficientStockError{
					ProductID: productID,
					Product:   product.Name,
					Requested: delta,
					Available: product.Stock,
				}
			}
			return nil, fmt.Errorf("reserve stock: %w", err)
		}
	}

	// Rewrite the item rows with current pricing.
	if err := store.DeleteOrderItems(ctx, orderID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	subtotal := decimal.Zero
	discountTotal := decimal.Zero
	var itemResults []database.OrderItem
	for i, item := range newItems {
		product, err := store.GetProductForOrder(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: get product: %w", i, err)
		}
		unitPrice := numericToDecimal(product.Price)
		discount := effectiveDiscount(product)
		qty := decimal.NewFromInt32(item.Quantity)

		lineGross := unitPrice.Mul(qty)
		lineDiscount := lineGross.Mul(discount).Div(decimal.NewFromInt(100))

		subtotal = subtotal.Add(lineGross)
		discountTotal = discountTotal.Add(lineDiscount)

		created, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:         orderID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       decimalToNumeric(unitPrice),
			DiscountPercent: decimalToNumeric(discount),
			Subtotal:        decimalToNumeric(lineGross.Sub(lineDiscount)),
		})
		if err != nil {
			return nil, fmt.Errorf("items[%d]: create order item: %w", i, err)
		}
		itemResults = append(itemResults, created)
	}

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:             orderID,
		Subtotal:       decimalToNumeric(subtotal),
		DiscountAmount: decimalToNumeric(discountTotal),
		TotalAmount:    decimalToNumeric(subtotal.Sub(discountTotal)),
	})
	if err != nil {
		return nil, fmt.Errorf("update order totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: updated, Items: itemResults}, nil
}

// CancelOrder moves the order to CANCELLED and, when returnStock is set,
// restores every item's quantity to its product. The compensating restores
// run in the same transaction as the status change, so a create followed by
// cancel-with-return leaves every product's stock at its pre-order value.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, returnStock bool) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CancelOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing or already cancelled; re-read to tell them apart.
			if _, getErr := store.GetOrderForUpdate(ctx, orderID); getErr != nil {
				return database.Order{}, ErrOrderNotFound
			}
			return database.Order{}, ErrOrderCancelled
		}
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}

	if returnStock {
		items, err := store.ListOrderItemsByOrder(ctx, orderID)
		if err != nil {
			return database.Order{}, fmt.Errorf("list order items: %w", err)
		}
		for _, item := range items {
			if _, err := store.RestoreProductStock(ctx, database.RestoreProductStockParams{
				ID:       item.ProductID,
				Quantity: item.Quantity,
			}); err != nil {
				return database.Order{}, fmt.Errorf("restore stock: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// ReactivateOrder is the explicit operator action that brings a cancelled
// order back to the start of the lifecycle. Stock is reserved again for
// every item; if any product no longer has enough units the reactivation
// fails as a whole.
func (s *OrderService) ReactivateOrder(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.ReactivateOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := store.GetOrderForUpdate(ctx, orderID); getErr != nil {
				return database.Order{}, ErrOrderNotFound
			}
			return database.Order{}, ErrOrderActive
		}
		return database.Order{}, fmt.Errorf("reactivate order: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}
	for _, item := range items {
		product, err := store.GetProductForOrder(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, ErrProductNotFound
			}
			return database.Order{}, fmt.Errorf("get product: %w", err)
		}
		if _, err := store.ReserveProductStock(ctx, database.ReserveProductStockParams{
			ID:       item.ProductID,
			Quantity: item.Quantity,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, &InsufficientStockError{
					ProductID: item.ProductID,
					Product:   product.Name,
					Requested: item.Quantity,
					Available: product.Stock,
				}
			}
			return database.Order{}, fmt.Errorf("reserve stock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// --- Helpers ---

func parseItems(reqItems []CreateOrderItemRequest) ([]ItemRequest, error) {
	items := make([]ItemRequest, len(reqItems))
	for i, item := range reqItems {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
		items[i] = ItemRequest{ProductID: productID, Quantity: item.Quantity}
	}
	return items, nil
}

// effectiveDiscount applies the mutual-exclusion rule: a product discount
// wins outright; the category discount only applies when the product has
// none and opted in.
func effectiveDiscount(p database.GetProductForOrderRow) decimal.Decimal {
	productDiscount := numericToDecimal(p.DiscountPercent)
	if productDiscount.IsPositive() {
		return productDiscount
	}
	if p.ApplyCategoryDiscount {
		return numericToDecimal(p.CategoryDiscount)
	}
	return decimal.Zero
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
