package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rodriguezddev/repuestos-api/internal/database"
)

// ErrStockCheckFailed is returned when a stock probe itself fails; callers
// must treat it as a hard failure, never as a pass.
var ErrStockCheckFailed = errors.New("could not verify stock")

// StockReader is the read-only slice of the store needed for validation.
type StockReader interface {
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
}

// ItemRequest is a requested product/quantity pair.
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int32
}

// StockResult is the outcome of a stock validation pass.
type StockResult struct {
	Valid   bool
	Message string
}

// ValidateStock checks requested quantities against current stock without
// mutating anything.
//
// Create mode (editing=false): every requested quantity is checked against
// the product's current stock.
//
// Edit mode (editing=true): only the per-product increase over originals is
// checked. Reducing a quantity or removing an item only returns stock, so it
// can never fail validation.
func ValidateStock(ctx context.Context, store StockReader, requested, originals []ItemRequest, editing bool) (StockResult, error) {
	needed := map[uuid.UUID]int32{}
	var order []uuid.UUID // probe in request order so messages are stable
	for _, item := range requested {
		if _, seen := needed[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		needed[item.ProductID] += item.Quantity
	}

	if editing {
		for _, item := range originals {
			needed[item.ProductID] -= item.Quantity
		}
	}

	for _, productID := range order {
		delta := needed[productID]
		if delta <= 0 {
			continue
		}
		product, err := store.GetProductForOrder(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return StockResult{Valid: false, Message: fmt.Sprintf("product %s not found", productID)}, nil
			}
			return StockResult{}, fmt.Errorf("%w: %w", ErrStockCheckFailed, err)
		}
		if delta > product.Stock {
			return StockResult{
				Valid: false,
				Message: fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
					product.Name, delta, product.Stock),
			}, nil
		}
	}

	return StockResult{Valid: true}, nil
}

// stockDeltas computes per-product quantity changes between the old and new
// item sets. Positive values need a reservation, negative values a restore.
func stockDeltas(old, new []ItemRequest) map[uuid.UUID]int32 {
	deltas := map[uuid.UUID]int32{}
	for _, item := range new {
		deltas[item.ProductID] += item.Quantity
	}
	for _, item := range old {
		deltas[item.ProductID] -= item.Quantity
	}
	for id, d := range deltas {
		if d == 0 {
			delete(deltas, id)
		}
	}
	return deltas
}
