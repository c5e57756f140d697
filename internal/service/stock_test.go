package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rodriguezddev/repuestos-api/internal/database"
)

// mockStockReader implements StockReader with a configurable function.
type mockStockReader struct {
	getProductFn func(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
	calls        int
}

func (m *mockStockReader) GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
	m.calls++
	return m.getProductFn(ctx, id)
}

func productRow(id uuid.UUID, name string, stock int32) database.GetProductForOrderRow {
	return database.GetProductForOrderRow{
		ID:    id,
		Name:  name,
		Price: makeNumeric("10.00"),
		Stock: stock,
	}
}

func TestValidateStock_CreateWithinStock(t *testing.T) {
	productID := uuid.New()
	reader := &mockStockReader{
		getProductFn: func(_ context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			return productRow(id, "Brake Pad", 5), nil
		},
	}

	result, err := ValidateStock(context.Background(), reader,
		[]ItemRequest{{ProductID: productID, Quantity: 3}}, nil, false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got message %q", result.Message)
	}
}

func TestValidateStock_CreateExceedsStock(t *testing.T) {
	productID := uuid.New()
	reader := &mockStockReader{
		getProductFn: func(_ context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			return productRow(id, "Oil Filter", 2), nil
		},
	}

	result, err := ValidateStock(context.Background(), reader,
		[]ItemRequest{{ProductID: productID, Quantity: 3}}, nil, false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if !strings.Contains(result.Message, "Oil Filter") {
		t.Errorf("message should name the product, got %q", result.Message)
	}
	if !strings.Contains(result.Message, "available 2") {
		t.Errorf("message should include available stock, got %q", result.Message)
	}
}

func TestValidateStock_EditChecksOnlyPositiveDelta(t *testing.T) {
	productID := uuid.New()
	reader := &mockStockReader{
		getProductFn: func(_ context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			return productRow(id, "Spark Plug", 1), nil
		},
	}

	// Quantity goes 2 -> 5 with only 1 unit in stock: delta of 3 fails.
	result, err := ValidateStock(context.Background(), reader,
		[]ItemRequest{{ProductID: productID, Quantity: 5}},
		[]ItemRequest{{ProductID: productID, Quantity: 2}}, true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result for delta 3 against stock 1")
	}
	if !strings.Contains(result.Message, "requested 3") {
		t.Errorf("message should report the delta, got %q", result.Message)
	}
}

func TestValidateStock_EditReductionNeverFails(t *testing.T) {
	productID := uuid.New()
	removedID := uuid.New()
	reader := &mockStockReader{
		getProductFn: func(_ context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			t.Fatal("reductions and removals must not probe stock")
			return database.GetProductForOrderRow{}, nil
		},
	}

	// Reduce one item, remove the other; stock is irrelevant.
	result, err := ValidateStock(context.Background(), reader,
		[]ItemRequest{{ProductID: productID, Quantity: 1}},
		[]ItemRequest{
			{ProductID: productID, Quantity: 4},
			{ProductID: removedID, Quantity: 2},
		}, true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got message %q", result.Message)
	}
	if reader.calls != 0 {
		t.Errorf("expected 0 stock probes, got %d", reader.calls)
	}
}

func TestValidateStock_ProbeFailureIsHardError(t *testing.T) {
	productID := uuid.New()
	reader := &mockStockReader{
		getProductFn: func(_ context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			return database.GetProductForOrderRow{}, errors.New("connection reset")
		},
	}

	_, err := ValidateStock(context.Background(), reader,
		[]ItemRequest{{ProductID: productID, Quantity: 1}}, nil, false)
	if !errors.Is(err, ErrStockCheckFailed) {
		t.Fatalf("expected ErrStockCheckFailed, got %v", err)
	}
}

func TestValidateStock_MissingProductIsInvalidNotError(t *testing.T) {
	productID := uuid.New()
	reader := &mockStockReader{
		getProductFn: func(_ context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			return database.GetProductForOrderRow{}, pgx.ErrNoRows
		},
	}

	result, err := ValidateStock(context.Background(), reader,
		[]ItemRequest{{ProductID: productID, Quantity: 1}}, nil, false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result for missing product")
	}
}

func TestStockDeltas(t *testing.T) {
	kept := uuid.New()
	removed := uuid.New()
	added := uuid.New()
	unchanged := uuid.New()

	old := []ItemRequest{
		{ProductID: kept, Quantity: 2},
		{ProductID: removed, Quantity: 3},
		{ProductID: unchanged, Quantity: 1},
	}
	new := []ItemRequest{
		{ProductID: kept, Quantity: 5},
		{ProductID: added, Quantity: 4},
		{ProductID: unchanged, Quantity: 1},
	}

	deltas := stockDeltas(old, new)

	if got := deltas[kept]; got != 3 {
		t.Errorf("kept delta: got %d, want 3", got)
	}
	if got := deltas[removed]; got != -3 {
		t.Errorf("removed delta: got %d, want -3", got)
	}
	if got := deltas[added]; got != 4 {
		t.Errorf("added delta: got %d, want 4", got)
	}
	if _, ok := deltas[unchanged]; ok {
		t.Error("unchanged product should be absent from deltas")
	}
}
