package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
	"github.com/rodriguezddev/repuestos-api/internal/handler"
	"github.com/rodriguezddev/repuestos-api/internal/middleware"
)

// --- Mock PaymentStore ---

type mockPaymentStore struct {
	getOrderFn             func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getOrderForUpdateFn    func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getPaymentMethodFn     func(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error)
	createPaymentFn        func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	listPaymentsByOrderFn  func(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	markOrderPaidFn        func(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	getInvoiceByOrderFn    func(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	getNextInvoiceNumberFn func(ctx context.Context) (int32, error)
	createInvoiceFn        func(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
}

func (m *mockPaymentStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderForUpdateFn != nil {
		return m.getOrderForUpdateFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) GetPaymentMethod(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error) {
	if m.getPaymentMethodFn != nil {
		return m.getPaymentMethodFn(ctx, id)
	}
	return database.PaymentMethod{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	if m.createPaymentFn != nil {
		return m.createPaymentFn(ctx, arg)
	}
	return database.Payment{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	if m.listPaymentsByOrderFn != nil {
		return m.listPaymentsByOrderFn(ctx, orderID)
	}
	return []database.Payment{}, nil
}

func (m *mockPaymentStore) MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	if m.markOrderPaidFn != nil {
		return m.markOrderPaidFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error) {
	if m.getInvoiceByOrderFn != nil {
		return m.getInvoiceByOrderFn(ctx, orderID)
	}
	return database.Invoice{}, pgx.ErrNoRows
}

func (m *mockPaymentStore) GetNextInvoiceNumber(ctx context.Context) (int32, error) {
	if m.getNextInvoiceNumberFn != nil {
		return m.getNextInvoiceNumberFn(ctx)
	}
	return 1, nil
}

func (m *mockPaymentStore) CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
	if m.createInvoiceFn != nil {
		return m.createInvoiceFn(ctx, arg)
	}
	return database.Invoice{}, pgx.ErrNoRows
}

// --- Mock TxBeginner ---

type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

type mockPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// --- Test helpers ---

func setupPaymentRouter(store *mockPaymentStore) *chi.Mux {
	pool := &mockPool{}
	newStore := func(db database.DBTX) handler.PaymentStore { return store }
	h := handler.NewPaymentHandler(store, pool, newStore, nil)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/orders/{id}/payments", h.RegisterRoutes)
	return r
}

func testPaymentMethod(requiresReference bool) database.PaymentMethod {
	return database.PaymentMethod{
		ID:                uuid.New(),
		Name:              "Transferencia Bancaria",
		Kind:              enum.PaymentKindTransfer,
		RequiresReference: requiresReference,
		IsActive:          true,
		CreatedAt:         time.Now(),
	}
}

// --- Add tests ---

func TestPaymentAdd_HappyPath(t *testing.T) {
	claims := testClaims()
	order := testDBOrder()
	method := testPaymentMethod(false)

	var markedStatus string
	invoiceIssued := false

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		getPaymentMethodFn: func(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error) {
			return method, nil
		},
		createPaymentFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			if arg.ProcessedBy != claims.UserID {
				t.Errorf("processed_by: got %v, want %v", arg.ProcessedBy, claims.UserID)
			}
			return database.Payment{
				ID:              uuid.New(),
				OrderID:         order.ID,
				PaymentMethodID: method.ID,
				Amount:          arg.Amount,
				ProcessedBy:     arg.ProcessedBy,
				ProcessedAt:     time.Now(),
			}, nil
		},
		markOrderPaidFn: func(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
			markedStatus = arg.Status
			paid := order
			paid.Paid = true
			paid.Status = arg.Status
			return paid, nil
		},
		getNextInvoiceNumberFn: func(ctx context.Context) (int32, error) {
			return 1, nil
		},
		createInvoiceFn: func(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
			invoiceIssued = true
			if arg.InvoiceNumber != "INV-001" {
				t.Errorf("invoice_number: got %v, want INV-001", arg.InvoiceNumber)
			}
			return database.Invoice{
				ID:            uuid.New(),
				OrderID:       order.ID,
				InvoiceNumber: arg.InvoiceNumber,
				Description:   arg.Description,
				IssuedAt:      time.Now(),
			}, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": method.ID.String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	// Verified payment moves the waiting order into PACKAGING
	if markedStatus != enum.OrderStatusPackaging {
		t.Errorf("marked status: got %v, want PACKAGING", markedStatus)
	}
	if !invoiceIssued {
		t.Error("invoice should be issued alongside the payment")
	}

	resp := decodeResponse(t, rr)
	payment, ok := resp["payment"].(map[string]interface{})
	if !ok {
		t.Fatal("payment not present in response")
	}
	if payment["amount"] != "150.00" {
		t.Errorf("payment amount: got %v, want 150.00", payment["amount"])
	}
	orderResp := resp["order"].(map[string]interface{})
	if orderResp["paid"] != true {
		t.Errorf("order paid: got %v, want true", orderResp["paid"])
	}
	if orderResp["status"] != "PACKAGING" {
		t.Errorf("order status: got %v, want PACKAGING", orderResp["status"])
	}
	invoice := resp["invoice"].(map[string]interface{})
	if invoice["invoice_number"] != "INV-001" {
		t.Errorf("invoice_number: got %v, want INV-001", invoice["invoice_number"])
	}
}

func TestPaymentAdd_KeepsLaterStatus(t *testing.T) {
	claims := testClaims()
	// In-store orders can settle at pickup, already past PACKAGING
	order := testDBOrderWithStatus(enum.OrderStatusReadyForPickup)
	method := testPaymentMethod(false)

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		getPaymentMethodFn: func(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error) {
			return method, nil
		},
		createPaymentFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			return database.Payment{ID: uuid.New(), OrderID: order.ID, Amount: arg.Amount, ProcessedAt: time.Now()}, nil
		},
		markOrderPaidFn: func(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
			if arg.Status != enum.OrderStatusReadyForPickup {
				t.Errorf("status: got %v, want READY_FOR_PICKUP (unchanged)", arg.Status)
			}
			paid := order
			paid.Paid = true
			return paid, nil
		},
		createInvoiceFn: func(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
			return database.Invoice{ID: uuid.New(), OrderID: order.ID, InvoiceNumber: arg.InvoiceNumber, IssuedAt: time.Now()}, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": method.ID.String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestPaymentAdd_AlreadyPaid(t *testing.T) {
	claims := testClaims()
	order := testDBOrderWithStatus(enum.OrderStatusPackaging)
	order.Paid = true

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": uuid.New().String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "order is already paid" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestPaymentAdd_CancelledOrder(t *testing.T) {
	claims := testClaims()
	order := testDBOrderWithStatus(enum.OrderStatusCancelled)

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": uuid.New().String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

func TestPaymentAdd_AmountMismatch(t *testing.T) {
	claims := testClaims()
	order := testDBOrder() // total 150.00
	method := testPaymentMethod(false)

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		getPaymentMethodFn: func(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error) {
			return method, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": method.ID.String(),
		"amount":            "100.00",
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "amount must equal order total 150.00" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestPaymentAdd_ReferenceRequired(t *testing.T) {
	claims := testClaims()
	order := testDBOrder()
	method := testPaymentMethod(true)

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		getPaymentMethodFn: func(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error) {
			return method, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": method.ID.String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "reference_number is required for Transferencia Bancaria payments" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestPaymentAdd_InvoiceIdempotent(t *testing.T) {
	claims := testClaims()
	order := testDBOrder()
	method := testPaymentMethod(false)
	existingInvoice := database.Invoice{
		ID:            uuid.New(),
		OrderID:       order.ID,
		InvoiceNumber: "INV-007",
		IssuedAt:      time.Now(),
	}

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		getPaymentMethodFn: func(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error) {
			return method, nil
		},
		createPaymentFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			return database.Payment{ID: uuid.New(), OrderID: order.ID, Amount: arg.Amount, ProcessedAt: time.Now()}, nil
		},
		markOrderPaidFn: func(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
			paid := order
			paid.Paid = true
			paid.Status = arg.Status
			return paid, nil
		},
		getInvoiceByOrderFn: func(ctx context.Context, orderID uuid.UUID) (database.Invoice, error) {
			return existingInvoice, nil
		},
		createInvoiceFn: func(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error) {
			t.Error("CreateInvoice should not be called when an invoice exists")
			return database.Invoice{}, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": method.ID.String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	invoice := resp["invoice"].(map[string]interface{})
	if invoice["invoice_number"] != "INV-007" {
		t.Errorf("invoice_number: got %v, want INV-007", invoice["invoice_number"])
	}
}

func TestPaymentAdd_OrderNotFound(t *testing.T) {
	claims := testClaims()
	router := setupPaymentRouter(&mockPaymentStore{})

	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.New().String()+"/payments", map[string]interface{}{
		"payment_method_id": uuid.New().String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestPaymentAdd_InvalidMethod(t *testing.T) {
	claims := testClaims()
	order := testDBOrder()

	store := &mockPaymentStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments", map[string]interface{}{
		"payment_method_id": uuid.New().String(),
		"amount":            "150.00",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestPaymentAdd_NonPositiveAmount(t *testing.T) {
	claims := testClaims()
	router := setupPaymentRouter(&mockPaymentStore{})

	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.New().String()+"/payments", map[string]interface{}{
		"payment_method_id": uuid.New().String(),
		"amount":            "0",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// --- List tests ---

func TestPaymentList_HappyPath(t *testing.T) {
	claims := testClaims()
	order := testDBOrder()

	store := &mockPaymentStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		listPaymentsByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
			return []database.Payment{
				{
					ID:              uuid.New(),
					OrderID:         order.ID,
					PaymentMethodID: uuid.New(),
					Amount:          testNumeric("150.00"),
					ProcessedBy:     uuid.New(),
					ProcessedAt:     time.Now(),
				},
			}, nil
		},
	}

	router := setupPaymentRouter(store)
	rr := doAuthRequest(t, router, "GET", "/orders/"+order.ID.String()+"/payments", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var payments []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &payments); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments count: got %d, want 1", len(payments))
	}
	if payments[0]["amount"] != "150.00" {
		t.Errorf("amount: got %v, want 150.00", payments[0]["amount"])
	}
}

func TestPaymentList_OrderNotFound(t *testing.T) {
	claims := testClaims()
	router := setupPaymentRouter(&mockPaymentStore{})

	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String()+"/payments", nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
