package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
	"github.com/rodriguezddev/repuestos-api/internal/middleware"
	"github.com/rodriguezddev/repuestos-api/internal/service"
	"github.com/rodriguezddev/repuestos-api/internal/ws"
	"github.com/shopspring/decimal"
)

// PaymentStore defines the database methods needed by payment handlers.
type PaymentStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetPaymentMethod(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	GetNextInvoiceNumber(ctx context.Context) (int32, error)
	CreateInvoice(ctx context.Context, arg database.CreateInvoiceParams) (database.Invoice, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store    PaymentStore
	pool     service.TxBeginner
	newStore NewPaymentStore
	notifier Notifier
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, pool service.TxBeginner, newStore NewPaymentStore, notifier Notifier) *PaymentHandler {
	return &PaymentHandler{store: store, pool: pool, newStore: newStore, notifier: notifier}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /orders/{id}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Add)
	r.Get("/", h.List)
}

// --- Request / Response types ---

type addPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
	Amount          string `json:"amount"`
	ReferenceNumber string `json:"reference_number"`
	VoucherURL      string `json:"voucher_url"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	PaymentMethodID uuid.UUID `json:"payment_method_id"`
	Amount          string    `json:"amount"`
	ReferenceNumber *string   `json:"reference_number"`
	VoucherURL      *string   `json:"voucher_url"`
	ProcessedBy     uuid.UUID `json:"processed_by"`
	ProcessedAt     time.Time `json:"processed_at"`
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          numericToString(p.Amount),
		ProcessedBy:     p.ProcessedBy,
		ProcessedAt:     p.ProcessedAt,
	}
	if p.ReferenceNumber.Valid {
		resp.ReferenceNumber = &p.ReferenceNumber.String
	}
	if p.VoucherUrl.Valid {
		resp.VoucherURL = &p.VoucherUrl.String
	}
	return resp
}

// --- Handlers ---

// Add handles POST /orders/{id}/payments. Recording a payment, marking the
// order paid, advancing it to PACKAGING and issuing the invoice happen in a
// single transaction; if any step fails none of them persist.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req addPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.PaymentMethodID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method_id is required"})
		return
	}
	methodID, err := uuid.Parse(req.PaymentMethodID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method_id"})
		return
	}

	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	// Begin transaction BEFORE reading order state. Two concurrent payments
	// could both pass validation outside a tx and double-pay the order.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	// Lock the order row to serialize concurrent payment inserts
	order, err := txStore.GetOrderForUpdate(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.Status == enum.OrderStatusCancelled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot add payment to cancelled order"})
		return
	}
	if order.Paid {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already paid"})
		return
	}

	method, err := txStore.GetPaymentMethod(r.Context(), methodID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method_id"})
			return
		}
		log.Printf("ERROR: get payment method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Transfer-style methods demand a reference for verification
	if method.RequiresReference && req.ReferenceNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("reference_number is required for %s payments", method.Name),
		})
		return
	}

	// Single-payment model: the payment settles the whole order
	orderTotal := numericToDec(order.TotalAmount)
	if !amount.Equal(orderTotal) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": fmt.Sprintf("amount must equal order total %s", orderTotal.StringFixed(2)),
		})
		return
	}

	var amountNumeric pgtype.Numeric
	if err := amountNumeric.Scan(amount.StringFixed(2)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	payment, err := txStore.CreatePayment(r.Context(), database.CreatePaymentParams{
		OrderID:         orderID,
		PaymentMethodID: methodID,
		Amount:          amountNumeric,
		ReferenceNumber: optionalText(req.ReferenceNumber),
		VoucherUrl:      optionalText(req.VoucherURL),
		ProcessedBy:     claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// A verified payment moves a waiting order into PACKAGING. Orders paid
	// later in the lifecycle (in-store settles at pickup) keep their status.
	nextStatus := order.Status
	if order.Status == enum.OrderStatusAwaitingPayment {
		nextStatus = enum.OrderStatusPackaging
	}
	updatedOrder, err := txStore.MarkOrderPaid(r.Context(), database.MarkOrderPaidParams{
		ID:     orderID,
		Status: nextStatus,
	})
	if err != nil {
		log.Printf("ERROR: mark order paid: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	invoice, err := h.ensureInvoice(r.Context(), txStore, updatedOrder)
	if err != nil {
		log.Printf("ERROR: issue invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.notify(updatedOrder)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment": dbPaymentToResponse(payment),
		"order":   dbOrderToResponse(updatedOrder),
		"invoice": dbInvoiceToResponse(invoice),
	})
}

// List handles GET /orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	// Verify order exists
	if _, err := h.store.GetOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// ensureInvoice returns the order's invoice, issuing it if absent. Retrying
// a payment never issues a second one; the UNIQUE constraint on order_id is
// the backstop for concurrent racers.
func (h *PaymentHandler) ensureInvoice(ctx context.Context, store PaymentStore, order database.Order) (database.Invoice, error) {
	existing, err := store.GetInvoiceByOrder(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}

	nextNum, err := store.GetNextInvoiceNumber(ctx)
	if err != nil {
		return database.Invoice{}, fmt.Errorf("get next invoice number: %w", err)
	}

	invoice, err := store.CreateInvoice(ctx, database.CreateInvoiceParams{
		OrderID:       order.ID,
		InvoiceNumber: fmt.Sprintf("INV-%03d", nextNum),
		Description:   optionalText(fmt.Sprintf("Order %s", order.OrderNumber)),
	})
	if err != nil {
		return database.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, nil
}

func (h *PaymentHandler) notify(order database.Order) {
	if h.notifier == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"id":           order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"total_amount": numericToString(order.TotalAmount),
	})
	if err != nil {
		return
	}
	h.notifier.Broadcast(ws.Event{Type: "order.paid", Payload: payload})
}

func numericToDec(n pgtype.Numeric) decimal.Decimal {
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
