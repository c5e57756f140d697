package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rodriguezddev/repuestos-api/internal/database"
)

// InvoiceStore defines the database methods needed by invoice handlers.
type InvoiceStore interface {
	GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
}

// InvoiceHandler serves invoice lookups. Invoices are issued by the payment
// flow, never through this handler.
type InvoiceHandler struct {
	store InvoiceStore
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(store InvoiceStore) *InvoiceHandler {
	return &InvoiceHandler{store: store}
}

// RegisterRoutes registers invoice endpoints on the given Chi router.
// Expected to be mounted at /orders/{id}/invoice
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

type invoiceResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Description   *string   `json:"description"`
	IssuedAt      time.Time `json:"issued_at"`
}

func dbInvoiceToResponse(inv database.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		OrderID:       inv.OrderID,
		InvoiceNumber: inv.InvoiceNumber,
		IssuedAt:      inv.IssuedAt,
	}
	if inv.Description.Valid {
		resp.Description = &inv.Description.String
	}
	return resp
}

// Get handles GET /orders/{id}/invoice.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	invoice, err := h.store.GetInvoiceByOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
			return
		}
		log.Printf("ERROR: get invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbInvoiceToResponse(invoice))
}
