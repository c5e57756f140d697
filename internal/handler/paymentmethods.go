package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
)

// PaymentMethodStore defines the database methods needed by payment method handlers.
type PaymentMethodStore interface {
	ListPaymentMethods(ctx context.Context) ([]database.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id uuid.UUID) (database.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, arg database.CreatePaymentMethodParams) (database.PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, arg database.UpdatePaymentMethodParams) (database.PaymentMethod, error)
	SoftDeletePaymentMethod(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// PaymentMethodHandler handles payment method configuration endpoints.
type PaymentMethodHandler struct {
	store PaymentMethodStore
}

// NewPaymentMethodHandler creates a new PaymentMethodHandler.
func NewPaymentMethodHandler(store PaymentMethodStore) *PaymentMethodHandler {
	return &PaymentMethodHandler{store: store}
}

type paymentMethodRequest struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	RequiresReference bool   `json:"requires_reference"`
}

type paymentMethodResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Kind              string    `json:"kind"`
	RequiresReference bool      `json:"requires_reference"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

func toPaymentMethodResponse(pm database.PaymentMethod) paymentMethodResponse {
	return paymentMethodResponse{
		ID:                pm.ID,
		Name:              pm.Name,
		Kind:              pm.Kind,
		RequiresReference: pm.RequiresReference,
		IsActive:          pm.IsActive,
		CreatedAt:         pm.CreatedAt,
	}
}

// List returns all active payment methods.
func (h *PaymentMethodHandler) List(w http.ResponseWriter, r *http.Request) {
	methods, err := h.store.ListPaymentMethods(r.Context())
	if err != nil {
		log.Printf("ERROR: list payment methods: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentMethodResponse, len(methods))
	for i, pm := range methods {
		resp[i] = toPaymentMethodResponse(pm)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single payment method by ID.
func (h *PaymentMethodHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment method ID"})
		return
	}

	method, err := h.store.GetPaymentMethod(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment method not found"})
			return
		}
		log.Printf("ERROR: get payment method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPaymentMethodResponse(method))
}

// Create adds a payment method.
func (h *PaymentMethodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !enum.ValidPaymentKind(req.Kind) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kind"})
		return
	}

	method, err := h.store.CreatePaymentMethod(r.Context(), database.CreatePaymentMethodParams{
		Name:              req.Name,
		Kind:              req.Kind,
		RequiresReference: req.RequiresReference,
	})
	if err != nil {
		log.Printf("ERROR: create payment method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentMethodResponse(method))
}

// Update modifies a payment method.
func (h *PaymentMethodHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment method ID"})
		return
	}

	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !enum.ValidPaymentKind(req.Kind) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid kind"})
		return
	}

	method, err := h.store.UpdatePaymentMethod(r.Context(), database.UpdatePaymentMethodParams{
		ID:                id,
		Name:              req.Name,
		Kind:              req.Kind,
		RequiresReference: req.RequiresReference,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment method not found"})
			return
		}
		log.Printf("ERROR: update payment method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPaymentMethodResponse(method))
}

// Delete soft-deletes a payment method. Past payments keep the reference.
func (h *PaymentMethodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment method ID"})
		return
	}

	if _, err := h.store.SoftDeletePaymentMethod(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment method not found"})
			return
		}
		log.Printf("ERROR: delete payment method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
