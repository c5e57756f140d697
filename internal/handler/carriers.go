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
)

// CarrierStore defines the database methods needed by carrier handlers.
type CarrierStore interface {
	ListCarriers(ctx context.Context) ([]database.Carrier, error)
	GetCarrier(ctx context.Context, id uuid.UUID) (database.Carrier, error)
	CreateCarrier(ctx context.Context, arg database.CreateCarrierParams) (database.Carrier, error)
	SoftDeleteCarrier(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// CarrierHandler handles national carrier configuration endpoints.
type CarrierHandler struct {
	store CarrierStore
}

// NewCarrierHandler creates a new CarrierHandler.
func NewCarrierHandler(store CarrierStore) *CarrierHandler {
	return &CarrierHandler{store: store}
}

type carrierRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type carrierResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toCarrierResponse(c database.Carrier) carrierResponse {
	resp := carrierResponse{
		ID:        c.ID,
		Name:      c.Name,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
	}
	if c.Phone.Valid {
		resp.Phone = &c.Phone.String
	}
	return resp
}

// List returns all active carriers.
func (h *CarrierHandler) List(w http.ResponseWriter, r *http.Request) {
	carriers, err := h.store.ListCarriers(r.Context())
	if err != nil {
		log.Printf("ERROR: list carriers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]carrierResponse, len(carriers))
	for i, c := range carriers {
		resp[i] = toCarrierResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single carrier by ID.
func (h *CarrierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid carrier ID"})
		return
	}

	carrier, err := h.store.GetCarrier(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "carrier not found"})
			return
		}
		log.Printf("ERROR: get carrier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCarrierResponse(carrier))
}

// Create adds a carrier.
func (h *CarrierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req carrierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	carrier, err := h.store.CreateCarrier(r.Context(), database.CreateCarrierParams{
		Name:  req.Name,
		Phone: optionalText(req.Phone),
	})
	if err != nil {
		log.Printf("ERROR: create carrier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toCarrierResponse(carrier))
}

// Delete soft-deletes a carrier. Existing shipments keep the reference.
func (h *CarrierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid carrier ID"})
		return
	}

	if _, err := h.store.SoftDeleteCarrier(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "carrier not found"})
			return
		}
		log.Printf("ERROR: delete carrier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
