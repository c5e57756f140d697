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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
	"github.com/rodriguezddev/repuestos-api/internal/service"
	"github.com/rodriguezddev/repuestos-api/internal/ws"
)

// ShipmentStore defines the database methods needed by shipment handlers.
type ShipmentStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetShipmentByOrder(ctx context.Context, orderID uuid.UUID) (database.Shipment, error)
	CreateShipment(ctx context.Context, arg database.CreateShipmentParams) (database.Shipment, error)
	UpdateShipment(ctx context.Context, arg database.UpdateShipmentParams) (database.Shipment, error)
	GetCarrier(ctx context.Context, id uuid.UUID) (database.Carrier, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewShipmentStore creates a ShipmentStore from a DBTX (pool or tx).
type NewShipmentStore func(db database.DBTX) ShipmentStore

// ShipmentHandler handles shipment endpoints.
type ShipmentHandler struct {
	store    ShipmentStore
	pool     service.TxBeginner
	newStore NewShipmentStore
	notifier Notifier
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(store ShipmentStore, pool service.TxBeginner, newStore NewShipmentStore, notifier Notifier) *ShipmentHandler {
	return &ShipmentHandler{store: store, pool: pool, newStore: newStore, notifier: notifier}
}

// RegisterRoutes registers shipment endpoints on the given Chi router.
// Expected to be mounted at /orders/{id}/shipment
func (h *ShipmentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.Get)
	r.Patch("/", h.Update)
}

// --- Request / Response types ---

type createShipmentRequest struct {
	DeliveryMethod   string `json:"delivery_method"`
	CarrierID        string `json:"carrier_id"`
	TrackingNumber   string `json:"tracking_number"`
	RecipientName    string `json:"recipient_name"`
	RecipientPhone   string `json:"recipient_phone"`
	RecipientAddress string `json:"recipient_address"`
}

type updateShipmentRequest struct {
	CarrierID        string `json:"carrier_id"`
	TrackingNumber   string `json:"tracking_number"`
	RecipientName    string `json:"recipient_name"`
	RecipientPhone   string `json:"recipient_phone"`
	RecipientAddress string `json:"recipient_address"`
}

type shipmentResponse struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	DeliveryMethod   string    `json:"delivery_method"`
	CarrierID        *string   `json:"carrier_id"`
	TrackingNumber   *string   `json:"tracking_number"`
	RecipientName    string    `json:"recipient_name"`
	RecipientPhone   *string   `json:"recipient_phone"`
	RecipientAddress *string   `json:"recipient_address"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// shipmentResultResponse pairs the shipment with the order it may have
// advanced, plus a warning when the order stayed put.
type shipmentResultResponse struct {
	Shipment shipmentResponse `json:"shipment"`
	Order    orderResponse    `json:"order"`
	Warning  string           `json:"warning,omitempty"`
}

func dbShipmentToResponse(s database.Shipment) shipmentResponse {
	resp := shipmentResponse{
		ID:             s.ID,
		OrderID:        s.OrderID,
		DeliveryMethod: s.DeliveryMethod,
		RecipientName:  s.RecipientName,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.CarrierID.Valid {
		id := uuid.UUID(s.CarrierID.Bytes).String()
		resp.CarrierID = &id
	}
	if s.TrackingNumber.Valid {
		resp.TrackingNumber = &s.TrackingNumber.String
	}
	if s.RecipientPhone.Valid {
		resp.RecipientPhone = &s.RecipientPhone.String
	}
	if s.RecipientAddress.Valid {
		resp.RecipientAddress = &s.RecipientAddress.String
	}
	return resp
}

const trackingPendingWarning = "shipment recorded without tracking number, order stays in PACKAGING until one is added"

// --- Handlers ---

// Create handles POST /orders/{id}/shipment. The delivery method decides
// where the order goes: PICKUP moves it to READY_FOR_PICKUP, DELIVERY moves
// it straight to SHIPPED, NATIONAL_CARRIER moves it to SHIPPED only once a
// tracking number exists. Shipment row and status change commit together.
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req createShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.DeliveryMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delivery_method is required"})
		return
	}
	if !enum.ValidDeliveryMethod(req.DeliveryMethod) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery_method"})
		return
	}
	if req.RecipientName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipient_name is required"})
		return
	}

	carrierID := pgtype.UUID{}
	if req.DeliveryMethod == enum.DeliveryMethodNationalCarrier {
		if req.CarrierID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "carrier_id is required for NATIONAL_CARRIER shipments"})
			return
		}
		cid, err := uuid.Parse(req.CarrierID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid carrier_id"})
			return
		}
		carrierID = pgtype.UUID{Bytes: cid, Valid: true}
	}
	if req.DeliveryMethod != enum.DeliveryMethodPickup && req.RecipientAddress == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipient_address is required"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for create shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	order, err := txStore.GetOrderForUpdate(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.Status != enum.OrderStatusPackaging {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "order must be in PACKAGING to ship, currently " + order.Status,
		})
		return
	}

	if _, err := txStore.GetShipmentByOrder(r.Context(), orderID); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order already has a shipment"})
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if carrierID.Valid {
		if _, err := txStore.GetCarrier(r.Context(), uuid.UUID(carrierID.Bytes)); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid carrier_id"})
				return
			}
			log.Printf("ERROR: get carrier: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	shipment, err := txStore.CreateShipment(r.Context(), database.CreateShipmentParams{
		OrderID:          orderID,
		DeliveryMethod:   req.DeliveryMethod,
		CarrierID:        carrierID,
		TrackingNumber:   optionalText(req.TrackingNumber),
		RecipientName:    req.RecipientName,
		RecipientPhone:   optionalText(req.RecipientPhone),
		RecipientAddress: optionalText(req.RecipientAddress),
	})
	if err != nil {
		log.Printf("ERROR: create shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	nextStatus, warning := shipmentOutcome(req.DeliveryMethod, req.TrackingNumber != "")

	updatedOrder := order
	if nextStatus != "" {
		updatedOrder, err = txStore.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
			ID:         orderID,
			Status:     nextStatus,
			FromStatus: enum.OrderStatusPackaging,
		})
		if err != nil {
			log.Printf("ERROR: update order status for shipment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for create shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if nextStatus != "" {
		h.notify(updatedOrder)
	}

	writeJSON(w, http.StatusCreated, shipmentResultResponse{
		Shipment: dbShipmentToResponse(shipment),
		Order:    dbOrderToResponse(updatedOrder),
		Warning:  warning,
	})
}

// Get handles GET /orders/{id}/shipment.
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	shipment, err := h.store.GetShipmentByOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "shipment not found"})
			return
		}
		log.Printf("ERROR: get shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbShipmentToResponse(shipment))
}

// Update handles PATCH /orders/{id}/shipment. Adding the missing tracking
// number to a carrier shipment is what finally moves the order to SHIPPED.
func (h *ShipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for update shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	order, err := txStore.GetOrderForUpdate(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for update shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	existing, err := txStore.GetShipmentByOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "shipment not found"})
			return
		}
		log.Printf("ERROR: get shipment for update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Absent fields keep their current value
	carrierID := existing.CarrierID
	if req.CarrierID != "" {
		cid, err := uuid.Parse(req.CarrierID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid carrier_id"})
			return
		}
		if _, err := txStore.GetCarrier(r.Context(), cid); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid carrier_id"})
				return
			}
			log.Printf("ERROR: get carrier: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		carrierID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	tracking := existing.TrackingNumber
	if req.TrackingNumber != "" {
		tracking = pgtype.Text{String: req.TrackingNumber, Valid: true}
	}
	recipientName := existing.RecipientName
	if req.RecipientName != "" {
		recipientName = req.RecipientName
	}
	recipientPhone := existing.RecipientPhone
	if req.RecipientPhone != "" {
		recipientPhone = pgtype.Text{String: req.RecipientPhone, Valid: true}
	}
	recipientAddress := existing.RecipientAddress
	if req.RecipientAddress != "" {
		recipientAddress = pgtype.Text{String: req.RecipientAddress, Valid: true}
	}

	shipment, err := txStore.UpdateShipment(r.Context(), database.UpdateShipmentParams{
		OrderID:          orderID,
		CarrierID:        carrierID,
		TrackingNumber:   tracking,
		RecipientName:    recipientName,
		RecipientPhone:   recipientPhone,
		RecipientAddress: recipientAddress,
	})
	if err != nil {
		log.Printf("ERROR: update shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// A carrier shipment that just gained tracking releases the order
	updatedOrder := order
	warning := ""
	if existing.DeliveryMethod == enum.DeliveryMethodNationalCarrier && order.Status == enum.OrderStatusPackaging {
		if tracking.Valid {
			updatedOrder, err = txStore.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
				ID:         orderID,
				Status:     enum.OrderStatusShipped,
				FromStatus: enum.OrderStatusPackaging,
			})
			if err != nil {
				log.Printf("ERROR: update order status for shipment: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		} else {
			warning = trackingPendingWarning
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for update shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if updatedOrder.Status != order.Status {
		h.notify(updatedOrder)
	}

	writeJSON(w, http.StatusOK, shipmentResultResponse{
		Shipment: dbShipmentToResponse(shipment),
		Order:    dbOrderToResponse(updatedOrder),
		Warning:  warning,
	})
}

// --- Helpers ---

// shipmentOutcome maps a delivery method to the status the order should
// move to. An empty status means the order stays in PACKAGING; the warning
// tells the operator why.
func shipmentOutcome(method string, hasTracking bool) (nextStatus, warning string) {
	switch method {
	case enum.DeliveryMethodPickup:
		return enum.OrderStatusReadyForPickup, ""
	case enum.DeliveryMethodDelivery:
		return enum.OrderStatusShipped, ""
	case enum.DeliveryMethodNationalCarrier:
		if hasTracking {
			return enum.OrderStatusShipped, ""
		}
		return "", trackingPendingWarning
	}
	return "", ""
}

func (h *ShipmentHandler) notify(order database.Order) {
	if h.notifier == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"id":           order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       order.Status,
	})
	if err != nil {
		return
	}
	h.notifier.Broadcast(ws.Event{Type: "order.updated", Payload: payload})
}
