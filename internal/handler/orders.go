package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
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

// Notifier broadcasts order events to the staff WebSocket feed.
// Satisfied by *ws.Hub; nil disables broadcasting.
type Notifier interface {
	Broadcast(event ws.Event)
}

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []service.CreateOrderItemRequest) (*service.OrderResult, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, returnStock bool) (database.Order, error)
	ReactivateOrder(ctx context.Context, orderID uuid.UUID) (database.Order, error)
}

// OrderStore defines the database methods needed by order read/update handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	GetShipmentByOrder(ctx context.Context, orderID uuid.UUID) (database.Shipment, error)
	GetInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	store    OrderStore
	notifier Notifier
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, notifier Notifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, notifier: notifier}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/validate-stock", h.ValidateStock)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/items", h.ReplaceItems)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/reactivate", h.Reactivate)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType  string                   `json:"order_type"`
	CustomerID string                   `json:"customer_id"`
	Notes      string                   `json:"notes"`
	Items      []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type replaceItemsRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

type validateStockRequest struct {
	OrderID string                   `json:"order_id"`
	Items   []createOrderItemRequest `json:"items"`
}

type validateStockResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    string              `json:"order_number"`
	OrderType      string              `json:"order_type"`
	Status         string              `json:"status"`
	Paid           bool                `json:"paid"`
	CustomerID     *string             `json:"customer_id"`
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	Notes          *string             `json:"notes"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int32     `json:"quantity"`
	UnitPrice       string    `json:"unit_price"`
	DiscountPercent string    `json:"discount_percent"`
	Subtotal        string    `json:"subtotal"`
}

// orderDetailResponse extends orderResponse with payments, shipment and
// invoice for the GET detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Payments []paymentResponse `json:"payments"`
	Shipment *shipmentResponse `json:"shipment"`
	Invoice  *invoiceResponse  `json:"invoice"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Validate required fields
	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CreatedBy:  claims.UserID,
		OrderType:  req.OrderType,
		CustomerID: req.CustomerID,
		Notes:      req.Notes,
		Items:      toServiceItems(req.Items),
	})
	if err != nil {
		var stockErr *service.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": stockErr.Error()})
			return
		}
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.notify("order.created", result.Order)
	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// ValidateStock handles POST /orders/validate-stock. It is a read-only
// preflight: the authoritative check happens again inside the order
// transaction, so a passing result here can still fail on create.
func (h *OrderHandler) ValidateStock(w http.ResponseWriter, r *http.Request) {
	var req validateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	requested := make([]service.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "invalid product_id"),
			})
			return
		}
		requested[i] = service.ItemRequest{ProductID: productID, Quantity: item.Quantity}
	}

	// When an order_id is given the check runs in edit mode: quantities the
	// order already holds don't count against available stock.
	var originals []service.ItemRequest
	editing := false
	if req.OrderID != "" {
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
			return
		}
		if _, err := h.store.GetOrder(r.Context(), orderID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
				return
			}
			log.Printf("ERROR: get order for stock validation: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		existing, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
		if err != nil {
			log.Printf("ERROR: list order items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		originals = make([]service.ItemRequest, len(existing))
		for i, it := range existing {
			originals[i] = service.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		editing = true
	}

	result, err := service.ValidateStock(r.Context(), h.store, requested, originals, editing)
	if err != nil {
		log.Printf("ERROR: validate stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, validateStockResponse{Valid: result.Valid, Message: result.Message})
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	// Build query params with optional filters
	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.ValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("type"); s != "" {
		if !enum.ValidOrderType(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type"})
			return
		}
		params.OrderType = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orderResp := dbOrderToResponse(order)
	orderResp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		orderResp.Items[i] = dbOrderItemToResponse(item)
	}

	detail := orderDetailResponse{orderResponse: orderResp}
	detail.Payments = make([]paymentResponse, len(payments))
	for i, p := range payments {
		detail.Payments[i] = dbPaymentToResponse(p)
	}

	// Shipment and invoice exist only for some orders.
	shipment, err := h.store.GetShipmentByOrder(r.Context(), orderID)
	if err == nil {
		s := dbShipmentToResponse(shipment)
		detail.Shipment = &s
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get shipment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	invoice, err := h.store.GetInvoiceByOrder(r.Context(), orderID)
	if err == nil {
		inv := dbInvoiceToResponse(invoice)
		detail.Invoice = &inv
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// ReplaceItems handles PUT /orders/{id}/items.
func (h *OrderHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req replaceItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	result, err := h.svc.ReplaceItems(r.Context(), orderID, toServiceItems(req.Items))
	if err != nil {
		var stockErr *service.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			writeJSON(w, http.StatusConflict, map[string]string{"error": stockErr.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderCancelled):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is cancelled"})
		case errors.Is(err, service.ErrOrderNotEditable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order items can no longer be edited"})
		case errors.Is(err, service.ErrOrderPaid):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is paid, items can no longer be edited"})
		case isValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: replace order items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notify("order.updated", result.Order)
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !enum.ValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	// Fetch current order to validate transition
	current, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateStatusTransition(current.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	// The delivery method constrains the forward states once a shipment
	// exists, no matter which endpoint drives the transition.
	if req.Status == enum.OrderStatusShipped || req.Status == enum.OrderStatusReadyForPickup {
		shipment, err := h.store.GetShipmentByOrder(r.Context(), orderID)
		switch {
		case err == nil:
			if msg := shipmentStatusConflict(shipment, req.Status); msg != "" {
				writeJSON(w, http.StatusConflict, map[string]string{"error": msg})
				return
			}
		case errors.Is(err, pgx.ErrNoRows):
			// No shipment recorded yet, nothing to enforce.
		default:
			log.Printf("ERROR: get shipment for status update: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     req.Status,
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No rows updated means the status changed between our read and write
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.notify("order.updated", updated)
	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// Cancel handles DELETE /orders/{id}. The return_stock query param controls
// whether reserved units go back on the shelf; it defaults to true.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	returnStock := true
	if s := r.URL.Query().Get("return_stock"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid return_stock value"})
			return
		}
		returnStock = v
	}

	cancelled, err := h.svc.CancelOrder(r.Context(), orderID, returnStock)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderCancelled):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already cancelled"})
		default:
			log.Printf("ERROR: cancel order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notify("order.updated", cancelled)
	writeJSON(w, http.StatusOK, dbOrderToResponse(cancelled))
}

// Reactivate handles POST /orders/{id}/reactivate. Bringing a cancelled
// order back is an explicit action, never a side effect of an edit.
func (h *OrderHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.ReactivateOrder(r.Context(), orderID)
	if err != nil {
		var stockErr *service.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			writeJSON(w, http.StatusConflict, map[string]string{"error": stockErr.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderActive):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not cancelled"})
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a product on this order is no longer available"})
		default:
			log.Printf("ERROR: reactivate order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notify("order.updated", order)
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

// notify broadcasts a compact order event to the staff feed. Best effort:
// a nil notifier or marshal failure never affects the HTTP response.
func (h *OrderHandler) notify(eventType string, order database.Order) {
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
	h.notifier.Broadcast(ws.Event{Type: eventType, Payload: payload})
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func toServiceItems(items []createOrderItemRequest) []service.CreateOrderItemRequest {
	svcItems := make([]service.CreateOrderItemRequest, len(items))
	for i, item := range items {
		svcItems[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}
	return svcItems
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidCustomerID) ||
		errors.Is(err, service.ErrProductNotFound)
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	return resp
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		OrderType:      o.OrderType,
		Status:         o.Status,
		Paid:           o.Paid,
		Subtotal:       numericToString(o.Subtotal),
		DiscountAmount: numericToString(o.DiscountAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}

	return resp
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:              item.ID,
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		UnitPrice:       numericToString(item.UnitPrice),
		DiscountPercent: numericToString(item.DiscountPercent),
		Subtotal:        numericToString(item.Subtotal),
	}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// SHIPPED and CANCELLED are terminal here; a cancelled order only comes
// back through the reactivate endpoint.
var allowedTransitions = map[string][]string{
	enum.OrderStatusAwaitingPayment: {enum.OrderStatusPackaging, enum.OrderStatusCancelled},
	enum.OrderStatusPackaging:       {enum.OrderStatusReadyForPickup, enum.OrderStatusShipped, enum.OrderStatusCancelled},
	enum.OrderStatusReadyForPickup:  {enum.OrderStatusShipped, enum.OrderStatusCancelled},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}

// shipmentStatusConflict checks a requested status against the order's
// shipment. PICKUP orders finish at READY_FOR_PICKUP, only PICKUP orders
// go there, and a NATIONAL_CARRIER order ships once it has a tracking
// number. Returns an empty string when the transition is fine.
func shipmentStatusConflict(s database.Shipment, next string) string {
	switch next {
	case enum.OrderStatusShipped:
		if s.DeliveryMethod == enum.DeliveryMethodPickup {
			return "pickup orders move to READY_FOR_PICKUP, not SHIPPED"
		}
		if s.DeliveryMethod == enum.DeliveryMethodNationalCarrier && !s.TrackingNumber.Valid {
			return trackingPendingWarning
		}
	case enum.OrderStatusReadyForPickup:
		if s.DeliveryMethod != enum.DeliveryMethodPickup {
			return fmt.Sprintf("%s orders do not move to READY_FOR_PICKUP", s.DeliveryMethod)
		}
	}
	return ""
}
