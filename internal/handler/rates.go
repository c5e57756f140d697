package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rodriguezddev/repuestos-api/internal/exchange"
)

// RateFetcher defines the exchange rate lookup needed by the rate handler.
// Satisfied by *exchange.Client.
type RateFetcher interface {
	GetRate(ctx context.Context) (exchange.Rate, error)
}

// RateHandler serves the cached VES/USD reference rate.
type RateHandler struct {
	client RateFetcher
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(client RateFetcher) *RateHandler {
	return &RateHandler{client: client}
}

// RegisterRoutes registers rate endpoints on the given Chi router.
func (h *RateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

type rateResponse struct {
	Currency  string    `json:"currency"`
	Price     string    `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Get handles GET /rates.
func (h *RateHandler) Get(w http.ResponseWriter, r *http.Request) {
	rate, err := h.client.GetRate(r.Context())
	if err != nil {
		log.Printf("ERROR: get exchange rate: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "exchange rate unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, rateResponse{
		Currency:  rate.Currency,
		Price:     rate.Price.StringFixed(2),
		FetchedAt: rate.FetchedAt,
	})
}
