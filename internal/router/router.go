package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rodriguezddev/repuestos-api/internal/config"
	"github.com/rodriguezddev/repuestos-api/internal/database"
	"github.com/rodriguezddev/repuestos-api/internal/enum"
	"github.com/rodriguezddev/repuestos-api/internal/exchange"
	"github.com/rodriguezddev/repuestos-api/internal/handler"
	mw "github.com/rodriguezddev/repuestos-api/internal/middleware"
	"github.com/rodriguezddev/repuestos-api/internal/service"
	"github.com/rodriguezddev/repuestos-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // storefront dev server
			"http://localhost:5174", // admin dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Exchange rate (public, cached upstream lookup)
	rateHandler := handler.NewRateHandler(exchange.NewClient(cfg.ExchangeRateURL))
	r.Route("/rates", rateHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Catalog reads are public so the storefront can browse without a token
	productHandler := handler.NewProductHandler(queries)
	categoryHandler := handler.NewCategoryHandler(queries)
	r.Get("/products", productHandler.List)
	r.Get("/products/{id}", productHandler.Get)
	r.Get("/categories", categoryHandler.List)
	r.Get("/categories/{id}", categoryHandler.Get)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			paymentMethodHandler := handler.NewPaymentMethodHandler(queries)
			r.Route("/payment-methods", func(r chi.Router) {
				r.Post("/", paymentMethodHandler.Create)
				r.Put("/{id}", paymentMethodHandler.Update)
				r.Delete("/{id}", paymentMethodHandler.Delete)
			})

			carrierHandler := handler.NewCarrierHandler(queries)
			r.Route("/carriers", func(r chi.Router) {
				r.Post("/", carrierHandler.Create)
				r.Delete("/{id}", carrierHandler.Delete)
			})

			// Catalog writes
			r.Post("/products", productHandler.Create)
			r.Put("/products/{id}", productHandler.Update)
			r.Delete("/products/{id}", productHandler.Delete)
			r.Post("/categories", categoryHandler.Create)
			r.Put("/categories/{id}", categoryHandler.Update)
			r.Delete("/categories/{id}", categoryHandler.Delete)
		})

		// Staff routes (ADMIN or STAFF)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleStaff))

			// Config reads for the POS screens
			paymentMethodHandler := handler.NewPaymentMethodHandler(queries)
			r.Get("/payment-methods", paymentMethodHandler.List)
			r.Get("/payment-methods/{id}", paymentMethodHandler.Get)

			carrierHandler := handler.NewCarrierHandler(queries)
			r.Get("/carriers", carrierHandler.List)
			r.Get("/carriers/{id}", carrierHandler.Get)

			// Customers
			customerHandler := handler.NewCustomerHandler(queries)
			r.Route("/customers", customerHandler.RegisterRoutes)

			// Orders
			newOrderStore := func(db database.DBTX) service.OrderStore {
				return database.New(db)
			}
			orderService := service.NewOrderService(pool, newOrderStore)
			orderHandler := handler.NewOrderHandler(orderService, queries, hub)
			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)

				// Payments (nested under orders)
				r.Route("/{id}/payments", func(r chi.Router) {
					paymentHandler := handler.NewPaymentHandler(
						queries,
						pool,
						func(db database.DBTX) handler.PaymentStore {
							return database.New(db)
						},
						hub,
					)
					paymentHandler.RegisterRoutes(r)
				})

				// Shipment (nested under orders)
				r.Route("/{id}/shipment", func(r chi.Router) {
					shipmentHandler := handler.NewShipmentHandler(
						queries,
						pool,
						func(db database.DBTX) handler.ShipmentStore {
							return database.New(db)
						},
						hub,
					)
					shipmentHandler.RegisterRoutes(r)
				})

				// Invoice lookup (nested under orders)
				r.Route("/{id}/invoice", func(r chi.Router) {
					invoiceHandler := handler.NewInvoiceHandler(queries)
					invoiceHandler.RegisterRoutes(r)
				})
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
