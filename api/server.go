/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency by route pattern
  5. CORS:       Cross-origin requests for the storefront and admin apps

ROUTE GROUPS:
  /api/orders/*          Checkout and order lifecycle
  /api/ledger/*          Udhar ledger
  /api/customers/*       Customers, balances, statements
  /api/milk/*            Subscriptions, deliveries, billing
  /api/products, /api/settings, /api/migrate-to-ledger
  /healthz, /metrics

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/kirana-ledger/metrics"
)

// DefaultAllowedOrigins are used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.PlaceOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Post("/{id}/convert-to-udhar", h.ConvertToUdhar)
			r.Post("/{id}/mark-paid", h.MarkPaid)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", h.GetLedger)
			r.Post("/", h.PostEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.RegisterCustomer)
			r.Post("/verify-pin", h.VerifyPIN)
			r.Get("/{id}", h.GetCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Post("/{id}/restore", h.RestoreCustomer)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/statement/{month}", h.GetStatement)
		})

		r.Route("/milk", func(r chi.Router) {
			r.Get("/subscriptions", h.ListSubscriptions)
			r.Post("/subscriptions", h.Subscribe)
			r.Get("/subscriptions/{customerId}", h.GetSubscription)
			r.Post("/subscriptions/{customerId}/pause", h.PauseSubscription)
			r.Post("/subscriptions/{customerId}/resume", h.ResumeSubscription)
			r.Get("/logs", h.ListMilkLogs)
			r.Post("/logs", h.RecordDelivery)
			r.Post("/logs/auto", h.AutoLogDeliveries)
			r.Post("/payments", h.RecordMilkPayment)
			r.Get("/billing/{month}", h.GetMilkBilling)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.SaveProduct)
			r.Get("/{id}", h.GetProduct)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.SaveSettings)

		r.Post("/migrate-to-ledger", h.MigrateToLedger)
	})

	return r
}

// =============================================================================
// METRICS MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency labelled by the matched
// route pattern, so ids in paths do not explode label cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
