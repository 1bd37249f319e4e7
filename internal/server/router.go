package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
)

// RouterDeps are the collaborators of the HTTP API. Limiter may be nil.
type RouterDeps struct {
	Receipts *ReceiptHandler
	Export   *ExportHandler
	Verifier *Verifier
	Limiter  RateLimiter
	Health   *HealthReporter
	Logger   *slog.Logger
}

// NewRouter builds the chi router with health probes and the /api/v1 routes.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(CorrelationID)
	r.Use(Recoverer(d.Logger))
	r.Use(Logger(d.Logger))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if !d.Health.Check(r.Context()) {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !d.Health.Healthy() {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	limited := RateLimit(d.Limiter, "receipts", d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(d.Verifier))

		r.With(RequireRole(constants.RoleCustomer), limited).
			Post("/orders/{orderID}/receipt", d.Receipts.UploadReceipt)
		r.Get("/orders/{orderID}/receipt", d.Receipts.GetOrderReceipt)

		r.With(limited).Post("/receipts/verify", d.Receipts.VerifyReceipt)
		r.Get("/receipts/{receiptID}", d.Receipts.GetReceipt)

		r.Route("/admin/receipts", func(r chi.Router) {
			r.Use(RequireRole(constants.RoleAdmin))
			r.Get("/", d.Receipts.ListReceipts)
			r.Get("/export", d.Export.ExportReceipts)
			r.Post("/{receiptID}/review", d.Receipts.ReviewReceipt)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, common.CodeNotFound, "Route not found", nil)
	})
	return r
}
