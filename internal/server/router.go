// Package server wires handlers into the HTTP router and applies the
// request-scoped middleware stack.
package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/auth"
	"github.com/phara0n/ecarv1/internal/handlers"
	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/logger"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/services"
)

// Deps carries everything the router needs. The jobs queue and PDF
// pipeline are constructed in main and passed through the invoice
// handler's document store and render fallback.
type Deps struct {
	DB          *gorm.DB
	Tokens      *auth.TokenIssuer
	Gate        *policy.Gate
	Invoices    *services.InvoiceService
	Documents   handlers.DocumentStore
	Attachments services.AttachmentStore
	RenderPDF   handlers.RenderFn
}

// New constructs the root http.Handler with all routes and middleware.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := d.DB.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(d.DB, d.Tokens)
	customers := handlers.NewCustomerHandler(d.DB, d.Gate)
	vehicles := handlers.NewVehicleHandler(d.DB, d.Gate)
	repairs := handlers.NewRepairHandler(d.DB, d.Gate, d.Attachments)
	invoices := handlers.NewInvoiceHandler(d.DB, d.Gate, d.Invoices, d.Documents, d.RenderPDF)
	brands := handlers.NewBrandHandler(d.DB)

	mux.HandleFunc("POST /api/v1/login", authHandler.Login)
	// registration is the only unauthenticated write
	mux.HandleFunc("POST /api/v1/customers", customers.Create)

	authed := func(h http.HandlerFunc) http.Handler {
		return d.Tokens.RequireAuth(h)
	}

	mux.Handle("GET /api/v1/customers", authed(customers.List))
	mux.Handle("GET /api/v1/customers/{id}", authed(customers.Get))
	mux.Handle("PATCH /api/v1/customers/{id}", authed(customers.Update))
	mux.Handle("PUT /api/v1/customers/{id}", authed(customers.Update))
	mux.Handle("DELETE /api/v1/customers/{id}", authed(customers.Delete))

	mux.Handle("GET /api/v1/vehicles", authed(vehicles.List))
	mux.Handle("POST /api/v1/vehicles", authed(vehicles.Create))
	mux.Handle("GET /api/v1/vehicles/{id}", authed(vehicles.Get))
	mux.Handle("PATCH /api/v1/vehicles/{id}", authed(vehicles.Update))
	mux.Handle("PUT /api/v1/vehicles/{id}", authed(vehicles.Update))
	mux.Handle("DELETE /api/v1/vehicles/{id}", authed(vehicles.Delete))
	mux.Handle("PATCH /api/v1/vehicles/{id}/mileage", authed(vehicles.UpdateMileage))

	mux.Handle("GET /api/v1/vehicles/{vehicleID}/repairs", authed(repairs.List))
	mux.Handle("POST /api/v1/vehicles/{vehicleID}/repairs", authed(repairs.Create))
	mux.Handle("GET /api/v1/repairs/{id}", authed(repairs.Get))
	mux.Handle("PATCH /api/v1/repairs/{id}", authed(repairs.Update))
	mux.Handle("PUT /api/v1/repairs/{id}", authed(repairs.Update))
	mux.Handle("DELETE /api/v1/repairs/{id}", authed(repairs.Delete))

	mux.Handle("GET /api/v1/invoices", authed(invoices.List))
	mux.Handle("POST /api/v1/invoices", authed(invoices.Create))
	mux.Handle("GET /api/v1/invoices/{id}", authed(invoices.Get))
	mux.Handle("PATCH /api/v1/invoices/{id}", authed(invoices.Update))
	mux.Handle("PUT /api/v1/invoices/{id}", authed(invoices.Update))
	mux.Handle("DELETE /api/v1/invoices/{id}", authed(invoices.Delete))
	mux.Handle("GET /api/v1/invoices/{id}/download", authed(invoices.Download))
	mux.Handle("PATCH /api/v1/invoices/{id}/payment", authed(invoices.Payment))

	mux.Handle("GET /api/v1/brands", authed(brands.List))

	return withRecover(withLogging(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	log := logger.WithComponent("server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func withRecover(next http.Handler) http.Handler {
	log := logger.WithComponent("server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
