// Package api exposes the box office over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/metrics"
	"ms-boxoffice/internal/payment"
	"ms-boxoffice/internal/purchase"
	"ms-boxoffice/internal/qr"
	"ms-boxoffice/internal/refund"
	"ms-boxoffice/internal/store"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SettingsStore reads and replaces the payment settings record;
// *payment.SettingsStore implements it.
type SettingsStore interface {
	Load(ctx context.Context) (payment.Settings, error)
	Save(ctx context.Context, settings payment.Settings) error
	Invalidate(ctx context.Context) error
}

type Handler struct {
	Purchases *purchase.Service
	Refunds   *refund.Service
	CheckIns  *checkin.Service
	Inventory *inventory.Ledger
	DB        *store.DB
	QR        *qr.Generator
	Settings  SettingsStore
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// NewRouter mounts the public routes and, behind verifier, the
// authenticated API.
func NewRouter(h *Handler, verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	// --- Public Routes ---
	r.Get("/healthz", h.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}
	r.Get("/api/ticket-types/{id}/quote", h.Quote)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, h.Logger))
		h.RegisterRoutes(r)
	})
	return r
}

// RegisterRoutes registers the authenticated routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/purchases", h.Purchase)

		r.Route("/payments/{id}", func(r chi.Router) {
			r.Post("/confirm", h.ConfirmPayment)
			r.Post("/refund", h.Refund)
		})

		r.Post("/checkins", h.CheckIn)

		r.Route("/tickets/{number}", func(r chi.Router) {
			r.Get("/", h.GetTicket)
			r.Get("/qr", h.GetTicketQR)
		})

		r.Route("/ticket-types/{id}", func(r chi.Router) {
			r.Put("/capacity", h.UpdateCapacity)
			r.Get("/summary", h.Summary)
		})

		if h.Settings != nil {
			r.Route("/settings/payment", func(r chi.Router) {
				r.Get("/", h.GetPaymentSettings)
				r.Put("/", h.UpdatePaymentSettings)
				r.Delete("/", h.ResetPaymentSettings)
			})
		}
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(ww.Status()), time.Since(start).String())
	})
}

// sendJSONResponse is a helper function to send JSON responses
func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation(apperr.CodeInvalidInput, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// statusOf maps an error kind to its HTTP status.
func statusOf(e *apperr.Error) int {
	switch e.Code {
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeInvalidCoupon, apperr.CodeCouponExpired, apperr.CodeCouponNotApplicable,
		apperr.CodeCouponExhausted, apperr.CodeBelowMinimumPurchase:
		return http.StatusUnprocessableEntity
	}

	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindBusinessRule, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExternal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	status := statusOf(e)
	body := utils.ErrorBody{Error: e.Message, Code: string(e.Code), Retryable: e.Retryable}
	if e.Kind == apperr.KindInternal {
		h.Logger.Error("HTTP", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		body.Error = "internal error"
	}
	sendJSONResponse(w, status, body)
}

// authorize answers 403 unless the actor in the request may perform action.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action auth.Action, res auth.Resource) (*auth.Actor, bool) {
	actor := auth.ActorFrom(r.Context())
	if !actor.Can(action, res) {
		id := ""
		if actor != nil {
			id = actor.ID
		}
		h.Logger.Warn("AUTH", fmt.Sprintf("%s denied %s on %s %s", id, action, res.Kind, res.OwnerID))
		h.writeError(w, r, apperr.ErrForbidden)
		return nil, false
	}
	return actor, true
}
