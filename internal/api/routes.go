package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/payment"
	"ms-boxoffice/internal/purchase"
	"ms-boxoffice/internal/refund"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Purchase buys tickets. The buyer defaults to the caller.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchase.Request
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		if actor := auth.ActorFrom(r.Context()); actor != nil {
			req.UserID = actor.ID
		}
	}
	if _, ok := h.authorize(w, r, auth.ActionPurchase, auth.Resource{Kind: "user", OwnerID: req.UserID}); !ok {
		return
	}

	res, err := h.Purchases.Purchase(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, utils.SuccessResponse("purchase completed", res))
}

// Quote prices a purchase without reserving anything.
// Expected query: ?quantity=2&coupon=SPRING10
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, apperr.Validation(apperr.CodeInvalidQuantity, "quantity must be a number"))
			return
		}
		quantity = q
	}

	res, err := h.Purchases.Quote(r.Context(), chi.URLParam(r, "id"), quantity, r.URL.Query().Get("coupon"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, res)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ActionConfirmPayment, auth.Resource{Kind: "payment"})
	if !ok {
		return
	}

	res, err := h.Purchases.ConfirmPayment(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("payment confirmed", res))
}

// Refund refunds a completed payment or cancels a pending one.
// Expected POST request body: {"amount": "25.00", "reason": "..."}
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	paymentID := chi.URLParam(r, "id")
	organizerID, err := h.organizerOfPayment(r, paymentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, ok := h.authorize(w, r, auth.ActionRefund, auth.Resource{Kind: "event", OwnerID: organizerID})
	if !ok {
		return
	}

	res, err := h.Refunds.Refund(r.Context(), refund.Request{
		PaymentID:      paymentID,
		Amount:         body.Amount,
		Reason:         body.Reason,
		ActorID:        actor.ID,
		Administrative: actor.Has(auth.RoleAdmin),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("payment refunded", res))
}

type alreadyCheckedInBody struct {
	utils.ErrorBody
	CheckedInAt string `json:"checked_in_at"`
}

// CheckIn admits a ticket by number or sealed QR payload.
// Expected POST request body: {"code": "TKT-...", "method": "manual", "device": "gate-a"}
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ActionCheckIn, auth.Resource{Kind: "ticket"})
	if !ok {
		return
	}

	var body struct {
		Code   string               `json:"code"`
		Method models.CheckInMethod `json:"method"`
		Device string               `json:"device"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	res, err := h.CheckIns.CheckIn(r.Context(), checkin.Request{
		Code:      body.Code,
		StaffID:   actor.ID,
		Method:    body.Method,
		Device:    body.Device,
		IPAddress: ip,
	})
	if err != nil {
		if res != nil && res.AlreadyCheckedIn {
			e := apperr.From(err)
			sendJSONResponse(w, http.StatusConflict, alreadyCheckedInBody{
				ErrorBody:   utils.ErrorBody{Error: e.Message, Code: string(e.Code)},
				CheckedInAt: res.CheckedInAt.UTC().Format(time.RFC3339),
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("checked in", res))
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.DB.GetTicketByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, ok := h.authorize(w, r, auth.ActionViewTicket, auth.Resource{Kind: "ticket", OwnerID: t.UserID}); !ok {
		return
	}
	sendJSONResponse(w, http.StatusOK, t)
}

// GetTicketQR renders the ticket's QR payload as a PNG.
func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	t, err := h.DB.GetTicketByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, ok := h.authorize(w, r, auth.ActionViewTicket, auth.Resource{Kind: "ticket", OwnerID: t.UserID}); !ok {
		return
	}
	if t.QRPayload == "" {
		h.writeError(w, r, apperr.NotFound(apperr.CodeTicketNotFound, "ticket has no qr code"))
		return
	}

	png, err := h.QR.PNG(t.QRPayload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", t.TicketNumber+".png"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// UpdateCapacity changes a ticket type's total.
// Expected PUT request body: {"quantity": 250}
func (h *Handler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Quantity == nil {
		h.writeError(w, r, apperr.Validation(apperr.CodeInvalidQuantity, "quantity is required"))
		return
	}

	id := chi.URLParam(r, "id")
	organizerID, err := h.organizerOfTicketType(r, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, ok := h.authorize(w, r, auth.ActionEditCapacity, auth.Resource{Kind: "event", OwnerID: organizerID}); !ok {
		return
	}

	tt, err := h.Inventory.AdjustCapacity(r.Context(), h.DB, id, *body.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("capacity updated", tt))
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	organizerID, err := h.organizerOfTicketType(r, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, ok := h.authorize(w, r, auth.ActionViewReport, auth.Resource{Kind: "event", OwnerID: organizerID}); !ok {
		return
	}

	summary, err := h.DB.GetTicketTypeSummary(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, summary)
}

type paymentSettingsBody struct {
	EnabledMethods []models.PaymentMethod `json:"enabled_methods"`
	GatewayTimeout string                 `json:"gateway_timeout"`
}

func settingsBody(s payment.Settings) paymentSettingsBody {
	return paymentSettingsBody{EnabledMethods: s.EnabledMethods, GatewayTimeout: s.GatewayTimeout.String()}
}

func (h *Handler) GetPaymentSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, auth.ActionManageSettings, auth.Resource{Kind: "settings"}); !ok {
		return
	}
	settings, err := h.Settings.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, settingsBody(settings))
}

// UpdatePaymentSettings replaces the settings record. An omitted
// gateway_timeout keeps the current one.
// Expected PUT request body: {"enabled_methods": ["card", "cash"], "gateway_timeout": "10s"}
func (h *Handler) UpdatePaymentSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ActionManageSettings, auth.Resource{Kind: "settings"})
	if !ok {
		return
	}
	var body paymentSettingsBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	current, err := h.Settings.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	next := payment.Settings{EnabledMethods: body.EnabledMethods, GatewayTimeout: current.GatewayTimeout}
	if body.GatewayTimeout != "" {
		d, err := time.ParseDuration(body.GatewayTimeout)
		if err != nil {
			h.writeError(w, r, apperr.Validation(apperr.CodeInvalidInput, "gateway_timeout must be a duration such as 10s"))
			return
		}
		next.GatewayTimeout = d
	}

	if err := h.Settings.Save(r.Context(), next); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("SETTINGS", fmt.Sprintf("payment settings replaced by %s", actor.ID))
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("payment settings saved", settingsBody(next)))
}

// ResetPaymentSettings drops the cached record so the configured defaults
// apply again.
func (h *Handler) ResetPaymentSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, auth.ActionManageSettings, auth.Resource{Kind: "settings"})
	if !ok {
		return
	}
	if err := h.Settings.Invalidate(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	settings, err := h.Settings.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("SETTINGS", fmt.Sprintf("payment settings reset by %s", actor.ID))
	sendJSONResponse(w, http.StatusOK, utils.SuccessResponse("payment settings reset", settingsBody(settings)))
}

func (h *Handler) organizerOfTicketType(r *http.Request, ticketTypeID string) (string, error) {
	tt, err := h.DB.GetTicketType(r.Context(), ticketTypeID)
	if err != nil {
		return "", err
	}
	ev, err := h.DB.GetEvent(r.Context(), tt.EventID)
	if err != nil {
		return "", err
	}
	return ev.OrganizerID, nil
}

func (h *Handler) organizerOfPayment(r *http.Request, paymentID string) (string, error) {
	p, err := h.DB.GetPayment(r.Context(), paymentID)
	if err != nil {
		return "", err
	}
	return h.organizerOfTicketType(r, p.TicketTypeID)
}
