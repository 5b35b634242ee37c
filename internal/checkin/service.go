// Package checkin consumes tickets at the venue entrance.
package checkin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/metrics"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/notify"
	"ms-boxoffice/internal/qr"
	"ms-boxoffice/internal/store"
	"ms-boxoffice/internal/utils"

	"github.com/google/uuid"
)

type Service struct {
	DB       *store.DB
	QR       *qr.Generator
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Logger   *logger.Logger
}

func NewService(db *store.DB, qrGen *qr.Generator, n notify.Notifier, m *metrics.Metrics, c clock.Clock, l *logger.Logger) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{DB: db, QR: qrGen, Notifier: n, Metrics: m, Clock: c, Logger: l}
}

type Request struct {
	// Code is a ticket number or a sealed QR payload.
	Code      string               `json:"code" validate:"required"`
	StaffID   string               `json:"staff_id"`
	Method    models.CheckInMethod `json:"method"`
	Device    string               `json:"device,omitempty"`
	IPAddress string               `json:"ip_address,omitempty"`
}

type Result struct {
	Ticket           *models.Ticket  `json:"ticket"`
	CheckIn          *models.CheckIn `json:"check_in,omitempty"`
	CheckedInAt      time.Time       `json:"checked_in_at"`
	AlreadyCheckedIn bool            `json:"already_checked_in"`
}

// CheckIn admits the ticket behind req.Code. A ticket that was already
// admitted returns a Result carrying the original time together with
// apperr.ErrAlreadyCheckedIn, so the gate can show when it was used.
func (s *Service) CheckIn(ctx context.Context, req Request) (*Result, error) {
	res, err := s.checkIn(ctx, req)
	if err != nil {
		appErr := apperr.From(err)
		s.Metrics.CheckIn(metrics.Outcome(string(appErr.Code)))
		if appErr.Kind == apperr.KindInternal {
			s.Logger.Error("CHECKIN", fmt.Sprintf("check-in by %s failed: %v", req.StaffID, err))
		} else {
			s.Logger.LogCheckIn("REJECTED", ticketLabel(res, req.Code), string(appErr.Code))
		}
		return res, appErr
	}

	s.Metrics.CheckIn(metrics.Outcome(""))
	s.Logger.LogCheckIn("ADMITTED", res.Ticket.TicketNumber, fmt.Sprintf("by %s via %s", req.StaffID, res.CheckIn.Method))

	payload := map[string]interface{}{
		"ticket_id":     res.Ticket.ID,
		"ticket_number": res.Ticket.TicketNumber,
		"event_id":      res.Ticket.EventID,
		"checked_in_at": res.CheckedInAt,
	}
	if err := s.Notifier.Notify(ctx, notify.Recipient{UserID: res.Ticket.UserID}, notify.TicketCheckedIn, payload); err != nil {
		s.Logger.Warn("CHECKIN", fmt.Sprintf("check-in notification for %s failed: %v", res.Ticket.TicketNumber, err))
	}
	return res, nil
}

func (s *Service) checkIn(ctx context.Context, req Request) (*Result, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "ticket number or qr code is required")
	}

	// Step 1: resolve the code to a ticket number
	number, ticketID, method, err := s.resolve(code, req.Method)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		t, err := tx.GetTicketByNumber(ctx, number)
		if err != nil {
			return err
		}
		if ticketID != "" && ticketID != t.ID {
			return apperr.ErrInvalidQR
		}

		// Step 2: a used ticket reports when it was used
		if t.IsCheckedIn {
			result = &Result{Ticket: t, AlreadyCheckedIn: true}
			if t.CheckedInAt != nil {
				result.CheckedInAt = *t.CheckedInAt
			}
			prior, err := tx.GetCheckInByTicket(ctx, t.ID)
			if err != nil {
				return err
			}
			if prior != nil {
				result.CheckIn = prior
				result.CheckedInAt = prior.CheckedInAt
			}
			return apperr.BusinessRule(apperr.CodeAlreadyCheckedIn,
				fmt.Sprintf("ticket %s was already checked in at %s", t.TicketNumber, result.CheckedInAt.Format(time.RFC3339)))
		}

		// Step 3: only confirmed, paid tickets get in
		switch {
		case t.Status == models.TicketCancelled || t.Status == models.TicketRefunded:
			return apperr.BusinessRule(apperr.CodeTicketNotValid,
				fmt.Sprintf("ticket %s is %s", t.TicketNumber, t.Status))
		case t.Status != models.TicketConfirmed || t.PaymentStatus != models.PaymentCompleted:
			return apperr.BusinessRule(apperr.CodePaymentNotCompleted,
				fmt.Sprintf("ticket %s is %s with payment %s", t.TicketNumber, t.Status, t.PaymentStatus))
		}

		// Step 4: consume it and write the audit record
		now := s.Clock.Now()
		ok, err := tx.MarkCheckedIn(ctx, t.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrStateConflict
		}
		record := &models.CheckIn{
			ID:          uuid.NewString(),
			TicketID:    t.ID,
			StaffID:     req.StaffID,
			Method:      method,
			Device:      req.Device,
			IPAddress:   req.IPAddress,
			CheckedInAt: now,
		}
		if err := tx.CreateCheckIn(ctx, record); err != nil {
			return err
		}

		t.IsCheckedIn = true
		t.CheckedInAt = &now
		t.Status = models.TicketUsed
		t.UpdatedAt = now
		result = &Result{Ticket: t, CheckIn: record, CheckedInAt: now}
		return nil
	})
	return result, err
}

// resolve accepts a ticket number as is and opens anything else as a QR
// payload, which also pins the ticket id.
func (s *Service) resolve(code string, method models.CheckInMethod) (number, ticketID string, m models.CheckInMethod, err error) {
	if utils.IsTicketNumber(code) {
		if method == "" || method == models.CheckInQR {
			method = models.CheckInTicketNumber
		}
		return code, "", method, nil
	}
	if s.QR == nil {
		return "", "", "", apperr.ErrInvalidQR
	}
	payload, err := s.QR.Open(code)
	if err != nil {
		return "", "", "", err
	}
	return payload.TicketNumber, payload.TicketID, models.CheckInQR, nil
}

func ticketLabel(res *Result, code string) string {
	if res != nil && res.Ticket != nil {
		return res.Ticket.TicketNumber
	}
	if len(code) > 16 {
		return code[:16] + "..."
	}
	return code
}
