// Package payment wraps the external payment gateway and the
// payment-method settings.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChargeRequest struct {
	PaymentID     string
	InvoiceNumber string
	UserID        string
	Amount        decimal.Decimal
	Method        models.PaymentMethod
}

// Outcome is the synchronous answer of the gateway.
type Outcome struct {
	Success       bool
	TransactionID string
	Message       string
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Outcome, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req ChargeRequest) (Outcome, error)

func (f GatewayFunc) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	return f(ctx, req)
}

// SimulatedGateway approves charges after a fixed latency, declining a
// configurable share of them.
type SimulatedGateway struct {
	FailureRate float64
	Latency     time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulatedGateway(failureRate float64, latency time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		FailureRate: failureRate,
		Latency:     latency,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	select {
	case <-time.After(g.Latency):
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()

	if roll < g.FailureRate {
		return Outcome{Success: false, Message: "card declined"}, nil
	}
	return Outcome{Success: true, TransactionID: "sim_" + uuid.NewString()}, nil
}

// Client bounds every charge by Timeout and turns gateway trouble into
// external errors. A timeout is always a failure.
type Client struct {
	Gateway Gateway
	Timeout time.Duration
	// Observe, when set, receives the outcome label and call duration.
	Observe func(outcome string, d time.Duration)
	Logger  *logger.Logger
}

func (c *Client) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		o, err := c.Gateway.Charge(ctx, req)
		done <- result{o, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	elapsed := time.Since(start)

	switch {
	case errors.Is(res.err, context.DeadlineExceeded):
		c.observe("timeout", elapsed)
		c.Logger.Error("PAYMENT", fmt.Sprintf("gateway timed out after %s for payment %s", elapsed, req.PaymentID))
		return Outcome{}, apperr.External(apperr.CodeGatewayTimeout, "payment gateway timed out", true, res.err)
	case res.err != nil:
		c.observe("error", elapsed)
		c.Logger.Error("PAYMENT", fmt.Sprintf("gateway error for payment %s: %v", req.PaymentID, res.err))
		return Outcome{}, apperr.External(apperr.CodeGatewayUnavailable, "payment gateway unavailable", true, res.err)
	case !res.outcome.Success:
		c.observe("declined", elapsed)
		msg := res.outcome.Message
		if msg == "" {
			msg = "payment declined"
		}
		return res.outcome, apperr.External(apperr.CodePaymentDeclined, msg, false, nil)
	}

	c.observe("approved", elapsed)
	c.Logger.Info("PAYMENT", fmt.Sprintf("charged %s for payment %s (%s)", req.Amount.StringFixed(2), req.PaymentID, res.outcome.TransactionID))
	return res.outcome, nil
}

func (c *Client) observe(outcome string, d time.Duration) {
	if c.Observe != nil {
		c.Observe(outcome, d)
	}
}
