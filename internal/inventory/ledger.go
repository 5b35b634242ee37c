// Package inventory owns the per-ticket-type capacity counters.
package inventory

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/store"
)

type Ledger struct {
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewLedger(c clock.Clock, l *logger.Logger) *Ledger {
	return &Ledger{Clock: c, Logger: l}
}

// Reserve takes quantity units of tt inside the caller's transaction.
// tt must have been loaded through the same tx.
func (l *Ledger) Reserve(ctx context.Context, tx *store.DB, tt *models.TicketType, quantity int) error {
	if quantity < 1 {
		return apperr.ErrInvalidQuantity
	}
	if !tt.IsActive {
		return apperr.ErrTicketTypeInactive
	}
	now := l.Clock.Now()
	if !tt.OnSale(now) {
		return apperr.ErrSaleWindowClosed
	}

	ok, err := tx.DecrementAvailable(ctx, tt.ID, quantity, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.BusinessRule(apperr.CodeInsufficientInventory,
			fmt.Sprintf("requested %d tickets of %q but not enough remain", quantity, tt.Name))
	}

	tt.AvailableQuantity -= quantity
	l.Logger.LogDatabase("RESERVE", "ticket_types", fmt.Sprintf("%s -%d", tt.ID, quantity))
	return nil
}

// Release returns quantity units; availability never exceeds the total.
func (l *Ledger) Release(ctx context.Context, tx *store.DB, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	ok, err := tx.IncrementAvailable(ctx, ticketTypeID, quantity, l.Clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrTicketTypeNotFound
	}
	l.Logger.LogDatabase("RELEASE", "ticket_types", fmt.Sprintf("%s +%d", ticketTypeID, quantity))
	return nil
}

// AdjustCapacity changes the total of a ticket type on behalf of an
// organizer. The new total must cover the units already sold.
func (l *Ledger) AdjustCapacity(ctx context.Context, db *store.DB, ticketTypeID string, quantity int) (*models.TicketType, error) {
	if quantity < 0 {
		return nil, apperr.Validation(apperr.CodeInvalidQuantity, "capacity cannot be negative")
	}

	var updated *models.TicketType
	err := db.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		tt, err := tx.GetTicketType(ctx, ticketTypeID)
		if err != nil {
			return err
		}
		if quantity < tt.Sold() {
			return apperr.BusinessRule(apperr.CodeCapacityBelowSold,
				fmt.Sprintf("%d tickets already sold, capacity cannot drop to %d", tt.Sold(), quantity))
		}
		ok, err := tx.UpdateCapacity(ctx, ticketTypeID, quantity, l.Clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			// sold count moved between the read and the write
			return apperr.ErrStateConflict
		}
		updated, err = tx.GetTicketType(ctx, ticketTypeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("INVENTORY", fmt.Sprintf("capacity of %s set to %d (%d available)", ticketTypeID, updated.Quantity, updated.AvailableQuantity))
	return updated, nil
}
