// Package stock maintains medication inventory: unit deduction on taken
// doses and a projected depletion date derived from trailing consumption.
package stock

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"medtrack-backend/internal/store"
)

const (
	// projectionWindow is the trailing period the consumption rate is
	// derived from.
	projectionWindow = 7 * 24 * time.Hour
	projectionDays   = 7.0
	// minDailyRate floors the rate so an empty window cannot divide by zero
	// or project depletion into the far future.
	minDailyRate = 0.1

	reasonTaken = "taken"
)

// Ledger deducts consumed units and keeps the depletion projection current.
type Ledger struct {
	store store.Store
}

// NewLedger creates a stock ledger backed by the given store.
func NewLedger(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Deduct removes amount units from the medication's stock, appends a
// consumption event, and recomputes the projected depletion date from the
// trailing seven days of taken doses. A medication without a tracked stock
// is a no-op. The projection is a deliberately naive trailing average,
// recomputed from raw counts on every deduction so it self-corrects when
// adherence changes.
func (l *Ledger) Deduct(ctx context.Context, medicationID int64, amount int, at time.Time) error {
	stk, err := l.store.DeductStock(ctx, medicationID, amount, at, reasonTaken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Stock tracking is optional per medication.
		return nil
	}
	if err != nil {
		return err
	}

	taken, err := l.store.CountTakenBetween(ctx, medicationID, at.Add(-projectionWindow), at)
	if err != nil {
		return err
	}

	projected := ProjectEnd(stk.UnitsLeft, taken, at)
	return l.store.SetProjectedEnd(ctx, stk.ID, &projected)
}

// ProjectEnd estimates when a stock runs out given the units left and the
// number of doses taken in the trailing window ending at `at`. An empty
// stock is depleted now, by definition.
func ProjectEnd(unitsLeft int, takenInWindow int64, at time.Time) time.Time {
	if unitsLeft <= 0 {
		return at
	}

	dailyRate := float64(takenInWindow) / projectionDays
	if dailyRate < minDailyRate {
		dailyRate = minDailyRate
	}

	daysRemaining := float64(unitsLeft) / dailyRate
	return at.Add(time.Duration(daysRemaining * 24 * float64(time.Hour)))
}
