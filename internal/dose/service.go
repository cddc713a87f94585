// Package dose implements the dose lifecycle state machine: a scheduled
// dose can be taken, skipped, snoozed, or — via the overdue sweep — marked
// missed. Taken and skipped are terminal.
package dose

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"medtrack-backend/internal/model"
	"medtrack-backend/internal/store"
)

var (
	// ErrNotFound covers both a missing dose and a dose owned by another
	// user, so callers cannot probe for the existence of foreign data.
	ErrNotFound = errors.New("dose not found")
	// ErrConflict is returned when an action is applied to a dose that has
	// already left the scheduled state.
	ErrConflict = errors.New("dose already actioned")
	// ErrValidation is returned for malformed input, before any mutation.
	ErrValidation = errors.New("invalid request")
)

// streakWindow bounds how much history the streak calculation reads.
const streakWindow = 30

// Ledger deducts consumed units from a medication's stock.
type Ledger interface {
	Deduct(ctx context.Context, medicationID int64, amount int, at time.Time) error
}

// Service applies lifecycle actions to dose instances.
type Service struct {
	store       store.Store
	ledger      Ledger
	missedGrace time.Duration
}

// NewService creates a dose service. missedGrace is how long past its due
// time a scheduled dose may linger before the sweep marks it missed.
func NewService(s store.Store, ledger Ledger, missedGrace time.Duration) *Service {
	return &Service{store: s, ledger: ledger, missedGrace: missedGrace}
}

// TakeResult is returned to the caller after a successful MarkTaken.
type TakeResult struct {
	Streak         int
	MedicationName string
}

// MarkTaken transitions a scheduled dose to taken. actorTimestamp, when
// non-nil, records when the user actually took the dose; otherwise the
// current time is used. The stock deduction is best-effort: a failure there
// is logged and does not revert the already-committed dose transition.
func (s *Service) MarkTaken(ctx context.Context, userID, doseID int64, actorTimestamp *time.Time) (*TakeResult, error) {
	dose, err := s.store.DoseByID(ctx, doseID, userID)
	if err != nil {
		return nil, mapLookupErr(err)
	}

	takenAt := time.Now().UTC()
	if actorTimestamp != nil {
		takenAt = actorTimestamp.UTC()
	}
	// Minutes late; negative means the dose was taken early.
	delay := int(math.Round(takenAt.Sub(dose.DueAt).Minutes()))

	ok, err := s.store.UpdateDoseIfScheduled(ctx, doseID, map[string]any{
		"status":        model.DoseTaken,
		"taken_at":      takenAt,
		"delay_minutes": delay,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if err := s.ledger.Deduct(ctx, dose.MedicationID, 1, takenAt); err != nil {
		log.Printf("Warning: stock deduction failed for medication %d after dose %d was taken: %v",
			dose.MedicationID, doseID, err)
	}

	// A dose taken early still counts toward the streak, so the history
	// window must reach its due time.
	asOf := takenAt
	if dose.DueAt.After(asOf) {
		asOf = dose.DueAt
	}
	streak, err := s.Streak(ctx, dose.MedicationID, asOf)
	if err != nil {
		log.Printf("Warning: streak recompute failed for medication %d: %v", dose.MedicationID, err)
		streak = 0
	}

	name, err := s.store.MedicationName(ctx, dose.MedicationID)
	if err != nil {
		log.Printf("Warning: could not resolve medication %d name: %v", dose.MedicationID, err)
	}

	return &TakeResult{Streak: streak, MedicationName: name}, nil
}

// SkipResult is returned to the caller after a successful Skip.
type SkipResult struct {
	MedicationName string
}

// Skip transitions a scheduled dose to skipped with the given reason.
func (s *Service) Skip(ctx context.Context, userID, doseID int64, reason string) (*SkipResult, error) {
	if reason == "" {
		return nil, ErrValidation
	}

	dose, err := s.store.DoseByID(ctx, doseID, userID)
	if err != nil {
		return nil, mapLookupErr(err)
	}

	ok, err := s.store.UpdateDoseIfScheduled(ctx, doseID, map[string]any{
		"status":      model.DoseSkipped,
		"skip_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	name, err := s.store.MedicationName(ctx, dose.MedicationID)
	if err != nil {
		log.Printf("Warning: could not resolve medication %d name: %v", dose.MedicationID, err)
	}
	return &SkipResult{MedicationName: name}, nil
}

// Snooze shifts a scheduled dose's due time by the given number of minutes
// and moves any still-pending reminder for it along. The dose stays in the
// scheduled state.
func (s *Service) Snooze(ctx context.Context, userID, doseID int64, minutes int) (time.Time, error) {
	if minutes == 0 {
		return time.Time{}, ErrValidation
	}

	dose, err := s.store.DoseByID(ctx, doseID, userID)
	if err != nil {
		return time.Time{}, mapLookupErr(err)
	}

	newDueAt := dose.DueAt.Add(time.Duration(minutes) * time.Minute)
	ok, err := s.store.UpdateDoseIfScheduled(ctx, doseID, map[string]any{
		"due_at": newDueAt,
	})
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrConflict
	}

	moved, err := s.store.RescheduleDoseNotifications(ctx, doseID, newDueAt)
	if err != nil {
		log.Printf("Warning: could not reschedule reminders for dose %d: %v", doseID, err)
	} else if moved > 0 {
		log.Printf("Rescheduled %d pending reminder(s) for dose %d to %s", moved, doseID, newDueAt)
	}

	return newDueAt, nil
}

// SweepMissed marks every scheduled dose whose due time plus the grace
// window has passed as missed. Invoked periodically by the daemon.
func (s *Service) SweepMissed(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.missedGrace)
	missed, err := s.store.MarkMissedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if missed > 0 {
		log.Printf("Missed-dose sweep: %d dose(s) transitioned to missed", missed)
	}
	return missed, nil
}

func mapLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
