package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"medtrack-backend/internal/model"
	"medtrack-backend/internal/store"
)

// ErrValidation is returned for malformed scheduling input.
var ErrValidation = errors.New("invalid notification request")

// Scheduler creates notification rows and sweeps the due ones through the
// dispatcher. Sweeps are invoked by an external trigger (the daemon's timer
// or the process endpoint); there is no long-running loop in here.
type Scheduler struct {
	store      store.Store
	dispatcher *Dispatcher
	staleClaim time.Duration
}

// NewScheduler creates a notification scheduler. staleClaim is how old an
// in-progress claim must be before a later sweep may take the row over
// (the claimer is assumed to have crashed).
func NewScheduler(s store.Store, d *Dispatcher, staleClaim time.Duration) *Scheduler {
	return &Scheduler{store: s, dispatcher: d, staleClaim: staleClaim}
}

// Schedule records a notification to be delivered at the given time and
// returns its id.
func (s *Scheduler) Schedule(ctx context.Context, userID int64, doseID *int64, typ, title, body string, at time.Time) (string, error) {
	if userID <= 0 || typ == "" || title == "" || at.IsZero() {
		return "", ErrValidation
	}

	n := &model.NotificationLog{
		ID:             uuid.NewString(),
		UserID:         userID,
		DoseID:         doseID,
		Type:           typ,
		Title:          title,
		Body:           body,
		ScheduledAt:    at,
		DeliveryStatus: model.DeliveryScheduled,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return "", err
	}
	return n.ID, nil
}

// SweepReport summarizes one sweep invocation.
type SweepReport struct {
	Processed int
	Succeeded int
	Failed    int
}

// Sweep processes one bounded batch of due notifications, oldest first.
// Each row is claimed before dispatch and its terminal result is persisted
// before the next row is considered. A row whose claim is lost to a
// concurrent sweep is skipped. Delivery is at-least-once overall: a crash
// between claim and terminal write leaves the row to be retaken once the
// claim goes stale.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time, batchLimit int) (SweepReport, error) {
	var report SweepReport

	rows, err := s.store.DueNotifications(ctx, now, batchLimit, s.staleClaim)
	if err != nil {
		return report, err
	}

	for i := range rows {
		row := &rows[i]

		claimed, err := s.store.ClaimNotification(ctx, row.ID, now, s.staleClaim)
		if err != nil {
			log.Printf("Error claiming notification %s: %v", row.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		outcome := s.deliver(ctx, row)

		status := model.DeliveryDelivered
		if !outcome.Success {
			status = model.DeliveryFailed
		}

		results := make([]model.ChannelResult, 0, len(outcome.Results))
		for _, res := range outcome.Results {
			results = append(results, model.ChannelResult{
				Channel: res.Channel,
				Success: res.Success,
				Error:   res.Error,
			})
		}

		if _, err := s.store.FinishNotification(ctx, row.ID, status, results, outcome.ErrorMessage); err != nil {
			log.Printf("Error finishing notification %s: %v", row.ID, err)
			continue
		}

		report.Processed++
		if outcome.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	return report, nil
}

// deliver resolves the recipient and fans the notification out.
func (s *Scheduler) deliver(ctx context.Context, row *model.NotificationLog) Outcome {
	prefs, err := s.store.PreferencesFor(ctx, row.UserID)
	if err != nil {
		return Outcome{ErrorMessage: "could not load preferences: " + err.Error()}
	}

	var email string
	user, err := s.store.UserByID(ctx, row.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error resolving user %d for notification %s: %v", row.UserID, row.ID, err)
		}
	} else {
		email = user.Email
	}

	r := Recipient{UserID: row.UserID, Prefs: prefs, Email: email}
	return s.dispatcher.Dispatch(ctx, Message{Title: row.Title, Body: row.Body}, r)
}
