package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"medtrack-backend/internal/model"
)

// DoseRepository provides access to dose instances.
type DoseRepository interface {
	DoseByID(ctx context.Context, doseID, userID int64) (*model.DoseInstance, error)
	// UpdateDoseIfScheduled applies updates to a dose only while it is still
	// in the scheduled state. The check and the write are a single statement,
	// so concurrent transitions cannot both succeed. Returns false when the
	// dose was not in the scheduled state.
	UpdateDoseIfScheduled(ctx context.Context, doseID int64, updates map[string]any) (bool, error)
	// RecentDoses returns doses due at or before the given time, most recent
	// first. Doses still in the future are not part of adherence history.
	RecentDoses(ctx context.Context, medicationID int64, before time.Time, limit int) ([]model.DoseInstance, error)
	CountTakenBetween(ctx context.Context, medicationID int64, from, to time.Time) (int64, error)
	// MarkMissedBefore flips every scheduled dose with dueAt at or before the
	// cutoff to missed. Returns the number of doses transitioned.
	MarkMissedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StockRepository provides access to stock records and their consumption
// history.
type StockRepository interface {
	StockForMedication(ctx context.Context, medicationID int64) (*model.Stock, error)
	// DeductStock atomically decrements unitsLeft (clamped at zero) and
	// appends one consumption event. Returns the stock row after the
	// deduction.
	DeductStock(ctx context.Context, medicationID int64, amount int, at time.Time, reason string) (*model.Stock, error)
	SetProjectedEnd(ctx context.Context, stockID int64, at *time.Time) error
}

// NotificationRepository provides access to the notification log.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.NotificationLog) error
	NotificationByID(ctx context.Context, id string) (*model.NotificationLog, error)
	// DueNotifications returns rows ready for dispatch, oldest first: every
	// scheduled row with scheduledAt at or before now, plus in-progress rows
	// whose claim is older than staleClaim (abandoned by a crashed sweep).
	DueNotifications(ctx context.Context, now time.Time, limit int, staleClaim time.Duration) ([]model.NotificationLog, error)
	// ClaimNotification moves a row to in_progress. Only one concurrent
	// claimer wins; the others get false.
	ClaimNotification(ctx context.Context, id string, now time.Time, staleClaim time.Duration) (bool, error)
	// FinishNotification writes the terminal status and channel results for
	// a claimed row. A row that is no longer in_progress is left untouched
	// and false is returned, so a given notification reaches a terminal
	// state exactly once.
	FinishNotification(ctx context.Context, id string, status string, results []model.ChannelResult, errMsg string) (bool, error)
	// RescheduleDoseNotifications moves every still-pending notification for
	// a dose to the new time. Called when a dose is snoozed.
	RescheduleDoseNotifications(ctx context.Context, doseID int64, newTime time.Time) (int64, error)
}

// UserDirectory resolves user identities. Account management is out of
// scope; only the lookup is needed here.
type UserDirectory interface {
	UserByID(ctx context.Context, id int64) (*model.User, error)
}

// MedicationCatalog resolves medication display names.
type MedicationCatalog interface {
	MedicationName(ctx context.Context, id int64) (string, error)
}

// PreferenceStore reads a user's channel delivery preferences. DisablePush
// is the one write: it clears an expired push subscription.
type PreferenceStore interface {
	PreferencesFor(ctx context.Context, userID int64) (*model.UserPreference, error)
	DisablePush(ctx context.Context, userID int64) error
}

// Store defines the interface for all database operations.
type Store interface {
	DoseRepository
	StockRepository
	NotificationRepository
	UserDirectory
	MedicationCatalog
	PreferenceStore
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DoseByID(ctx context.Context, doseID, userID int64) (*model.DoseInstance, error) {
	var dose model.DoseInstance
	// Ownership is part of the lookup: a dose belonging to another user is
	// indistinguishable from a missing one.
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", doseID, userID).
		First(&dose).Error
	if err != nil {
		return nil, err
	}
	return &dose, nil
}

func (s *gormStore) UpdateDoseIfScheduled(ctx context.Context, doseID int64, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.DoseInstance{}).
		Where("id = ? AND status = ?", doseID, model.DoseScheduled).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) RecentDoses(ctx context.Context, medicationID int64, before time.Time, limit int) ([]model.DoseInstance, error) {
	var doses []model.DoseInstance
	err := s.db.WithContext(ctx).
		Where("medication_id = ? AND due_at <= ?", medicationID, before).
		Order("due_at DESC").
		Limit(limit).
		Find(&doses).Error
	if err != nil {
		return nil, err
	}
	return doses, nil
}

func (s *gormStore) CountTakenBetween(ctx context.Context, medicationID int64, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.DoseInstance{}).
		Where("medication_id = ? AND status = ? AND due_at > ? AND due_at <= ?",
			medicationID, model.DoseTaken, from, to).
		Count(&count).Error
	return count, err
}

func (s *gormStore) MarkMissedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.DoseInstance{}).
		Where("status = ? AND due_at <= ?", model.DoseScheduled, cutoff).
		Update("status", model.DoseMissed)
	return res.RowsAffected, res.Error
}

func (s *gormStore) StockForMedication(ctx context.Context, medicationID int64) (*model.Stock, error) {
	var stock model.Stock
	err := s.db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		First(&stock).Error
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (s *gormStore) DeductStock(ctx context.Context, medicationID int64, amount int, at time.Time, reason string) (*model.Stock, error) {
	var stock model.Stock
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Clamp at zero inside the statement so concurrent deductions cannot
		// lose updates or drive the count negative.
		res := tx.Model(&model.Stock{}).
			Where("medication_id = ?", medicationID).
			Update("units_left", gorm.Expr(
				"CASE WHEN units_left >= ? THEN units_left - ? ELSE 0 END", amount, amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("medication_id = ?", medicationID).First(&stock).Error; err != nil {
			return err
		}

		event := model.ConsumptionEvent{
			StockID:    stock.ID,
			OccurredAt: at,
			Amount:     amount,
			Reason:     reason,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to append consumption event for stock %d: %w", stock.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func (s *gormStore) SetProjectedEnd(ctx context.Context, stockID int64, at *time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.Stock{}).
		Where("id = ?", stockID).
		Update("projected_end_at", at).Error
}

func (s *gormStore) CreateNotification(ctx context.Context, n *model.NotificationLog) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *gormStore) NotificationByID(ctx context.Context, id string) (*model.NotificationLog, error) {
	var n model.NotificationLog
	err := s.db.WithContext(ctx).
		Preload("ChannelResults", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		First(&n, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *gormStore) DueNotifications(ctx context.Context, now time.Time, limit int, staleClaim time.Duration) ([]model.NotificationLog, error) {
	var rows []model.NotificationLog
	staleCutoff := now.Add(-staleClaim)
	err := s.db.WithContext(ctx).
		Where("(delivery_status = ? AND scheduled_at <= ?) OR (delivery_status = ? AND claimed_at <= ?)",
			model.DeliveryScheduled, now, model.DeliveryInProgress, staleCutoff).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormStore) ClaimNotification(ctx context.Context, id string, now time.Time, staleClaim time.Duration) (bool, error) {
	staleCutoff := now.Add(-staleClaim)
	res := s.db.WithContext(ctx).
		Model(&model.NotificationLog{}).
		Where("id = ? AND (delivery_status = ? OR (delivery_status = ? AND claimed_at <= ?))",
			id, model.DeliveryScheduled, model.DeliveryInProgress, staleCutoff).
		Updates(map[string]any{
			"delivery_status": model.DeliveryInProgress,
			"claimed_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) FinishNotification(ctx context.Context, id string, status string, results []model.ChannelResult, errMsg string) (bool, error) {
	var finished bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.NotificationLog{}).
			Where("id = ? AND delivery_status = ?", id, model.DeliveryInProgress).
			Updates(map[string]any{
				"delivery_status": status,
				"error_message":   errMsg,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already finished by another sweep; keep the first outcome.
			return nil
		}
		finished = true

		for i := range results {
			results[i].NotificationID = id
			results[i].Seq = i
		}
		if len(results) > 0 {
			if err := tx.Create(&results).Error; err != nil {
				return fmt.Errorf("failed to record channel results for notification %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return finished, nil
}

func (s *gormStore) RescheduleDoseNotifications(ctx context.Context, doseID int64, newTime time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.NotificationLog{}).
		Where("dose_id = ? AND delivery_status = ?", doseID, model.DeliveryScheduled).
		Update("scheduled_at", newTime)
	return res.RowsAffected, res.Error
}

func (s *gormStore) UserByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) MedicationName(ctx context.Context, id int64) (string, error) {
	var med model.Medication
	err := s.db.WithContext(ctx).
		Select("name").
		First(&med, id).Error
	if err != nil {
		return "", err
	}
	return med.Name, nil
}

func (s *gormStore) PreferencesFor(ctx context.Context, userID int64) (*model.UserPreference, error) {
	var prefs model.UserPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No explicit row yet; fall back to the defaults (email on, rest off).
		return &model.UserPreference{UserID: userID, EmailEnabled: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (s *gormStore) DisablePush(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).
		Model(&model.UserPreference{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"push_enabled":  false,
			"push_endpoint": "",
		}).Error
}
