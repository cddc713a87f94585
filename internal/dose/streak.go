package dose

import (
	"context"
	"time"

	"medtrack-backend/internal/model"
)

// Streak counts consecutive taken doses for a medication, newest first,
// over doses due at or before the given time. The count stops at the first
// dose that was not taken. Pure read; used only for reporting.
func (s *Service) Streak(ctx context.Context, medicationID int64, before time.Time) (int, error) {
	doses, err := s.store.RecentDoses(ctx, medicationID, before, streakWindow)
	if err != nil {
		return 0, err
	}

	streak := 0
	for _, d := range doses {
		if d.Status != model.DoseTaken {
			break
		}
		streak++
	}
	return streak, nil
}
