package model

import "time"

// Dose status values. Taken and skipped are terminal; missed is set only by
// the overdue sweep, never by a direct caller action.
const (
	DoseScheduled = "scheduled"
	DoseTaken     = "taken"
	DoseSkipped   = "skipped"
	DoseMissed    = "missed"
)

// DoseInstance is one scheduled administration event for a medication at a
// specific due time.
type DoseInstance struct {
	ID           int64     `gorm:"primaryKey"`
	MedicationID int64     `gorm:"index;not null"`
	UserID       int64     `gorm:"index;not null"`
	DueAt        time.Time `gorm:"index;not null"`
	Status       string    `gorm:"size:16;not null;default:scheduled;index"`
	TakenAt      *time.Time
	DelayMinutes *int
	SkipReason   string `gorm:"size:256"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Medication Medication `gorm:"constraint:OnDelete:CASCADE"`
}

// Terminal reports whether the dose is in a state that must never mutate
// again.
func (d *DoseInstance) Terminal() bool {
	return d.Status == DoseTaken || d.Status == DoseSkipped
}
