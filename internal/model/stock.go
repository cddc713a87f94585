package model

import "time"

// Stock tracks the remaining countable quantity of a medication.
// UnitsLeft never goes below zero and is mutated exclusively through the
// stock ledger.
type Stock struct {
	ID             int64 `gorm:"primaryKey"`
	MedicationID   int64 `gorm:"uniqueIndex;not null"`
	UnitsLeft      int   `gorm:"not null"`
	UnitsTotal     int   `gorm:"not null"`
	ProjectedEndAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Associations
	Medication Medication         `gorm:"constraint:OnDelete:CASCADE"`
	History    []ConsumptionEvent `gorm:"foreignKey:StockID"`
}

// ConsumptionEvent is one entry in a stock's ordered consumption history.
type ConsumptionEvent struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	StockID    int64     `gorm:"index;not null"`
	OccurredAt time.Time `gorm:"index;not null"`
	Amount     int       `gorm:"not null"`
	Reason     string    `gorm:"size:32;not null"`
}
