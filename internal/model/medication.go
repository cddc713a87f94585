package model

import "time"

// Medication represents a medication item a user is taking.
type Medication struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"index;not null"`
	Name      string `gorm:"size:256;not null"`
	Dosage    string `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Doses []DoseInstance `gorm:"foreignKey:MedicationID"`
}
