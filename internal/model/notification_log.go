package model

import "time"

// Notification delivery statuses. A row is claimed (scheduled → in_progress)
// before dispatch and transitions to exactly one terminal status.
const (
	DeliveryScheduled  = "scheduled"
	DeliveryInProgress = "in_progress"
	DeliveryDelivered  = "delivered"
	DeliveryFailed     = "failed"
)

// NotificationLog is one scheduled reminder and the audit trail of its
// delivery.
type NotificationLog struct {
	ID             string    `gorm:"primaryKey;size:36"`
	UserID         int64     `gorm:"index;not null"`
	DoseID         *int64    `gorm:"index"`
	Type           string    `gorm:"size:32;not null"`
	Title          string    `gorm:"size:256;not null"`
	Body           string    `gorm:"size:1024"`
	ScheduledAt    time.Time `gorm:"index;not null"`
	DeliveryStatus string    `gorm:"size:16;not null;default:scheduled;index"`
	ClaimedAt      *time.Time
	ErrorMessage   string `gorm:"size:2048"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Associations
	ChannelResults []ChannelResult `gorm:"foreignKey:NotificationID"`
}

// ChannelResult records the outcome of one delivery channel attempt for a
// notification, ordered by Seq.
type ChannelResult struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	NotificationID string `gorm:"size:36;index;not null"`
	Seq            int    `gorm:"not null"`
	Channel        string `gorm:"size:32;not null"`
	Success        bool   `gorm:"not null"`
	Error          string `gorm:"size:1024"`
}
