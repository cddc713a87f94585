package model

import "time"

// User carries the identity fields the core needs: an email address for the
// email channel and a display name. Account management lives elsewhere.
type User struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"size:256"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPreference holds a user's per-channel delivery settings. Rows are
// maintained by the surrounding product; the core only reads them, except
// for disabling an expired push subscription.
type UserPreference struct {
	UserID       int64 `gorm:"primaryKey"`
	PushEnabled  bool  `gorm:"not null;default:false"`
	PushEndpoint string `gorm:"size:512"`
	PushP256DH   string `gorm:"column:push_p256dh;size:256"`
	PushAuth     string `gorm:"size:256"`
	EmailEnabled bool   `gorm:"not null;default:true"`
	ChatEnabled  bool   `gorm:"not null;default:false"`
	ChatAddress  string `gorm:"size:128"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
