// Package notify turns due notification rows into delivered reminders
// across independent channels, recording a per-channel audit trail.
package notify

import (
	"context"

	"medtrack-backend/internal/model"
)

// Message is the content handed to every channel.
type Message struct {
	Title string
	Body  string
}

// Recipient bundles a user's channel preferences with their resolved
// email address.
type Recipient struct {
	UserID int64
	Prefs  *model.UserPreference
	Email  string
}

// Channel is one independent notification transport. Implementations must
// not share mutable state so a dispatch can attempt them in isolation.
type Channel interface {
	Name() string
	// Enabled reports whether the channel is both configured and turned on
	// for this recipient. Disabled channels are not attempted and produce
	// no channel result.
	Enabled(r Recipient) bool
	Send(ctx context.Context, msg Message, r Recipient) error
}
