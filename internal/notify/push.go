package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"medtrack-backend/internal/store"
)

// PushSender abstracts the webpush library call so tests can fake it.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// webPushSender is the real implementation backed by the webpush library.
type webPushSender struct{}

func (webPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushChannel delivers reminders as web push notifications.
type PushChannel struct {
	options *webpush.Options
	sender  PushSender
	prefs   store.PreferenceStore
}

// NewPushChannel creates a push channel. prefs is used to disable a
// subscription the push service reports as gone.
func NewPushChannel(options *webpush.Options, prefs store.PreferenceStore) *PushChannel {
	return &PushChannel{
		options: options,
		sender:  webPushSender{},
		prefs:   prefs,
	}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Enabled(r Recipient) bool {
	if c.options == nil || c.options.VAPIDPublicKey == "" || c.options.VAPIDPrivateKey == "" {
		return false
	}
	return r.Prefs.PushEnabled && r.Prefs.PushEndpoint != ""
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *PushChannel) Send(ctx context.Context, msg Message, r Recipient) error {
	payload, err := json.Marshal(pushPayload{Title: msg.Title, Body: msg.Body})
	if err != nil {
		return err
	}

	sub := &webpush.Subscription{
		Endpoint: r.Prefs.PushEndpoint,
		Keys: webpush.Keys{
			P256dh: r.Prefs.PushP256DH,
			Auth:   r.Prefs.PushAuth,
		},
	}

	resp, err := c.sender.Send(payload, sub, c.options)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The push service telling us the subscription no longer exists means
	// the token is expired or invalid; stop trying it.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		if err := c.prefs.DisablePush(ctx, r.UserID); err != nil {
			log.Printf("Failed to disable expired push subscription for user %d: %v", r.UserID, err)
		}
		return fmt.Errorf("push subscription expired (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
	return nil
}
