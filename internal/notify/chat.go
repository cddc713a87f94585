package notify

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// ChatSender abstracts the bot send call so tests can fake it.
type ChatSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ChatChannel delivers reminders through a chat gateway (a Telegram bot).
// The recipient's chat address is the numeric chat ID the user linked from
// the surrounding product.
type ChatChannel struct {
	bot ChatSender
}

// NewChatChannel creates a chat channel from a bot token.
func NewChatChannel(token string) (*ChatChannel, error) {
	if token == "" {
		return &ChatChannel{}, nil
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat bot: %w", err)
	}
	return &ChatChannel{bot: b}, nil
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Enabled(r Recipient) bool {
	return c.bot != nil && r.Prefs.ChatEnabled && r.Prefs.ChatAddress != ""
}

func (c *ChatChannel) Send(_ context.Context, msg Message, r Recipient) error {
	chatID, err := strconv.ParseInt(r.Prefs.ChatAddress, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat destination %q", r.Prefs.ChatAddress)
	}

	text := msg.Title
	if msg.Body != "" {
		text += "\n" + msg.Body
	}
	_, err = c.bot.Send(tele.ChatID(chatID), text)
	return err
}
