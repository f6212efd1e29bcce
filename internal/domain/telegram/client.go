package telegram

import "gopkg.in/telebot.v3"

// Client sends text messages to a Telegram chat.
// Chat IDs are negative for groups and channels, so callers must not assume a private chat.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
