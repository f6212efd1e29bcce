// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"otp_forwarder_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers /start, /help, /status and /purge.
// Only the configured admin gets answers beyond a short refusal.
func RegisterBotCommands(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle("/start", func(c telebot.Context) error {
		logCtx := commandLogger(baseLogger, "/start", c)
		logCtx.Info("Processing /start command")
		if !adminService.IsAdmin(senderID(c)) {
			return c.Send("This bot forwards OTP notifications to its configured chat only.")
		}
		return c.Send("Hello! OTP monitoring is running. Use /help for the list of commands.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := commandLogger(baseLogger, "/help", c)
		logCtx.Info("Processing /help command")
		if !adminService.IsAdmin(senderID(c)) {
			return c.Send("No commands are available for you.")
		}
		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("/status - session state and delivery counters\n")
		helpText.WriteString("/purge - remove dedup entries older than the retention window\n")
		helpText.WriteString("/help - show this message")
		return c.Send(helpText.String())
	})

	b.Handle("/status", func(c telebot.Context) error {
		logCtx := commandLogger(baseLogger, "/status", c)
		logCtx.Info("Command received")

		status, err := adminService.Status(ctx, senderID(c))
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Error: you are not allowed to run this command.")
			}
			logCtx.WithError(err).Error("Failed to collect status")
			return c.Send(fmt.Sprintf("Could not collect status: %s", err.Error()))
		}
		return c.Send(FormatStatus(status), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})

	b.Handle("/purge", func(c telebot.Context) error {
		logCtx := commandLogger(baseLogger, "/purge", c)
		logCtx.Info("Command received")

		removed, err := adminService.Purge(ctx, senderID(c))
		if err != nil {
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Error: you are not allowed to run this command.")
			}
			logCtx.WithError(err).Error("Failed to purge dedup entries")
			return c.Send(fmt.Sprintf("Purge failed: %s", err.Error()))
		}
		return c.Send(fmt.Sprintf("Removed %d old dedup entries.", removed))
	})
}

// FormatStatus renders the /status reply in Telegram HTML.
func FormatStatus(s *app.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Session:</b> %s\n", s.State)
	if s.ConsecutiveFailures > 0 {
		fmt.Fprintf(&b, "<b>Login failures in a row:</b> %d\n", s.ConsecutiveFailures)
	}
	fmt.Fprintf(&b, "<b>Stored dedup entries:</b> %d\n", s.StoredEntries)
	fmt.Fprintf(&b, "<b>Row mutations observed:</b> %d\n", s.Observed)

	outcomes := make([]string, 0, len(s.Pipeline.Outcomes))
	for o := range s.Pipeline.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(&b, "• %s: %d\n", o, s.Pipeline.Outcomes[app.Outcome(o)])
	}

	if s.Pipeline.LastDispatchAt.IsZero() {
		b.WriteString("<b>Last dispatch:</b> never")
	} else {
		fmt.Fprintf(&b, "<b>Last dispatch:</b> %s", s.Pipeline.LastDispatchAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func commandLogger(base *logrus.Entry, command string, c telebot.Context) *logrus.Entry {
	fields := logrus.Fields{"command": command}
	if c.Sender() != nil {
		fields["sender_id"] = c.Sender().ID
	}
	return base.WithFields(fields)
}

// senderID is 0 for channel posts, which never match the admin.
func senderID(c telebot.Context) int64 {
	if c.Sender() == nil {
		return 0
	}
	return c.Sender().ID
}
