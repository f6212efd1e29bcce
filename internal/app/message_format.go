// internal/app/message_format.go
package app

import (
	"fmt"
	"strings"
	"time"

	"otp_forwarder_bot/internal/domain/otp"
)

// TimestampLayout renders notification times as DD/MM/YYYY, HH:mm:ss.
const TimestampLayout = "02/01/2006, 15:04:05"

// Telegram HTML parse mode only needs these three escaped in text nodes.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func formatTime(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Format(TimestampLayout)
}

// FormatOTPMessage renders the notification for a newly seen passcode.
func FormatOTPMessage(rec *otp.Record, at time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📌 <b>NEW OTP RECEIVED</b> 🟢\n\n")
	fmt.Fprintf(&b, "⏰ <b>Time:</b> %s\n\n", formatTime(at, loc))
	fmt.Fprintf(&b, "📞 <b>Number:</b> <code>%s</code>\n\n", escapeHTML(rec.PhoneNumber))
	fmt.Fprintf(&b, "🌍 <b>Region:</b> %s\n\n", escapeHTML(rec.RegionLabel))
	if rec.ServiceID != "" {
		fmt.Fprintf(&b, "🔧 <b>Service:</b> %s\n\n", escapeHTML(rec.ServiceID))
	}
	fmt.Fprintf(&b, "🔑 <b>OTP Code:</b> <code>%s</code>\n\n", escapeHTML(rec.OTP))
	fmt.Fprintf(&b, "📱 <b>Message:</b> %s", escapeHTML(rec.MessageText))
	return b.String()
}

// FormatStartupMessage announces that monitoring has started.
func FormatStartupMessage(service, portalURL string, at time.Time, loc *time.Location) string {
	return fmt.Sprintf("🤖 <b>%s started</b> 🟢\n✅ Monitoring %s\n⏰ Start Time: %s\n🔍 Waiting for new OTP messages...",
		escapeHTML(service), escapeHTML(portalURL), formatTime(at, loc))
}

// FormatAuthAlert reports that the portal session could not be re-established.
func FormatAuthAlert(failures int, cause error, at time.Time, loc *time.Location) string {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	return fmt.Sprintf("⚠️ <b>Portal login failing</b> 🔴\n⏰ %s\n🔁 Consecutive failures: %d\n❌ %s\nMonitoring keeps retrying.",
		formatTime(at, loc), failures, escapeHTML(reason))
}
