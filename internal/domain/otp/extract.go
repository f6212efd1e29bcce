// internal/domain/otp/extract.go
package otp

import (
	"errors"
	"regexp"
	"strings"
)

// MinRowCells is the number of cells a data row must have before it is considered readable.
const MinRowCells = 5

const (
	cellNumber  = 0
	cellService = 1
	cellMessage = 4
)

// ErrRowIncomplete is returned when the row has fewer than MinRowCells cells,
// which usually means the table is still rendering.
var ErrRowIncomplete = errors.New("row has too few cells")

type otpPattern struct {
	re *regexp.Regexp
	// group is the capture group holding the code; 0 means the whole match.
	group int
}

// Tried in order; the first pattern producing a match wins.
var otpPatterns = []otpPattern{
	{re: regexp.MustCompile(`\b\d{4,8}\b`)},
	{re: regexp.MustCompile(`\d{4,8}`)},
	{re: regexp.MustCompile(`(?i)(?:code|otp|pin):\s*(\d{4,8})`), group: 1},
	{re: regexp.MustCompile(`(?i)(\d{4,8})\s*is\s*your`), group: 1},
}

// Extract converts the cell texts of a table row into a Record.
// A Record without an OTP is still returned so the caller can tell
// "no code in message" apart from "row unreadable".
func Extract(cells []string) (*Record, error) {
	if len(cells) < MinRowCells {
		return nil, ErrRowIncomplete
	}

	rec := &Record{
		ServiceID:   strings.TrimSpace(cells[cellService]),
		MessageText: strings.TrimSpace(cells[cellMessage]),
	}

	lines := nonEmptyLines(cells[cellNumber])
	if len(lines) > 0 {
		rec.RegionLabel = lines[0]
	}
	if len(lines) > 1 {
		rec.PhoneNumber = lines[1]
	}

	rec.OTP = ExtractOTP(rec.MessageText)
	return rec, nil
}

// ExtractOTP returns the passcode found in message, or "" if none of the patterns match.
// When a pattern matches several times the longest match is used, the earliest on ties.
func ExtractOTP(message string) string {
	for _, p := range otpPatterns {
		matches := p.re.FindAllStringSubmatch(message, -1)
		best := ""
		for _, m := range matches {
			if len(m) <= p.group {
				continue
			}
			if candidate := m[p.group]; len(candidate) > len(best) {
				best = candidate
			}
		}
		if len(best) >= 4 {
			return best
		}
	}
	return ""
}

func nonEmptyLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
