// internal/domain/otp/dedup.go
package otp

import (
	"context"
	"time"
)

// DedupEntry is one previously notified (OTP, phone) pair.
// The JSON layout matches the duplicates file written by earlier deployments.
type DedupEntry struct {
	Key          string    `json:"key"`
	OTP          string    `json:"otp"`
	MobileNumber string    `json:"mobileNumber"`
	Timestamp    time.Time `json:"timestamp"`
}

// DedupKey builds the composite key for an (OTP, phone) pair.
// Both parts are digit strings, so the underscore never appears inside either of them.
func DedupKey(code, phone string) string {
	return code + "_" + phone
}

// NewDedupEntry builds the entry stored after a successful dispatch.
func NewDedupEntry(code, phone string, at time.Time) DedupEntry {
	return DedupEntry{
		Key:          DedupKey(code, phone),
		OTP:          code,
		MobileNumber: phone,
		Timestamp:    at,
	}
}

// Repository is the bounded log of notified pairs.
// Entries are kept in insertion order; recording beyond the configured maximum evicts the oldest.
type Repository interface {
	IsDuplicate(ctx context.Context, code, phone string) (bool, error)
	Record(ctx context.Context, code, phone string, at time.Time) error
	// ClearOldDuplicates removes entries strictly older than now-maxAge and returns how many were removed.
	ClearOldDuplicates(ctx context.Context, maxAge time.Duration) (int, error)
	Count(ctx context.Context) (int, error)
}

// TrimToMax keeps the newest max entries of an insertion-ordered slice.
func TrimToMax(entries []DedupEntry, max int) []DedupEntry {
	if max <= 0 || len(entries) <= max {
		return entries
	}
	return entries[len(entries)-max:]
}

// FilterNewerThan drops entries whose timestamp is strictly before cutoff, preserving order.
func FilterNewerThan(entries []DedupEntry, cutoff time.Time) (kept []DedupEntry, removed int) {
	kept = make([]DedupEntry, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}
