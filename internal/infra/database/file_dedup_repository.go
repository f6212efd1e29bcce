package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"otp_forwarder_bot/internal/domain/otp"

	"github.com/sirupsen/logrus"
)

// FileDedupRepository keeps the dedup log as a JSON array in a single file.
// Every call rereads the file and every mutation rewrites it in full; a missing or
// unparsable file is an empty log. Access is serialized so the load-mutate-store
// cycle cannot lose a concurrent writer's update.
type FileDedupRepository struct {
	mu         sync.Mutex
	path       string
	maxEntries int
	now        func() time.Time
	logger     *logrus.Entry
}

func NewFileDedupRepository(path string, maxEntries int, logger *logrus.Entry) *FileDedupRepository {
	return &FileDedupRepository{
		path:       path,
		maxEntries: maxEntries,
		now:        time.Now,
		logger:     logger.WithField("dedup_file", path),
	}
}

func (r *FileDedupRepository) IsDuplicate(ctx context.Context, code, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := otp.DedupKey(code, phone)
	for _, e := range r.loadLocked() {
		if e.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *FileDedupRepository) Record(ctx context.Context, code, phone string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := append(r.loadLocked(), otp.NewDedupEntry(code, phone, at))
	entries = otp.TrimToMax(entries, r.maxEntries)
	if err := r.storeLocked(entries); err != nil {
		return err
	}
	r.logger.WithField("key", otp.DedupKey(code, phone)).Debug("Saved dedup entry")
	return nil
}

func (r *FileDedupRepository) ClearOldDuplicates(ctx context.Context, maxAge time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept, removed := otp.FilterNewerThan(r.loadLocked(), r.now().Add(-maxAge))
	if err := r.storeLocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *FileDedupRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loadLocked()), nil
}

// Load returns the stored entries, oldest first.
func (r *FileDedupRepository) Load(ctx context.Context) []otp.DedupEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

// Save replaces the stored entries.
func (r *FileDedupRepository) Save(ctx context.Context, entries []otp.DedupEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(entries)
}

func (r *FileDedupRepository) loadLocked() []otp.DedupEntry {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.WithError(err).Warn("Could not read dedup file, treating it as empty")
		}
		return []otp.DedupEntry{}
	}

	var entries []otp.DedupEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		r.logger.WithError(err).Warn("Dedup file is not valid JSON, treating it as empty")
		return []otp.DedupEntry{}
	}
	if entries == nil {
		entries = []otp.DedupEntry{}
	}
	return entries
}

// storeLocked writes through a temp file so a crash never leaves a truncated log behind.
func (r *FileDedupRepository) storeLocked(entries []otp.DedupEntry) error {
	if entries == nil {
		entries = []otp.DedupEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dedup entries: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dedup directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write dedup file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace dedup file: %w", err)
	}
	return nil
}
