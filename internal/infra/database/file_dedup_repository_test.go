package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"otp_forwarder_bot/internal/domain/otp"
	"otp_forwarder_bot/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileRepo(t *testing.T, maxEntries int) *FileDedupRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "otp_duplicates.json")
	return NewFileDedupRepository(path, maxEntries, logger.Discard())
}

func TestFileDedupRepositoryRecordThenDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestFileRepo(t, 1000)

	dup, err := repo.IsDuplicate(ctx, "5521", "2250707210653")
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, repo.Record(ctx, "5521", "2250707210653", time.Now()))

	dup, err = repo.IsDuplicate(ctx, "5521", "2250707210653")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = repo.IsDuplicate(ctx, "5521", "2250707210654")
	require.NoError(t, err)
	assert.False(t, dup, "same code to another number is not a duplicate")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFileDedupRepositoryEvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo := newTestFileRepo(t, 1000)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := make([]otp.DedupEntry, 0, 1000)
	for i := 0; i < 1000; i++ {
		seed = append(seed, otp.NewDedupEntry(fmt.Sprintf("%06d", i), "100", base.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, repo.Save(ctx, seed))

	for i := 1000; i < 1005; i++ {
		require.NoError(t, repo.Record(ctx, fmt.Sprintf("%06d", i), "100", base.Add(time.Duration(i)*time.Second)))
	}

	entries := repo.Load(ctx)
	require.Len(t, entries, 1000)
	assert.Equal(t, "000005", entries[0].OTP)
	assert.Equal(t, "001004", entries[len(entries)-1].OTP)

	dup, err := repo.IsDuplicate(ctx, "000004", "100")
	require.NoError(t, err)
	assert.False(t, dup, "evicted entries are forgotten")
}

func TestFileDedupRepositoryClearOldDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestFileRepo(t, 1000)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Save(ctx, []otp.DedupEntry{
		otp.NewDedupEntry("1111", "1", now.Add(-time.Hour)),
		otp.NewDedupEntry("2222", "1", now.Add(-25*time.Hour)),
		otp.NewDedupEntry("3333", "1", now.Add(-24*time.Hour)),
		otp.NewDedupEntry("4444", "1", now.Add(-72*time.Hour)),
		otp.NewDedupEntry("5555", "1", now.Add(-2*time.Hour)),
	}))

	removed, err := repo.ClearOldDuplicates(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var codes []string
	for _, e := range repo.Load(ctx) {
		codes = append(codes, e.OTP)
	}
	assert.Equal(t, []string{"1111", "3333", "5555"}, codes)

	removed, err = repo.ClearOldDuplicates(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFileDedupRepositorySaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestFileRepo(t, 1000)
	at := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

	in := []otp.DedupEntry{
		otp.NewDedupEntry("9999", "2", at.Add(time.Minute)),
		otp.NewDedupEntry("1234", "1", at),
	}
	require.NoError(t, repo.Save(ctx, in))

	out := repo.Load(ctx)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].Key, out[i].Key)
		assert.Equal(t, in[i].OTP, out[i].OTP)
		assert.Equal(t, in[i].MobileNumber, out[i].MobileNumber)
		assert.True(t, in[i].Timestamp.Equal(out[i].Timestamp))
	}
}

func TestFileDedupRepositoryMissingOrCorruptFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newTestFileRepo(t, 1000)

	assert.Empty(t, repo.Load(ctx))

	require.NoError(t, os.MkdirAll(filepath.Dir(repo.path), 0o755))
	require.NoError(t, os.WriteFile(repo.path, []byte("{not json"), 0o600))
	assert.Empty(t, repo.Load(ctx))

	dup, err := repo.IsDuplicate(ctx, "1234", "1")
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, repo.Record(ctx, "1234", "1", time.Now()))
	assert.Len(t, repo.Load(ctx), 1)
}

func TestFileDedupRepositoryReadsExistingFileLayout(t *testing.T) {
	ctx := context.Background()
	repo := newTestFileRepo(t, 1000)
	existing := `[
  {"key": "834921_2250707210653", "otp": "834921", "mobileNumber": "2250707210653", "timestamp": "2025-01-02T03:04:05.678Z"}
]`
	require.NoError(t, os.MkdirAll(filepath.Dir(repo.path), 0o755))
	require.NoError(t, os.WriteFile(repo.path, []byte(existing), 0o600))

	dup, err := repo.IsDuplicate(ctx, "834921", "2250707210653")
	require.NoError(t, err)
	assert.True(t, dup)

	require.NoError(t, repo.Record(ctx, "5521", "2250707210653", time.Now()))

	raw, err := os.ReadFile(repo.path)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "2250707210653", decoded[1]["mobileNumber"])
	assert.Equal(t, "5521_2250707210653", decoded[1]["key"])
	assert.Contains(t, decoded[1], "timestamp")
}
