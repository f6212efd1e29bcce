package browser

import (
	"context"
	"errors"
	"testing"

	"otp_forwarder_bot/internal/infra/logger"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strategyNames(strategies []LaunchStrategy) []string {
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name)
	}
	return names
}

func TestDefaultStrategiesOrder(t *testing.T) {
	installed := map[string]bool{"/usr/bin/chromium": true, "/usr/bin/google-chrome": true}
	opts := LaunchOptions{
		ChromePath:  "/usr/bin/chromium",
		Headless:    true,
		SystemPaths: []string{"/usr/bin/chromium", "/usr/bin/chromium-browser", "/usr/bin/google-chrome"},
		exists:      func(p string) bool { return installed[p] },
	}

	got := DefaultStrategies(opts)

	assert.Equal(t, []string{
		"explicit:/usr/bin/chromium",
		"system:/usr/bin/google-chrome",
		"default-minimal",
		"default-compat",
	}, strategyNames(got))
	assert.Greater(t, len(got[3].Options), len(got[2].Options), "compat adds flags on top of minimal")
}

func TestDefaultStrategiesWithoutBrowserInstalled(t *testing.T) {
	got := DefaultStrategies(LaunchOptions{
		SystemPaths: []string{"/nope"},
		exists:      func(string) bool { return false },
	})
	assert.Equal(t, []string{"default-minimal", "default-compat"}, strategyNames(got))
}

func TestLaunchFirstReturnsFirstSuccess(t *testing.T) {
	want := &Session{}
	var tried int
	launch := func(ctx context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error) {
		tried++
		if tried < 3 {
			return nil, errors.New("exec: not found")
		}
		return want, nil
	}
	strategies := []LaunchStrategy{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}

	got, err := LaunchFirst(context.Background(), launch, strategies, logger.Discard())

	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 3, tried)
}

func TestLaunchFirstAllFail(t *testing.T) {
	launchErr := errors.New("boom")
	launch := func(ctx context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error) {
		return nil, launchErr
	}

	_, err := LaunchFirst(context.Background(), launch, []LaunchStrategy{{Name: "a"}, {Name: "b"}}, logger.Discard())

	require.Error(t, err)
	assert.ErrorIs(t, err, launchErr)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Contains(t, err.Error(), "b: boom")

	_, err = LaunchFirst(context.Background(), launch, nil, logger.Discard())
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestLaunchFirstStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var tried int
	launch := func(ctx context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error) {
		tried++
		cancel()
		return nil, context.Canceled
	}

	_, err := LaunchFirst(ctx, launch, []LaunchStrategy{{Name: "a"}, {Name: "b"}}, logger.Discard())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tried)
}
