package app

import (
	"context"
	"testing"
	"time"

	"otp_forwarder_bot/internal/domain/session"
	"otp_forwarder_bot/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monitorFixture struct {
	*sessionFixture
	repo    *memoryRepo
	monitor *Monitor
}

func newMonitorFixture(cfg MonitorConfig, loginErrs ...error) *monitorFixture {
	sf := newSessionFixture(0, loginErrs...)
	repo := &memoryRepo{}
	otps := NewOTPService(repo, sf.notifier, time.UTC, logger.Discard())
	return &monitorFixture{
		sessionFixture: sf,
		repo:           repo,
		monitor:        NewMonitor(sf.controller, sf.detector, sf.page, otps, cfg, logger.Discard()),
	}
}

func TestMonitorTickProcessesEachChangeOnce(t *testing.T) {
	f := newMonitorFixture(MonitorConfig{SessionCheckInterval: time.Hour})
	ctx := context.Background()

	require.NoError(t, f.monitor.Tick(ctx))
	assert.Equal(t, 0, f.page.Reads(), "nothing changed yet")

	f.page.Emit("<td>5521</td>", ivoryCoastRow("5521"))
	f.page.Emit("<td>5521</td>", ivoryCoastRow("5521"))
	require.NoError(t, f.monitor.Tick(ctx))
	require.NoError(t, f.monitor.Tick(ctx))

	assert.Equal(t, 1, f.page.Reads())
	assert.Len(t, f.notifier.Sent(), 1)

	f.page.Emit("<td>834921</td>", ivoryCoastRow("834921"))
	require.NoError(t, f.monitor.Tick(ctx))
	assert.Len(t, f.notifier.Sent(), 2)
	assert.Equal(t, []string{"5521_2250707210653", "834921_2250707210653"}, f.repo.Keys())
}

func TestMonitorSessionCheckIsIntervalGated(t *testing.T) {
	f := newMonitorFixture(MonitorConfig{SessionCheckInterval: 30 * time.Second})
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.monitor.now = func() time.Time { return now }

	require.NoError(t, f.monitor.Tick(ctx))
	require.NoError(t, f.monitor.Tick(ctx))
	assert.Equal(t, 0, f.auth.ValidCalls())

	now = now.Add(31 * time.Second)
	require.NoError(t, f.monitor.Tick(ctx))
	assert.Equal(t, 1, f.auth.ValidCalls())
}

func TestMonitorTickReportsLoginFailure(t *testing.T) {
	f := newMonitorFixture(MonitorConfig{}, errFake)

	err := f.monitor.Tick(context.Background())
	assert.ErrorIs(t, err, errFake)
	assert.Equal(t, session.StateExpired, f.controller.State())

	require.NoError(t, f.monitor.Tick(context.Background()), "next iteration retries the login")
	assert.Equal(t, session.StateAuthenticated, f.controller.State())
}

func TestMonitorTickReadError(t *testing.T) {
	f := newMonitorFixture(MonitorConfig{SessionCheckInterval: time.Hour})
	require.NoError(t, f.monitor.Tick(context.Background()))

	f.page.mu.Lock()
	f.page.cellErr = errFake
	f.page.mu.Unlock()
	f.page.Emit("<td>x</td>", nil)

	assert.ErrorIs(t, f.monitor.Tick(context.Background()), errFake)
	assert.Empty(t, f.notifier.Sent())
}

func TestMonitorRunUntilCancelled(t *testing.T) {
	f := newMonitorFixture(MonitorConfig{
		PollInterval:         5 * time.Millisecond,
		SessionCheckInterval: time.Hour,
		ErrorBackoff:         5 * time.Millisecond,
	}, errFake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.controller.State() == session.StateAuthenticated
	}, time.Second, 5*time.Millisecond, "loop keeps going after a failed login")

	f.page.Emit("<td>5521</td>", ivoryCoastRow("5521"))
	require.Eventually(t, func() bool { return len(f.notifier.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestMonitorStop(t *testing.T) {
	f := newMonitorFixture(MonitorConfig{PollInterval: time.Hour, SessionCheckInterval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(context.Background()) }()

	require.Eventually(t, func() bool { return f.auth.Logins() == 1 }, time.Second, 5*time.Millisecond)
	f.monitor.Stop()
	f.monitor.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
