// internal/app/monitor.go
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"otp_forwarder_bot/internal/domain/session"

	"github.com/sirupsen/logrus"
)

// MonitorConfig holds the loop timings.
type MonitorConfig struct {
	PollInterval         time.Duration // Between detector polls
	SessionCheckInterval time.Duration // 0 checks the session on every poll
	ErrorBackoff         time.Duration // Pause after a failed iteration
}

// Monitor is the single cooperative loop driving session checks, detector polls and dispatch.
type Monitor struct {
	sessions *SessionController
	detector *ChangeDetector
	page     session.Page
	otps     *OTPService
	cfg      MonitorConfig
	now      func() time.Time
	logger   *logrus.Entry

	running   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	lastCheck time.Time
}

func NewMonitor(
	sessions *SessionController,
	detector *ChangeDetector,
	page session.Page,
	otps *OTPService,
	cfg MonitorConfig,
	logger *logrus.Entry,
) *Monitor {
	return &Monitor{
		sessions: sessions,
		detector: detector,
		page:     page,
		otps:     otps,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx is cancelled. Iteration errors are logged
// and followed by the backoff pause; they never end the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)
	m.logger.Info("Starting SMS monitoring")

	for m.running.Load() {
		if ctx.Err() != nil {
			break
		}

		pause := m.cfg.PollInterval
		if err := m.Tick(ctx); err != nil {
			m.logger.WithError(err).Error("Error in periodic check")
			pause = m.cfg.ErrorBackoff
		}
		if !m.wait(ctx, pause) {
			break
		}
	}

	m.logger.Info("SMS monitoring stopped")
	return nil
}

// Stop asks the loop to exit after the current iteration.
func (m *Monitor) Stop() {
	m.running.Store(false)
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Tick runs one iteration: session check when due, then at most one detection.
func (m *Monitor) Tick(ctx context.Context) error {
	if m.sessionCheckDue() {
		if err := m.sessions.Ensure(ctx); err != nil {
			return err
		}
		m.lastCheck = m.now()
	}

	if !m.detector.Take() {
		return nil
	}
	m.logger.Debug("New row detected, processing")

	cells, err := m.page.TopRowCells(ctx)
	if err != nil {
		return fmt.Errorf("failed to read top row: %w", err)
	}
	m.otps.ProcessRow(ctx, cells)
	return nil
}

func (m *Monitor) sessionCheckDue() bool {
	if m.sessions.State() != session.StateAuthenticated {
		return true
	}
	return m.now().Sub(m.lastCheck) >= m.cfg.SessionCheckInterval
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.stopCh:
		return false
	case <-t.C:
		return true
	}
}
