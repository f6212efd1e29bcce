// internal/app/session_controller.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"otp_forwarder_bot/internal/domain/session"

	"github.com/sirupsen/logrus"
)

// SessionController owns the authenticated page. When the portal session is found
// invalid it logs in again, reopens the monitored page and re-arms the change detector,
// so the poll loop never sees a page without an observer.
type SessionController struct {
	auth     session.Authenticator
	page     session.Page
	detector *ChangeDetector
	notifier Notifier

	alertThreshold int
	loc            *time.Location
	now            func() time.Time
	logger         *logrus.Entry

	mu       sync.RWMutex
	state    session.State
	failures int
}

func NewSessionController(
	auth session.Authenticator,
	page session.Page,
	detector *ChangeDetector,
	notifier Notifier,
	alertThreshold int,
	loc *time.Location,
	logger *logrus.Entry,
) *SessionController {
	page.OnRowChange(func(content string) {
		detector.Observe(content)
	})
	return &SessionController{
		auth:           auth,
		page:           page,
		detector:       detector,
		notifier:       notifier,
		alertThreshold: alertThreshold,
		loc:            loc,
		now:            time.Now,
		logger:         logger,
		state:          session.StateUnknown,
	}
}

// State returns the current session state.
func (c *SessionController) State() session.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ConsecutiveFailures is the number of re-authentication attempts that failed in a row.
func (c *SessionController) ConsecutiveFailures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// Ensure makes sure the monitored page is live and authenticated.
// Only an authenticated session is checked; Unknown and Expired go straight to login.
func (c *SessionController) Ensure(ctx context.Context) error {
	if c.State() == session.StateAuthenticated {
		valid, err := c.auth.IsSessionValid(ctx)
		if err != nil {
			c.logger.WithError(err).Warn("Session check failed, assuming the session expired")
		}
		if err == nil && valid {
			return nil
		}
		c.setState(session.StateExpired)
		c.logger.Info("Session expired, re-logging in")
	}

	if err := c.reestablish(ctx); err != nil {
		c.recordFailure(ctx, err)
		return err
	}

	c.mu.Lock()
	c.state = session.StateAuthenticated
	c.failures = 0
	c.mu.Unlock()
	c.logger.Info("Session established, row observer armed")
	return nil
}

func (c *SessionController) reestablish(ctx context.Context) error {
	if err := c.auth.Login(ctx); err != nil {
		return fmt.Errorf("re-authentication failed: %w", err)
	}
	if err := c.page.Open(ctx); err != nil {
		return fmt.Errorf("failed to open monitored page: %w", err)
	}
	c.detector.Reset()
	if err := c.page.ArmObserver(ctx); err != nil {
		return fmt.Errorf("failed to arm row observer: %w", err)
	}
	return nil
}

// recordFailure sends a single alert once the failure streak reaches the threshold.
func (c *SessionController) recordFailure(ctx context.Context, cause error) {
	c.mu.Lock()
	c.state = session.StateExpired
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	logCtx := c.logger.WithError(cause).WithField("attempt", failures)
	logCtx.Error("Could not re-establish portal session")

	if c.alertThreshold <= 0 || failures != c.alertThreshold {
		return
	}
	if !c.notifier.Dispatch(ctx, FormatAuthAlert(failures, cause, c.now(), c.loc)) {
		logCtx.Warn("Failed to deliver login failure alert")
	}
}

func (c *SessionController) setState(s session.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
