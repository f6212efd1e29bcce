package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"otp_forwarder_bot/internal/domain/session"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Selectors locate the login form fields.
type Selectors struct {
	Email    string
	Password string
	Remember string
	Submit   string
}

var DefaultSelectors = Selectors{
	Email:    `input[name="email"], input[type="email"]`,
	Password: `input[name="password"], input[type="password"]`,
	Remember: `input[name="remember"], input[type="checkbox"]`,
	Submit:   `button[type="submit"], input[type="submit"]`,
}

const redirectPollInterval = 500 * time.Millisecond

// PortalAuthenticator logs into the portal through the session's tab.
type PortalAuthenticator struct {
	session   *Session
	loginURL  string
	email     string
	password  string
	selectors Selectors
	timeout   time.Duration
	logger    *logrus.Entry
}

func NewPortalAuthenticator(s *Session, loginURL, email, password string, timeout time.Duration, logger *logrus.Entry) *PortalAuthenticator {
	return &PortalAuthenticator{
		session:   s,
		loginURL:  loginURL,
		email:     email,
		password:  password,
		selectors: DefaultSelectors,
		timeout:   timeout,
		logger:    logger,
	}
}

// Login fills and submits the login form, then waits for the portal redirect.
func (a *PortalAuthenticator) Login(ctx context.Context) error {
	a.logger.Info("Navigating to login page")
	sel := a.selectors

	err := a.session.Run(ctx, a.timeout,
		chromedp.Navigate(a.loginURL),
		chromedp.WaitVisible(sel.Email, chromedp.ByQuery),
		chromedp.SetValue(sel.Email, "", chromedp.ByQuery),
		chromedp.SendKeys(sel.Email, a.email, chromedp.ByQuery),
		chromedp.SetValue(sel.Password, "", chromedp.ByQuery),
		chromedp.SendKeys(sel.Password, a.password, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: filling login form: %v", session.ErrAuthFailed, err)
	}

	var hasRemember bool
	if err := a.session.Run(ctx, evalTimeout, chromedp.Evaluate(checkRememberScript(sel.Remember), &hasRemember)); err != nil || !hasRemember {
		a.logger.Debug("Remember me checkbox not found, continuing")
	}

	if err := a.session.Run(ctx, a.timeout, chromedp.Click(sel.Submit, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: submitting login form: %v", session.ErrAuthFailed, err)
	}

	landed, err := a.waitForPortal(ctx)
	if err != nil {
		return err
	}
	a.logger.WithField("url", landed).Info("Login successful")
	return nil
}

func (a *PortalAuthenticator) waitForPortal(ctx context.Context) (string, error) {
	deadline := time.Now().Add(a.timeout)
	var last string
	for {
		var loc string
		if err := a.session.Run(ctx, evalTimeout, chromedp.Location(&loc)); err == nil {
			last = loc
			if IsPortalURL(loc) {
				return loc, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: still at %q after %s", session.ErrAuthFailed, last, a.timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(redirectPollInterval):
		}
	}
}

// IsSessionValid is false on the login page, else true when logged-in markers are present.
func (a *PortalAuthenticator) IsSessionValid(ctx context.Context) (bool, error) {
	var loc string
	if err := a.session.Run(ctx, evalTimeout, chromedp.Location(&loc)); err != nil {
		return false, fmt.Errorf("failed to read current location: %w", err)
	}
	if IndicatesLoginPage(loc) {
		return false, nil
	}

	var loggedIn bool
	if err := a.session.Run(ctx, evalTimeout, chromedp.Evaluate(loggedInMarkersScript, &loggedIn)); err != nil {
		return false, fmt.Errorf("failed to inspect page: %w", err)
	}
	return loggedIn, nil
}

// IndicatesLoginPage reports whether the portal redirected to its login surface.
func IndicatesLoginPage(url string) bool {
	return strings.Contains(strings.ToLower(url), "login")
}

// IsPortalURL reports whether url is a post-login page.
func IsPortalURL(url string) bool {
	u := strings.ToLower(url)
	return !IndicatesLoginPage(u) && (strings.Contains(u, "portal") || strings.Contains(u, "dashboard"))
}
