// internal/domain/session/page.go
package session

import (
	"context"
	"errors"
)

// ErrAuthFailed means the login form was submitted but the portal never reached its post-login page.
var ErrAuthFailed = errors.New("login did not reach the portal")

// Authenticator is the portal's login flow, run against a live browsing session.
type Authenticator interface {
	Login(ctx context.Context) error
	IsSessionValid(ctx context.Context) (bool, error)
}

// Page is the monitored page of the live browsing session.
type Page interface {
	// Open navigates to the monitored URL and waits for the table to render.
	Open(ctx context.Context) error
	// ArmObserver attaches the row observer to the table. Each change of the topmost
	// row's markup is delivered to the handler registered with OnRowChange.
	ArmObserver(ctx context.Context) error
	// OnRowChange registers the push-path handler. It may be called from another goroutine.
	OnRowChange(handler func(content string))
	// TopRowCells returns the cell texts of the first data row (header excluded).
	TopRowCells(ctx context.Context) ([]string, error)
}
