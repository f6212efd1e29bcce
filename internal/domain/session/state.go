// internal/domain/session/state.go
package session

// State is the lifecycle state of the authenticated browsing session.
type State string

const (
	StateUnknown       State = "UNKNOWN" // Before the first check
	StateAuthenticated State = "AUTHENTICATED"
	StateExpired       State = "EXPIRED"
)
