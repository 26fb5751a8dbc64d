package identity

import "time"

// Identity is the authenticated user's profile as asserted by the remote
// provider or reconstructed from the persistent cache. Instances are treated
// as immutable snapshots; the engine replaces them wholesale, never mutates
// them in place.
type Identity struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
	Phone       string
	Role        string
}

// Clone returns an independent copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Session is the remote provider's proof of an active authentication: the
// token pair, its expiry, and the identity claims it was issued for.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

// Expired reports whether the session's access token is past its expiry.
// A zero ExpiresAt is treated as non-expiring (the provider owns renewal).
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// EventType tags a provider session event.
type EventType uint8

const (
	// EventSignedIn is emitted when the provider establishes a session.
	EventSignedIn EventType = iota
	// EventSignedOut is emitted when the provider terminates the session.
	EventSignedOut
	// EventTokenRefreshed is emitted when the provider rotates session tokens.
	EventTokenRefreshed
)

// String returns the audit-facing name of the event type.
func (t EventType) String() string {
	switch t {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Event is a session-change notification from the remote provider. Session is
// set for EventSignedIn and may be set for EventTokenRefreshed; it is always
// nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

// SignOutScope selects how far a provider sign-out reaches.
type SignOutScope uint8

const (
	// ScopeLocal terminates the current device's session only.
	ScopeLocal SignOutScope = iota
	// ScopeGlobal revokes the session on every device.
	ScopeGlobal
)

// String returns the audit-facing name of the scope.
func (s SignOutScope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}
