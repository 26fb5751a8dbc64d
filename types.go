package authstate

import (
	"context"
	"io"

	internalaudit "github.com/rlvaden/authstate/internal/audit"
	"github.com/rlvaden/authstate/identity"
	"github.com/rlvaden/authstate/state"
)

// Identity is the authenticated user's profile snapshot.
type Identity = identity.Identity

// Session is the remote provider's proof of an active authentication.
type Session = identity.Session

// Event is a session-change notification from the remote provider.
type Event = identity.Event

// EventType tags a provider session event.
type EventType = identity.EventType

const (
	// EventSignedIn is an exported constant or variable used by the reconciliation engine.
	EventSignedIn = identity.EventSignedIn
	// EventSignedOut is an exported constant or variable used by the reconciliation engine.
	EventSignedOut = identity.EventSignedOut
	// EventTokenRefreshed is an exported constant or variable used by the reconciliation engine.
	EventTokenRefreshed = identity.EventTokenRefreshed
)

// SignOutScope selects how far a provider sign-out reaches.
type SignOutScope = identity.SignOutScope

const (
	// ScopeLocal is an exported constant or variable used by the reconciliation engine.
	ScopeLocal = identity.ScopeLocal
	// ScopeGlobal is an exported constant or variable used by the reconciliation engine.
	ScopeGlobal = identity.ScopeGlobal
)

// AuthState is the observable identity and permission state snapshot.
type AuthState = state.AuthState

// Phase enumerates the engine lifecycle states.
type Phase = state.Phase

const (
	// PhaseLoading is an exported constant or variable used by the reconciliation engine.
	PhaseLoading = state.PhaseLoading
	// PhaseAuthenticated is an exported constant or variable used by the reconciliation engine.
	PhaseAuthenticated = state.PhaseAuthenticated
	// PhaseUnauthenticated is an exported constant or variable used by the reconciliation engine.
	PhaseUnauthenticated = state.PhaseUnauthenticated
	// PhasePreviewFromCache is an exported constant or variable used by the reconciliation engine.
	PhasePreviewFromCache = state.PhasePreviewFromCache
)

// Subscription is an explicit per-subscriber handle for state change
// notifications, owned by the engine instance.
type Subscription = state.Subscription

// Credentials is the input for [Engine.Login]. The engine never inspects the
// password; it is handed to the provider as-is.
type Credentials struct {
	Email    string
	Password string
}

// Registration is the input for [Engine.Register].
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// IdentityUpdate is the partial-profile input for [Engine.UpdateIdentity].
// Nil fields are left unchanged.
type IdentityUpdate struct {
	Email       *string
	FirstName   *string
	LastName    *string
	DisplayName *string
	Phone       *string
}

// SessionProvider is the contract the remote identity provider must satisfy.
// CurrentSession returns (nil, nil) when the provider definitively reports no
// session; an error marks a transient failure the engine may retry.
//
// Subscribe must deliver events in emission order to a single handler and
// return an unsubscribe function. Providers that cannot support credential
// flows (e.g. pure OIDC relying parties) return [ErrProviderUnsupported]
// from Authenticate, Register, and UpdateIdentity.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	Authenticate(ctx context.Context, creds Credentials) (*Session, error)
	Register(ctx context.Context, reg Registration) (*Session, error)
	UpdateIdentity(ctx context.Context, update IdentityUpdate) (*Identity, error)
	SignOut(ctx context.Context, scope SignOutScope) error
	Subscribe(handler func(Event)) (unsubscribe func())
}

// PermissionSource is the remote capability-token lookup. The returned
// sequence order is preserved; an error never invalidates authentication.
type PermissionSource interface {
	FetchPermissions(ctx context.Context, identityID string) ([]string, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
