package authstate

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/rlvaden/authstate/cache"
	"github.com/rlvaden/authstate/claims"
	"github.com/rlvaden/authstate/identity"
	"github.com/rlvaden/authstate/permcache"
	"github.com/rlvaden/authstate/state"
)

// Engine defines a public type used by authstate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// All methods are safe for concurrent use after [Builder.Build] returns.
type Engine struct {
	config      Config
	states      *state.Store
	cache       *cache.Store
	permissions *permcache.Fetcher
	provider    SessionProvider
	permSource  PermissionSource
	audit       *auditDispatcher
	metrics     *Metrics

	queryCacheReset func()
	navigate        func(route string)
	unsubscribe     func()

	// generation advances on every sign-in, sign-out, and logout so that
	// late completions of in-flight work (permission fetches, the bootstrap
	// retry loop) can detect they were superseded and discard themselves.
	generation atomic.Uint64

	// eventMu serializes the synchronous portion of event reconciliation,
	// preserving the provider's emission order end to end.
	eventMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	closed    atomic.Bool
}

// Snapshot returns an independent copy of the current [AuthState].
func (e *Engine) Snapshot() AuthState {
	return e.states.Snapshot()
}

// Subscribe registers a state-change subscriber. buffer sizes the delivery
// channel; a subscriber that falls behind misses intermediate snapshots but
// can always call [Engine.Snapshot]. Cancel the subscription when done.
func (e *Engine) Subscribe(buffer int) *Subscription {
	return e.states.Subscribe(buffer)
}

// Ready returns a channel closed when the first authoritative resolution or
// the bootstrap timeout fires — the moment Loading first becomes false.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// HasPermission reports whether the current permission set contains token.
// An absent token means "not known to be granted": the set may simply not be
// loaded yet, so fail-closed callers should also consult Loading.
func (e *Engine) HasPermission(token string) bool {
	snapshot := e.states.Snapshot()
	for _, p := range snapshot.Permissions {
		if p == token {
			return true
		}
	}
	return false
}

// Close tears down the provider subscription and the audit dispatcher. The
// last observed [AuthState] remains readable; no further writes occur.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under the
// drop-if-full policy.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) signalReady() {
	e.readyOnce.Do(func() {
		close(e.ready)
	})
}

// bestEffort applies the uniform swallow-and-log policy for cache and other
// optimization-layer failures: nil errors pass silently, everything else is
// logged once and discarded.
func bestEffort(op string, err error) {
	if err == nil {
		return
	}
	log.Print("authstate: " + op + " failed (best-effort): " + err.Error())
}

// resolveRole picks the identity's role by priority: the session's role
// claim, then the cached role for the same identity id, then the configured
// default. The cache never promotes authentication, only the role string.
func (e *Engine) resolveRole(ctx context.Context, sess *identity.Session) string {
	if role, err := claims.Role(sess.AccessToken); err == nil {
		return role
	}
	if sess.Identity.Role != "" {
		return sess.Identity.Role
	}

	rec, err := e.cache.LoadIdentity(ctx)
	bestEffort("cached role lookup", err)
	if rec != nil && rec.Identity.ID == sess.Identity.ID && rec.Role != "" {
		return rec.Role
	}

	return e.config.Account.DefaultRole
}

// persistIdentity writes the authoritative identity snapshot to the cache.
// Failures are swallowed: the cache is an optimization, never a correctness
// dependency.
func (e *Engine) persistIdentity(ctx context.Context, id *identity.Identity) {
	bestEffort("identity cache write", e.cache.SaveIdentity(ctx, cache.IdentityRecord{
		Identity: *id,
		Role:     id.Role,
	}))
}

func (e *Engine) persistPermissions(ctx context.Context, perms []string) {
	bestEffort("permission cache write", e.cache.SavePermissions(ctx, cache.PermissionRecord{
		Permissions: perms,
	}))
}
