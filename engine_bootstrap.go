package authstate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rlvaden/authstate/identity"
	"github.com/rlvaden/authstate/state"
)

// bootstrap is the one-shot startup routine: it races a bounded-retry session
// fetch against the hard timeout and resolves the first authoritative
// [AuthState]. It runs exactly once, on the goroutine started by
// [Builder.Build], and must never leave Loading=true behind — whatever
// happens, the timeout path or the recover path ends the loading phase.
func (e *Engine) bootstrap() {
	ctx := context.Background()
	startGen := e.generation.Load()

	defer func() {
		if r := recover(); r != nil {
			log.Print("authstate: bootstrap recovered: " + fmt.Sprint(r))
			e.eventMu.Lock()
			if e.generation.Load() == startGen {
				e.terminalNoSession(ctx)
			}
			e.eventMu.Unlock()
			e.signalReady()
		}
	}()

	resolved := make(chan *identity.Session, 1)
	go e.fetchSessionWithRetry(ctx, resolved)

	timer := time.NewTimer(e.config.Bootstrap.Timeout)
	defer timer.Stop()

	select {
	case sess := <-resolved:
		if sess != nil {
			e.applyBootstrapSession(ctx, sess, startGen)
		} else {
			e.bootstrapFromCache(ctx, startGen)
		}
	case <-timer.C:
		// Force the loading phase closed without touching identity,
		// authentication, or permissions. The retry loop is not cancelled;
		// it is left to complete and its eventual result applied below only
		// if nothing superseded it in the meantime.
		e.metricInc(MetricBootstrapTimeout)
		e.states.Update(func(s AuthState) AuthState {
			s.Loading = false
			return s
		})
		e.signalReady()
		e.emitAudit(ctx, auditEventBootstrapTimeout, false, "", PhaseLoading, nil, nil)

		go func() {
			sess := <-resolved
			if sess != nil {
				e.applyBootstrapSession(ctx, sess, startGen)
				return
			}
			e.bootstrapFromCache(ctx, startGen)
		}()
	}
}

// fetchSessionWithRetry attempts the remote session fetch with bounded retry
// and linearly increasing backoff. A transient error on one attempt does not
// abort the loop; exhausting every attempt is "no session", never fatal. A
// definitive nil session from the provider stops retrying immediately.
func (e *Engine) fetchSessionWithRetry(ctx context.Context, resolved chan<- *identity.Session) {
	attempts := e.config.Bootstrap.RetryAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		sess, err := e.provider.CurrentSession(ctx)
		if err == nil {
			if sess != nil && sess.Expired(time.Now()) {
				// The provider owns token renewal; a session it handed
				// over already expired is the no-session answer.
				resolved <- nil
				return
			}
			resolved <- sess
			return
		}

		bestEffort("bootstrap session fetch", err)
		e.metricInc(MetricBootstrapRetry)
		if attempt < attempts {
			time.Sleep(e.config.Bootstrap.RetryBackoff * time.Duration(attempt))
		}
	}

	resolved <- nil
}

// applyBootstrapSession installs the fetched session as the first
// authoritative state, unless a sign-in/sign-out/logout superseded the
// bootstrap cycle while the fetch was in flight.
func (e *Engine) applyBootstrapSession(ctx context.Context, sess *identity.Session, gen uint64) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	if e.generation.Load() != gen {
		e.metricInc(MetricBootstrapLateDiscarded)
		e.emitAudit(ctx, auditEventBootstrapResolved, false, sess.Identity.ID, PhaseLoading, nil, func() map[string]string {
			return map[string]string{"reason": "superseded"}
		})
		return
	}

	role := e.resolveRole(ctx, sess)
	id := sess.Identity.Clone()
	id.Role = role

	e.states.Replace(AuthState{
		Identity:      id,
		Authenticated: true,
		Loading:       false,
		Permissions:   []string{},
		Phase:         PhaseAuthenticated,
	})
	e.signalReady()
	e.metricInc(MetricBootstrapResolved)
	e.emitAudit(ctx, auditEventBootstrapResolved, true, id.ID, PhaseAuthenticated, nil, func() map[string]string {
		return map[string]string{"role": role}
	})

	e.persistIdentity(ctx, id)
	go e.enrichPermissions(id.ID, gen)
}

// bootstrapFromCache resolves the no-session outcome: a cache-based preview
// when a fresh record exists (never marked authenticated — the cache informs
// who, not whether-logged-in), otherwise the plain unauthenticated terminal
// state. A preview expires after the configured re-check unless a real
// session appears first.
func (e *Engine) bootstrapFromCache(ctx context.Context, gen uint64) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	if e.generation.Load() != gen {
		return
	}

	rec, err := e.cache.LoadIdentity(ctx)
	bestEffort("bootstrap cache read", err)

	if rec == nil {
		e.metricInc(MetricCacheMiss)
		e.terminalNoSession(ctx)
		e.signalReady()
		return
	}

	e.metricInc(MetricCacheHit)
	id := rec.Identity.Clone()
	if rec.Role != "" {
		id.Role = rec.Role
	} else if id.Role == "" {
		id.Role = e.config.Account.DefaultRole
	}

	e.states.Replace(AuthState{
		Identity:      id,
		Authenticated: false,
		Loading:       false,
		Permissions:   []string{},
		Phase:         PhasePreviewFromCache,
	})
	e.signalReady()
	e.metricInc(MetricCachePreviewServed)
	e.emitAudit(ctx, auditEventCachePreview, true, id.ID, PhasePreviewFromCache, nil, nil)

	time.AfterFunc(e.config.Bootstrap.PreviewRecheck, func() {
		e.expirePreview(gen)
	})
}

// expirePreview clears a cache preview that was never confirmed by a real
// session, removing both cache records so the next start does not repeat the
// preview.
func (e *Engine) expirePreview(gen uint64) {
	ctx := context.Background()

	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	if e.generation.Load() != gen {
		return
	}
	if e.states.Snapshot().Phase != state.PhasePreviewFromCache {
		return
	}

	e.states.Replace(AuthState{
		Authenticated: false,
		Loading:       false,
		Permissions:   []string{},
		Phase:         PhaseUnauthenticated,
	})
	e.metricInc(MetricCachePreviewExpired)
	e.emitAudit(ctx, auditEventPreviewExpired, true, "", PhaseUnauthenticated, nil, nil)

	bestEffort("identity cache removal", e.cache.RemoveIdentity(ctx))
	bestEffort("permission cache removal", e.cache.RemovePermissions(ctx))
}

// terminalNoSession installs the unauthenticated terminal state and clears
// any stale cache records. Callers hold eventMu.
func (e *Engine) terminalNoSession(ctx context.Context) {
	e.states.Replace(AuthState{
		Authenticated: false,
		Loading:       false,
		Permissions:   []string{},
		Phase:         PhaseUnauthenticated,
	})
	bestEffort("identity cache removal", e.cache.RemoveIdentity(ctx))
	bestEffort("permission cache removal", e.cache.RemovePermissions(ctx))
}
