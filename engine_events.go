package authstate

import (
	"context"
	"log"
	"strconv"
	"time"
)

// handleEvent is the single entry point for provider session events. The
// synchronous portion of each reconciliation runs under eventMu so that
// snapshots are installed in the provider's emission order; only the
// permission enrichment is detached.
func (e *Engine) handleEvent(ev Event) {
	if e == nil || e.closed.Load() {
		return
	}

	switch ev.Type {
	case EventSignedIn:
		e.reconcileSignedIn(ev)
	case EventSignedOut:
		e.reconcileSignedOut(ev)
	case EventTokenRefreshed:
		e.reconcileTokenRefreshed(ev)
	default:
		log.Print("authstate: unknown session event ignored: " + ev.Type.String())
	}
}

// reconcileSignedIn installs the authenticated snapshot for a new session.
// The snapshot is authoritative: it fully replaces whatever came before,
// including a cache preview or a timed-out bootstrap. Permissions start empty
// and arrive via the detached enrichment fetch.
func (e *Engine) reconcileSignedIn(ev Event) {
	ctx := context.Background()

	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	if ev.Session == nil || ev.Session.Identity.ID == "" {
		log.Print("authstate: signed-in event without session ignored")
		return
	}

	gen := e.generation.Add(1)

	role := e.resolveRole(ctx, ev.Session)
	id := ev.Session.Identity.Clone()
	id.Role = role

	e.states.Replace(AuthState{
		Identity:      id,
		Authenticated: true,
		Loading:       false,
		Permissions:   []string{},
		Phase:         PhaseAuthenticated,
	})
	e.signalReady()
	e.metricInc(MetricSignedIn)
	e.emitAudit(ctx, auditEventSignedIn, true, id.ID, PhaseAuthenticated, nil, func() map[string]string {
		return map[string]string{"role": role}
	})

	e.persistIdentity(ctx, id)
	go e.enrichPermissions(id.ID, gen)
}

// reconcileSignedOut clears the in-memory state and scrubs every
// identity-derived artifact: the identity and permission records, any
// provider-owned key namespaces, and the transient entries. Preference keys
// outside those namespaces survive.
func (e *Engine) reconcileSignedOut(ev Event) {
	ctx := context.Background()

	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	prev := e.states.Snapshot()
	identityID := ""
	if prev.Identity != nil {
		identityID = prev.Identity.ID
	}

	e.generation.Add(1)
	e.permissions.Purge()

	e.states.Replace(AuthState{
		Authenticated: false,
		Loading:       false,
		Permissions:   []string{},
		Phase:         PhaseUnauthenticated,
	})
	e.signalReady()
	e.metricInc(MetricSignedOut)
	e.emitAudit(ctx, auditEventSignedOut, true, identityID, PhaseUnauthenticated, nil, nil)

	bestEffort("identity cache removal", e.cache.RemoveIdentity(ctx))
	bestEffort("permission cache removal", e.cache.RemovePermissions(ctx))
	for _, prefix := range e.config.Cache.ProviderKeyPrefixes {
		_, err := e.cache.RemoveByPrefix(ctx, prefix)
		bestEffort("provider key removal", err)
	}
	bestEffort("transient cache clear", e.cache.ClearTransient(ctx))
}

// reconcileTokenRefreshed re-reads the session and refreshes the permission
// set directly against the source, bypassing the deduplicating cache: the
// whole point of the refresh is that permissions may have changed server-side
// under the same identity. On any failure the current state stays untouched.
func (e *Engine) reconcileTokenRefreshed(ev Event) {
	ctx := context.Background()

	e.eventMu.Lock()
	gen := e.generation.Load()
	snap := e.states.Snapshot()
	e.eventMu.Unlock()

	if snap.Identity == nil {
		return
	}
	identityID := snap.Identity.ID

	e.metricInc(MetricTokenRefreshed)
	e.emitAudit(ctx, auditEventTokenRefreshed, true, identityID, snap.Phase, nil, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.Permission.FetchTimeout)
	defer cancel()

	sess, err := e.provider.CurrentSession(fetchCtx)
	if err != nil || sess.Expired(time.Now()) {
		bestEffort("refresh session read", err)
		return
	}
	if sess.Identity.ID != identityID {
		return
	}

	perms, err := e.fetchPermissionsDirect(fetchCtx, identityID)
	if err != nil {
		e.metricInc(MetricPermissionFetchFailure)
		e.emitAudit(ctx, auditEventPermissionsFailed, false, identityID, snap.Phase, err, nil)
		bestEffort("refresh permission fetch", err)
		return
	}

	e.applyPermissions(ctx, identityID, gen, perms)
}

// fetchPermissionsDirect calls the permission source without the
// deduplicating cache and invalidates the cached entry so subsequent
// deduplicated fetches observe the new set.
func (e *Engine) fetchPermissionsDirect(ctx context.Context, identityID string) ([]string, error) {
	perms, err := e.permSource.FetchPermissions(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}
	e.permissions.Invalidate(identityID)
	return perms, nil
}

// enrichPermissions performs the detached permission fetch that follows an
// authenticated snapshot. Failure leaves the permission set at its last
// value; fail-closed consumers see an empty set until a later fetch succeeds.
// A completion that lands after a sign-out or a newer sign-in is discarded.
func (e *Engine) enrichPermissions(identityID string, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.Permission.FetchTimeout)
	defer cancel()

	perms, err := e.permissions.Fetch(ctx, identityID, func(fetchCtx context.Context, id string) ([]string, error) {
		return e.permSource.FetchPermissions(fetchCtx, id)
	})
	if err != nil {
		e.metricInc(MetricPermissionFetchFailure)
		e.emitAudit(ctx, auditEventPermissionsFailed, false, identityID, PhaseAuthenticated, err, nil)
		bestEffort("permission fetch", err)
		return
	}

	e.applyPermissions(context.Background(), identityID, gen, perms)
}

// applyPermissions installs a fetched permission set, discarding it when the
// session generation advanced or the current identity no longer matches the
// identity the fetch was issued for.
func (e *Engine) applyPermissions(ctx context.Context, identityID string, gen uint64, perms []string) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	if e.generation.Load() != gen {
		e.metricInc(MetricPermissionStaleDiscarded)
		e.emitAudit(ctx, auditEventPermissionsStale, false, identityID, e.states.Snapshot().Phase, nil, nil)
		return
	}

	snap := e.states.Snapshot()
	if snap.Identity == nil || snap.Identity.ID != identityID {
		e.metricInc(MetricPermissionStaleDiscarded)
		e.emitAudit(ctx, auditEventPermissionsStale, false, identityID, snap.Phase, nil, nil)
		return
	}

	e.states.Update(func(s AuthState) AuthState {
		s.Permissions = perms
		return s
	})
	e.metricInc(MetricPermissionFetchSuccess)
	e.emitAudit(ctx, auditEventPermissionsLoaded, true, identityID, snap.Phase, nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(perms))}
	})

	e.persistPermissions(ctx, perms)
}
