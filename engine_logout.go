package authstate

import (
	"context"
)

// Logout performs the full coordinated sign-out. The in-memory state flips to
// unauthenticated synchronously, before any I/O, so the caller observes the
// signed-out snapshot the moment this returns control to the cleanup ladder.
// Every subsequent step is best-effort: a failing cache, provider, or
// navigator never resurrects the session or aborts the remaining steps.
//
// The local provider sign-out is awaited; the global sign-out (revoking other
// devices) is detached and its outcome ignored. Navigation runs last.
func (e *Engine) Logout(ctx context.Context) {
	if e == nil || e.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.eventMu.Lock()
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
	e.eventMu.Unlock()

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, identityID, PhaseUnauthenticated, nil, nil)

	// 1. Identity-derived cache records and provider-owned namespaces.
	bestEffort("identity cache removal", e.cache.RemoveIdentity(ctx))
	bestEffort("permission cache removal", e.cache.RemovePermissions(ctx))
	for _, prefix := range e.config.Cache.ProviderKeyPrefixes {
		_, err := e.cache.RemoveByPrefix(ctx, prefix)
		bestEffort("provider key removal", err)
	}

	// 2. Host-application query caches.
	if e.queryCacheReset != nil {
		e.queryCacheReset()
	}

	// 3. Session-scoped transient entries.
	bestEffort("transient cache clear", e.cache.ClearTransient(ctx))

	// 4. Full clear with preference restore: snapshot the preserved keys,
	// wipe the namespace, write them back.
	e.clearPreservingKeys(ctx)

	// 5. Provider sign-outs: local awaited, global detached.
	if err := e.provider.SignOut(ctx, ScopeLocal); err != nil {
		bestEffort("provider local sign-out", err)
	}
	go func() {
		if err := e.provider.SignOut(context.Background(), ScopeGlobal); err != nil {
			bestEffort("provider global sign-out", err)
		}
	}()

	// 6. Navigation happens last so every cleanup step ran first.
	if e.navigate != nil && e.config.Account.SignedOutRoute != "" {
		e.navigate(e.config.Account.SignedOutRoute)
	}
}

// clearPreservingKeys wipes the engine's whole cache namespace while carrying
// the configured preference keys across the clear. A key that cannot be read
// back is simply lost; a failing clear leaves everything in place.
func (e *Engine) clearPreservingKeys(ctx context.Context) {
	preserved := make(map[string]string, len(e.config.Cache.PreservedKeys))
	for _, key := range e.config.Cache.PreservedKeys {
		value, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			bestEffort("preserved key read", err)
			continue
		}
		if ok {
			preserved[key] = value
		}
	}

	if err := e.cache.Clear(ctx); err != nil {
		bestEffort("cache clear", err)
		return
	}

	for key, value := range preserved {
		bestEffort("preserved key restore", e.cache.Set(ctx, key, value, 0))
	}
}
