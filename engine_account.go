package authstate

import (
	"context"
	"errors"
	"time"
)

/*
====================================
ACCOUNT OPERATIONS
====================================
*/

// Login authenticates against the provider with the given credentials and
// routes the resulting session through the same reconciliation path a
// provider-emitted signed-in event takes. On failure the prior state is
// restored untouched except that Loading returns to false.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) Login(ctx context.Context, creds Credentials) (*Identity, error) {
	if e == nil || e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.setLoading(true)

	sess, err := e.provider.Authenticate(ctx, creds)
	if err != nil {
		e.setLoading(false)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", e.states.Snapshot().Phase, err, nil)
		return nil, err
	}
	if sess == nil || sess.Identity.ID == "" {
		e.setLoading(false)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", e.states.Snapshot().Phase, ErrNoSession, nil)
		return nil, ErrNoSession
	}

	e.reconcileSignedIn(Event{Type: EventSignedIn, Session: sess})
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, sess.Identity.ID, PhaseAuthenticated, nil, nil)

	snap := e.states.Snapshot()
	return snap.Identity, nil
}

// Register creates a new account with the provider. When the provider returns
// a live session the new account is signed in through the standard
// reconciliation path; providers that require verification first may return a
// nil session, leaving the engine unauthenticated.
func (e *Engine) Register(ctx context.Context, reg Registration) (*Identity, error) {
	if e == nil || e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.setLoading(true)

	sess, err := e.provider.Register(ctx, reg)
	if err != nil {
		e.setLoading(false)
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", e.states.Snapshot().Phase, err, nil)
		return nil, err
	}

	if sess == nil || sess.Identity.ID == "" {
		e.setLoading(false)
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, "", e.states.Snapshot().Phase, nil, nil)
		return nil, nil
	}

	e.reconcileSignedIn(Event{Type: EventSignedIn, Session: sess})
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, sess.Identity.ID, PhaseAuthenticated, nil, nil)

	snap := e.states.Snapshot()
	return snap.Identity, nil
}

// Refresh re-reads the current session and overwrites the permission set
// directly against the source, bypassing the deduplicating cache. It is the
// imperative twin of the token-refreshed event. A provider that reports no
// session does not sign the engine out; only events and Logout do that.
func (e *Engine) Refresh(ctx context.Context) error {
	if e == nil || e.closed.Load() {
		return ErrEngineClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	snap := e.states.Snapshot()
	if snap.Identity == nil {
		return ErrNotAuthenticated
	}
	identityID := snap.Identity.ID

	e.setLoading(true)
	defer e.setLoading(false)

	gen := e.generation.Load()

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.Permission.FetchTimeout)
	defer cancel()

	sess, err := e.provider.CurrentSession(fetchCtx)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, identityID, snap.Phase, err, nil)
		return err
	}
	if sess == nil || sess.Expired(time.Now()) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, identityID, snap.Phase, ErrNoSession, nil)
		return ErrNoSession
	}
	if sess.Identity.ID != identityID {
		e.metricInc(MetricRefreshFailure)
		return ErrNoSession
	}

	perms, err := e.fetchPermissionsDirect(fetchCtx, identityID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, identityID, snap.Phase, err, nil)
		return errors.Join(ErrPermissionFetchFailed, err)
	}

	e.applyPermissions(ctx, identityID, gen, perms)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, identityID, snap.Phase, nil, nil)
	return nil
}

// UpdateIdentity applies a partial profile update through the provider and
// folds the returned identity into the current snapshot, preserving the
// resolved role, authentication flag, phase, and permission set.
func (e *Engine) UpdateIdentity(ctx context.Context, update IdentityUpdate) (*Identity, error) {
	if e == nil || e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	snap := e.states.Snapshot()
	if !snap.Authenticated || snap.Identity == nil {
		return nil, ErrNotAuthenticated
	}
	prevRole := snap.Identity.Role

	e.setLoading(true)
	defer e.setLoading(false)

	updated, err := e.provider.UpdateIdentity(ctx, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNoSession
	}

	id := updated.Clone()
	if id.Role == "" {
		id.Role = prevRole
	}

	e.eventMu.Lock()
	current := e.states.Snapshot()
	if current.Identity == nil || current.Identity.ID != id.ID {
		e.eventMu.Unlock()
		return nil, ErrNotAuthenticated
	}
	e.states.Update(func(s AuthState) AuthState {
		s.Identity = id
		return s
	})
	e.eventMu.Unlock()

	e.metricInc(MetricIdentityUpdated)
	e.emitAudit(ctx, auditEventIdentityUpdated, true, id.ID, current.Phase, nil, nil)
	e.persistIdentity(ctx, id)

	return id.Clone(), nil
}

// setLoading flips only the Loading flag, leaving the rest of the snapshot
// untouched.
func (e *Engine) setLoading(v bool) {
	e.states.Update(func(s AuthState) AuthState {
		s.Loading = v
		return s
	})
}
