package authstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

/*
====================================
TEST DOUBLES
====================================
*/

type mockSessionProvider struct {
	mu           sync.Mutex
	session      *Session
	sessionErr   error
	failFirst    int
	sessionCalls int
	block        chan struct{}

	authSession *Session
	authErr     error

	regSession *Session
	regErr     error

	updated     *Identity
	updateErr   error
	updateBlock chan struct{}

	signOuts []SignOutScope

	handler func(Event)
}

func (m *mockSessionProvider) CurrentSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	m.sessionCalls++
	block := m.block
	if m.failFirst > 0 {
		m.failFirst--
		m.mu.Unlock()
		return nil, ErrProviderUnavailable
	}
	sess, err := m.session, m.sessionErr
	m.mu.Unlock()

	if block != nil {
		<-block
		m.mu.Lock()
		sess, err = m.session, m.sessionErr
		m.mu.Unlock()
	}
	return sess, err
}

func (m *mockSessionProvider) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authSession, m.authErr
}

func (m *mockSessionProvider) Register(ctx context.Context, reg Registration) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regSession, m.regErr
}

func (m *mockSessionProvider) UpdateIdentity(ctx context.Context, update IdentityUpdate) (*Identity, error) {
	m.mu.Lock()
	block := m.updateBlock
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updated, m.updateErr
}

func (m *mockSessionProvider) SignOut(ctx context.Context, scope SignOutScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOuts = append(m.signOuts, scope)
	return nil
}

func (m *mockSessionProvider) Subscribe(handler func(Event)) func() {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.handler = nil
		m.mu.Unlock()
	}
}

func (m *mockSessionProvider) emit(ev Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (m *mockSessionProvider) setSession(sess *Session) {
	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()
}

func (m *mockSessionProvider) signOutScopes() []SignOutScope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SignOutScope, len(m.signOuts))
	copy(out, m.signOuts)
	return out
}

type mockPermissionSource struct {
	mu    sync.Mutex
	perms map[string][]string
	err   error
	calls int
	block chan struct{}
}

func (m *mockPermissionSource) FetchPermissions(ctx context.Context, identityID string) ([]string, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.perms[identityID], nil
}

func (m *mockPermissionSource) setPerms(identityID string, perms []string) {
	m.mu.Lock()
	if m.perms == nil {
		m.perms = map[string][]string{}
	}
	m.perms[identityID] = perms
	m.mu.Unlock()
}

func (m *mockPermissionSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

/*
====================================
ENGINE FIXTURES
====================================
*/

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func engineTestConfig() Config {
	cfg := defaultConfig()
	cfg.Bootstrap.Timeout = 500 * time.Millisecond
	cfg.Bootstrap.RetryAttempts = 3
	cfg.Bootstrap.RetryBackoff = time.Millisecond
	cfg.Bootstrap.PreviewRecheck = 50 * time.Millisecond
	cfg.Permission.FetchTimeout = time.Second
	return cfg
}

func newTestEngine(
	t *testing.T,
	cfg Config,
	provider *mockSessionProvider,
	perms *mockPermissionSource,
) (*Engine, *redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSessionProvider(provider)
	if perms != nil {
		builder = builder.WithPermissionSource(perms)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, rdb, mr, func() {
		engine.Close()
		mr.Close()
	}
}

func testSession(id, email string) *Session {
	return &Session{
		AccessToken:  "opaque-access-token",
		RefreshToken: "opaque-refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity: Identity{
			ID:    id,
			Email: email,
		},
	}
}

func waitReady(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case <-e.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("engine never became ready")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
