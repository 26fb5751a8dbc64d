package oidcprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/rlvaden/authstate"
)

// Config describes the relying-party side of the OIDC integration.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	IssuerURL string
	ClientID  string

	// RoleClaim names the ID-token claim carrying the application role.
	// Empty leaves role resolution entirely to the engine.
	RoleClaim string
}

// Provider implements authstate.SessionProvider over go-oidc discovery and an
// oauth2 token source. The token source is installed by the host application
// after its interactive flow completes; until then CurrentSession reports the
// definitive no-session result.
type Provider struct {
	cfg      Config
	verifier *oidc.IDTokenVerifier

	mu       sync.Mutex
	tokens   oauth2.TokenSource
	handlers map[uint64]func(authstate.Event)
	nextID   uint64
}

// New discovers the issuer and prepares the ID-token verifier.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer_url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client_id is required")
	}

	issuer, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &Provider{
		cfg:      cfg,
		verifier: issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		handlers: make(map[uint64]func(authstate.Event)),
	}, nil
}

// SetTokenSource installs the token source produced by the host's interactive
// OAuth2 flow and announces the resulting session to subscribers. A nil
// source clears the session without emitting an event; use SignOut for a full
// sign-out.
func (p *Provider) SetTokenSource(ctx context.Context, ts oauth2.TokenSource) error {
	p.mu.Lock()
	p.tokens = ts
	p.mu.Unlock()

	if ts == nil {
		return nil
	}

	sess, err := p.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if sess != nil {
		p.emit(authstate.Event{Type: authstate.EventSignedIn, Session: sess})
	}
	return nil
}

// CurrentSession derives a session from the current token source. A missing
// source is the definitive no-session answer; verification and claim-mapping
// failures are transient errors the engine may retry.
func (p *Provider) CurrentSession(ctx context.Context) (*authstate.Session, error) {
	p.mu.Lock()
	ts := p.tokens
	p.mu.Unlock()

	if ts == nil {
		return nil, nil
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("token source: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	id := authstate.Identity{
		ID:          idToken.Subject,
		Email:       stringClaim(claims, "email"),
		FirstName:   stringClaim(claims, "given_name"),
		LastName:    stringClaim(claims, "family_name"),
		DisplayName: stringClaim(claims, "name"),
		Phone:       stringClaim(claims, "phone_number"),
	}
	if p.cfg.RoleClaim != "" {
		id.Role = stringClaim(claims, p.cfg.RoleClaim)
	}
	if id.ID == "" {
		return nil, fmt.Errorf("missing subject in ID token")
	}

	return &authstate.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Identity:     id,
	}, nil
}

// Authenticate is not expressible over plain OIDC.
func (p *Provider) Authenticate(ctx context.Context, creds authstate.Credentials) (*authstate.Session, error) {
	return nil, authstate.ErrProviderUnsupported
}

// Register is not expressible over plain OIDC.
func (p *Provider) Register(ctx context.Context, reg authstate.Registration) (*authstate.Session, error) {
	return nil, authstate.ErrProviderUnsupported
}

// UpdateIdentity is not expressible over plain OIDC.
func (p *Provider) UpdateIdentity(ctx context.Context, update authstate.IdentityUpdate) (*authstate.Identity, error) {
	return nil, authstate.ErrProviderUnsupported
}

// SignOut drops the token source and announces the sign-out. Scope is
// reported as-is; RP-initiated logout against the issuer's end-session
// endpoint is the host application's concern.
func (p *Provider) SignOut(ctx context.Context, scope authstate.SignOutScope) error {
	p.mu.Lock()
	hadSession := p.tokens != nil
	p.tokens = nil
	p.mu.Unlock()

	if hadSession && scope == authstate.ScopeLocal {
		p.emit(authstate.Event{Type: authstate.EventSignedOut})
	}
	return nil
}

// Subscribe registers a session-event handler and returns its unsubscribe
// function. Handlers run synchronously in emission order.
func (p *Provider) Subscribe(handler func(authstate.Event)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.handlers[id] = handler
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

// NotifyTokenRefreshed announces a token rotation performed by the host's
// flow so the engine re-reads the session and permissions.
func (p *Provider) NotifyTokenRefreshed() {
	p.emit(authstate.Event{Type: authstate.EventTokenRefreshed})
}

func (p *Provider) emit(ev authstate.Event) {
	p.mu.Lock()
	handlers := make([]func(authstate.Event), 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
