// Package oidcprovider adapts an OpenID Connect relying-party flow to the
// authstate SessionProvider contract.
//
// The adapter is pull-based: it holds an oauth2.TokenSource obtained by the
// host application's interactive flow and derives sessions from verified ID
// tokens on demand. Credential operations (Authenticate, Register,
// UpdateIdentity) are not expressible over plain OIDC and return
// authstate.ErrProviderUnsupported.
//
// # Architecture boundaries
//
// This package talks to the issuer only through go-oidc discovery and
// verification plus the oauth2 token source. It never persists anything; all
// caching belongs to the engine.
//
// # What this package must NOT do
//
// It must not mint, refresh, or revoke tokens itself, and it must not decide
// authentication state — it only reports what the issuer asserts.
package oidcprovider
