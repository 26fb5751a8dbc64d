// Package claims reads role claims out of the remote provider's access
// tokens. Tokens are parsed without signature verification: the provider
// issued and verified them, and this engine never grants anything on the
// basis of a claim alone — the role string only seeds the resolution chain.
package claims
