package authstate

import (
	"errors"
	"time"
)

// Config defines a public type used by authstate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Bootstrap  BootstrapConfig
	Cache      CacheConfig
	Permission PermissionConfig
	Account    AccountConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
BOOTSTRAP CONFIG
====================================
*/

// BootstrapConfig controls the one-shot startup resolution: the hard timeout
// that bounds the loading state, the bounded session-fetch retry, and the
// cache-preview re-check.
type BootstrapConfig struct {
	Timeout        time.Duration // hard cap on Loading=true, default 5s
	RetryAttempts  int           // session fetch attempts, default 3
	RetryBackoff   time.Duration // linear backoff unit (backoff * attempt), default 100ms
	PreviewRecheck time.Duration // preview expiry re-check, default 1s
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig defines a public type used by authstate APIs.
//
// CacheConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CacheConfig struct {
	RedisPrefix         string
	StalenessWindow     time.Duration // records older than this read as absent, default 5m
	TransientTTL        time.Duration // session-scoped entry lifetime, default 30m
	ProviderKeyPrefixes []string      // provider-owned persisted key namespaces, removed on sign-out
	PreservedKeys       []string      // non-identity preference keys restored across a full clear
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig defines a public type used by authstate APIs.
//
// PermissionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PermissionConfig struct {
	FetchTimeout time.Duration // per remote fetch, default 10s
	CacheSize    int           // deduplicated result cache entries, default 32
	CacheTTL     time.Duration // result cache lifetime, default 5m
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by authstate APIs.
//
// AccountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountConfig struct {
	DefaultRole    string // role of last resort, default "USER"
	SignedOutRoute string // navigation target after logout, default "/login"
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by authstate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authstate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Bootstrap: BootstrapConfig{
			Timeout:        5 * time.Second,
			RetryAttempts:  3,
			RetryBackoff:   100 * time.Millisecond,
			PreviewRecheck: time.Second,
		},
		Cache: CacheConfig{
			RedisPrefix:     "authstate",
			StalenessWindow: 5 * time.Minute,
			TransientTTL:    30 * time.Minute,
		},
		Permission: PermissionConfig{
			FetchTimeout: 10 * time.Second,
			CacheSize:    32,
			CacheTTL:     5 * time.Minute,
		},
		Account: AccountConfig{
			DefaultRole:    "USER",
			SignedOutRoute: "/login",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Cache.ProviderKeyPrefixes = cloneStrings(cfg.Cache.ProviderKeyPrefixes)
	out.Cache.PreservedKeys = cloneStrings(cfg.Cache.PreservedKeys)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Bootstrap.Timeout <= 0 {
		return errors.New("Bootstrap.Timeout must be positive")
	}
	if c.Bootstrap.RetryAttempts < 1 {
		return errors.New("Bootstrap.RetryAttempts must be at least 1")
	}
	if c.Bootstrap.RetryBackoff < 0 {
		return errors.New("Bootstrap.RetryBackoff must not be negative")
	}
	if c.Bootstrap.PreviewRecheck <= 0 {
		return errors.New("Bootstrap.PreviewRecheck must be positive")
	}
	if c.Cache.RedisPrefix == "" {
		return errors.New("Cache.RedisPrefix must not be empty")
	}
	if c.Cache.StalenessWindow <= 0 {
		return errors.New("Cache.StalenessWindow must be positive")
	}
	if c.Cache.TransientTTL <= 0 {
		return errors.New("Cache.TransientTTL must be positive")
	}
	if c.Permission.FetchTimeout <= 0 {
		return errors.New("Permission.FetchTimeout must be positive")
	}
	if c.Permission.CacheSize < 1 {
		return errors.New("Permission.CacheSize must be at least 1")
	}
	if c.Permission.CacheTTL <= 0 {
		return errors.New("Permission.CacheTTL must be positive")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("Account.DefaultRole must not be empty")
	}
	return nil
}
