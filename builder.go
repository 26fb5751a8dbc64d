package authstate

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/rlvaden/authstate/cache"
	"github.com/rlvaden/authstate/permcache"
	"github.com/rlvaden/authstate/state"
)

/*
====================================
BUILDER
====================================
*/

// Builder assembles an [Engine]. A Builder is single-use: Build may be called
// once, and the zero value is not usable — start from [New].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config          Config
	redis           redis.UniversalClient
	provider        SessionProvider
	permSource      PermissionSource
	auditSink       AuditSink
	queryCacheReset func()
	navigate        func(route string)
	built           bool
}

// New returns a [Builder] seeded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the full configuration. Zero-valued fields are NOT
// backfilled with defaults; callers modifying individual knobs should start
// from the config New seeds and change only what they need.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the persistent cache. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionProvider sets the remote identity provider. Required.
func (b *Builder) WithSessionProvider(p SessionProvider) *Builder {
	b.provider = p
	return b
}

// WithPermissionSource sets the remote permission lookup. Optional; without
// one the permission set stays empty.
func (b *Builder) WithPermissionSource(src PermissionSource) *Builder {
	b.permSource = src
	return b
}

// WithAuditSink sets the destination for audit events. Optional; defaults to
// a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithQueryCacheReset registers the host application's query-cache reset
// hook, invoked during [Engine.Logout] between the record removal and the
// transient clear.
func (b *Builder) WithQueryCacheReset(fn func()) *Builder {
	b.queryCacheReset = fn
	return b
}

// WithNavigator registers the navigation callback invoked as the final logout
// step with the configured signed-out route.
func (b *Builder) WithNavigator(fn func(route string)) *Builder {
	b.navigate = fn
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the dependencies, subscribes to
// the provider's event stream, and starts the bootstrap routine. The returned
// engine is live immediately; callers wanting the first resolved state wait
// on [Engine.Ready].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authstate: builder already used")
	}
	b.built = true

	if b.redis == nil {
		return nil, errors.New("authstate: redis client is required")
	}
	if b.provider == nil {
		return nil, errors.New("authstate: session provider is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	permSource := b.permSource
	if permSource == nil {
		permSource = emptyPermissionSource{}
	}

	e := &Engine{
		config: b.config,
		states: state.NewStore(),
		cache: cache.NewStore(
			b.redis,
			b.config.Cache.RedisPrefix,
			b.config.Cache.StalenessWindow,
			b.config.Cache.TransientTTL,
		),
		permissions: permcache.New(
			b.config.Permission.CacheSize,
			b.config.Permission.CacheTTL,
		),
		provider:        b.provider,
		permSource:      permSource,
		audit:           newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:         NewMetrics(b.config.Metrics),
		queryCacheReset: b.queryCacheReset,
		navigate:        b.navigate,
		ready:           make(chan struct{}),
	}

	e.unsubscribe = b.provider.Subscribe(e.handleEvent)
	go e.bootstrap()

	return e, nil
}

// emptyPermissionSource backs engines built without a permission source.
type emptyPermissionSource struct{}

func (emptyPermissionSource) FetchPermissions(ctx context.Context, identityID string) ([]string, error) {
	return []string{}, nil
}
