package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps every backend failure so callers can classify
// cache errors with errors.Is and apply the swallow-and-log policy uniformly.
var ErrCacheUnavailable = errors.New("cache backend unavailable")

const (
	identityKeySuffix    = ":identity"
	permissionsKeySuffix = ":permissions"
	transientKeySegment  = ":t:"
)

// Store is the Redis-backed persistent cache surface: typed identity and
// permission records plus a generic get/set/remove/clear layer with prefix
// enumeration for provider-owned keys.
//
// All methods are safe for concurrent use.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	staleness time.Duration
	transient time.Duration
}

// NewStore creates a cache [Store] backed by the given Redis client. prefix
// sets the key namespace, staleness the window after which records read as
// absent, transientTTL the lifetime of session-scoped entries.
func NewStore(client redis.UniversalClient, prefix string, staleness, transientTTL time.Duration) *Store {
	return &Store{
		redis:     client,
		prefix:    prefix,
		staleness: staleness,
		transient: transientTTL,
	}
}

func (s *Store) identityKey() string {
	return s.prefix + identityKeySuffix
}

func (s *Store) permissionsKey() string {
	return s.prefix + permissionsKeySuffix
}

func (s *Store) transientKey(key string) string {
	return s.prefix + transientKeySegment + key
}

// Get returns the raw value under key, or ok=false when absent. A failed read
// reports the error but callers under the best-effort policy treat it as
// absence.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return val, true, nil
}

// Set writes a raw value under key with the given TTL (0 = no expiry).
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Remove deletes the given keys. Absent keys are not an error.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Keys enumerates all keys under the given prefix via SCAN.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := prefix + "*"
	var (
		cursor uint64
		out    []string
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

// RemoveByPrefix deletes every key under the given prefix and returns how
// many were removed.
func (s *Store) RemoveByPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.Remove(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear removes every key in the store's namespace, including records,
// transient entries, and any preference keys written under the prefix.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.RemoveByPrefix(ctx, s.prefix+":")
	return err
}

// SaveIdentity persists the identity record, stamping it with now.
func (s *Store) SaveIdentity(ctx context.Context, rec IdentityRecord) error {
	rec.Timestamp = time.Now().UnixMilli()
	data, err := encodeIdentityRecord(rec)
	if err != nil {
		return err
	}
	return s.Set(ctx, s.identityKey(), data, 0)
}

// LoadIdentity returns the cached identity record, or nil when it is absent,
// unreadable, corrupt, or past the staleness window. Only backend failures
// produce an error; a stale or corrupt record is plain absence.
func (s *Store) LoadIdentity(ctx context.Context) (*IdentityRecord, error) {
	data, ok, err := s.Get(ctx, s.identityKey())
	if err != nil || !ok {
		return nil, err
	}

	rec, decErr := decodeIdentityRecord(data)
	if decErr != nil {
		return nil, nil
	}
	if !rec.Fresh(s.staleness, time.Now()) {
		return nil, nil
	}
	return rec, nil
}

// RemoveIdentity deletes the identity record.
func (s *Store) RemoveIdentity(ctx context.Context) error {
	return s.Remove(ctx, s.identityKey())
}

// SavePermissions persists the permission record, stamping it with now.
func (s *Store) SavePermissions(ctx context.Context, rec PermissionRecord) error {
	rec.Timestamp = time.Now().UnixMilli()
	data, err := encodePermissionRecord(rec)
	if err != nil {
		return err
	}
	return s.Set(ctx, s.permissionsKey(), data, 0)
}

// LoadPermissions returns the cached permission record under the same
// absence rules as [Store.LoadIdentity].
func (s *Store) LoadPermissions(ctx context.Context) (*PermissionRecord, error) {
	data, ok, err := s.Get(ctx, s.permissionsKey())
	if err != nil || !ok {
		return nil, err
	}

	rec, decErr := decodePermissionRecord(data)
	if decErr != nil {
		return nil, nil
	}
	if !rec.Fresh(s.staleness, time.Now()) {
		return nil, nil
	}
	return rec, nil
}

// RemovePermissions deletes the permission record.
func (s *Store) RemovePermissions(ctx context.Context) error {
	return s.Remove(ctx, s.permissionsKey())
}

// SetTransient writes a session-scoped entry that expires with the
// configured transient TTL.
func (s *Store) SetTransient(ctx context.Context, key, value string) error {
	return s.Set(ctx, s.transientKey(key), value, s.transient)
}

// GetTransient reads a session-scoped entry.
func (s *Store) GetTransient(ctx context.Context, key string) (string, bool, error) {
	return s.Get(ctx, s.transientKey(key))
}

// ClearTransient removes every session-scoped entry.
func (s *Store) ClearTransient(ctx context.Context) error {
	_, err := s.RemoveByPrefix(ctx, s.prefix+transientKeySegment)
	return err
}

// Ping returns a point-in-time backend availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return time.Since(start), nil
}
