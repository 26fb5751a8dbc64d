package cache

import (
	"encoding/json"
	"time"

	"github.com/rlvaden/authstate/identity"
)

// IdentityRecord is the serialized snapshot of an identity plus the role it
// resolved to and the time it was written. The role is stored once; the
// engine's fallback chain reads Role, never a second field.
type IdentityRecord struct {
	Identity  identity.Identity `json:"identity"`
	Role      string            `json:"role"`
	Timestamp int64             `json:"timestamp"` // unix milliseconds
}

// PermissionRecord is the serialized permission token list plus write time.
// It lives under its own key so a permission-fetch failure never corrupts the
// identity record.
type PermissionRecord struct {
	Permissions []string `json:"permissions"`
	Timestamp   int64    `json:"timestamp"` // unix milliseconds
}

// Fresh reports whether the record was written within the staleness window.
func (r *IdentityRecord) Fresh(window time.Duration, now time.Time) bool {
	return r != nil && fresh(r.Timestamp, window, now)
}

// Fresh reports whether the record was written within the staleness window.
func (r *PermissionRecord) Fresh(window time.Duration, now time.Time) bool {
	return r != nil && fresh(r.Timestamp, window, now)
}

func fresh(tsMillis int64, window time.Duration, now time.Time) bool {
	written := time.UnixMilli(tsMillis)
	if written.After(now) {
		// Clock went backwards; do not trust the record.
		return false
	}
	return now.Sub(written) <= window
}

func encodeIdentityRecord(rec IdentityRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeIdentityRecord(data string) (*IdentityRecord, error) {
	var rec IdentityRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func encodePermissionRecord(rec PermissionRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodePermissionRecord(data string) (*PermissionRecord, error) {
	var rec PermissionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
