package authstate

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the reconciliation engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is an exported constant or variable used by the reconciliation engine.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrProviderUnavailable is an exported constant or variable used by the reconciliation engine.
	ErrProviderUnavailable = errors.New("session provider unavailable")
	// ErrProviderUnsupported is an exported constant or variable used by the reconciliation engine.
	ErrProviderUnsupported = errors.New("operation not supported by session provider")
	// ErrPermissionFetchFailed is an exported constant or variable used by the reconciliation engine.
	ErrPermissionFetchFailed = errors.New("permission fetch failed")
	// ErrNoSession is an exported constant or variable used by the reconciliation engine.
	ErrNoSession = errors.New("no active session")
	// ErrEngineClosed is an exported constant or variable used by the reconciliation engine.
	ErrEngineClosed = errors.New("engine closed")
)
