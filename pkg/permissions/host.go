package permissions

import "sync"

// Scope is the lifetime of a host handle.
type Scope int

const (
	// ScopeApplication handles live as long as the process.
	ScopeApplication Scope = iota
	// ScopeUI handles are tied to a single screen or activity and may be
	// torn down while the process keeps running.
	ScopeUI
)

func (s Scope) String() string {
	switch s {
	case ScopeApplication:
		return "application"
	case ScopeUI:
		return "ui"
	default:
		return "unknown"
	}
}

// Host is the platform handle requests are made against: it answers grant
// checks and hands out prompt sessions.
type Host interface {
	GrantOracle
	SessionFactory
	Scope() Scope
}

var (
	globalMu   sync.RWMutex
	globalHost Host
)

// Initialize configures the process-wide host used by AreGranted and Request.
//
// It panics if host is nil, if host is not application-scoped, or if a
// different host was already configured. Calling it again with the same host
// does nothing.
func Initialize(host Host) {
	if host == nil {
		panic("permissions: Initialize called with a nil host")
	}
	if scope := host.Scope(); scope != ScopeApplication {
		panic("permissions: application-scoped host expected, got " + scope.String() + " scope")
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalHost != nil && globalHost != host {
		panic("permissions: Initialize called twice with different hosts")
	}
	globalHost = host
}

// configuredHost returns the host set by Initialize and panics if there is none.
func configuredHost() Host {
	globalMu.RLock()
	host := globalHost
	globalMu.RUnlock()
	if host == nil {
		panic("permissions: host is not configured; call Initialize first")
	}
	return host
}

// ResetForTest clears the host set by Initialize. It should only be called
// from tests.
func ResetForTest() {
	globalMu.Lock()
	globalHost = nil
	globalMu.Unlock()
}
