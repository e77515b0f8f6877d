package domain

import (
	"fmt"
	"time"
)

// SessionKind is the closed set of interactive session types.
type SessionKind string

const (
	SessionJupyter SessionKind = "jupyter"
)

func AsSessionKind(s string) (SessionKind, error) {
	switch s {
	case string(SessionJupyter):
		return SessionJupyter, nil
	default:
		return "", fmt.Errorf("'%s' is not a session kind", s)
	}
}

// Session is an interactive workload attached to a run's workspace,
// independent of the run's batch execution.
type Session struct {
	// Deterministic workload name, derived from the owning run id.
	Name string

	RunId   string
	OwnerId string

	// Workspace the session mounts read-write.
	Workspace string

	Kind SessionKind

	// URL path under which the session is exposed.
	Path string

	CreatedAt time.Time
}
