package db

import (
	"context"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
)

type SessionInterface interface {
	// New records a session.
	//
	// Returns
	//
	//	domain.Session: as stored, with CreatedAt set.
	//
	//	error: domain.ErrSessionConflict when the workspace already has a
	//	session attached to it.
	New(ctx context.Context, s domain.Session) (domain.Session, error)

	// Get retrieves the session by its workload name.
	//
	// Returns
	//
	//	error: domain.ErrMissing when no such session exists.
	Get(ctx context.Context, name string) (domain.Session, error)

	// ByWorkspace finds the session holding a workspace, if any.
	ByWorkspace(ctx context.Context, workspace string) (domain.Session, bool, error)

	// Delete removes the session record. Deleting a session that does
	// not exist is a no-op.
	Delete(ctx context.Context, name string) error
}
