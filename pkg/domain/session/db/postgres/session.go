package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	kpool "github.com/reanahub/reana-workflow-controller/pkg/conn/db/postgres/pool"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	kpgerr "github.com/reanahub/reana-workflow-controller/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/reanahub/reana-workflow-controller/pkg/domain/session/db"
)

// name of the unique constraint keeping one session per workspace.
const sessionWorkspaceConstraint = "session_workspace_key"

type sessionPG struct {
	pool kpool.Pool
}

var _ kdb.SessionInterface = &sessionPG{}

func New(pool kpool.Pool) kdb.SessionInterface {
	return &sessionPG{pool: pool}
}

func (m *sessionPG) New(ctx context.Context, s domain.Session) (domain.Session, error) {
	if err := m.pool.QueryRow(
		ctx,
		`
		insert into "session" ("name", "run_id", "owner_id", "workspace", "kind", "path")
		values ($1, $2, $3, $4, $5, $6)
		returning "created_at"
		`,
		s.Name, s.RunId, s.OwnerId, s.Workspace, string(s.Kind), s.Path,
	).Scan(&s.CreatedAt); err != nil {
		if kpgerr.IsUniqueViolation(err, sessionWorkspaceConstraint) {
			return domain.Session{}, fmt.Errorf(
				"%w: workspace %s", domain.ErrSessionConflict, s.Workspace,
			)
		}
		return domain.Session{}, err
	}
	return s, nil
}

func (m *sessionPG) Get(ctx context.Context, name string) (domain.Session, error) {
	s := domain.Session{}
	var kind string
	if err := m.pool.QueryRow(
		ctx,
		`
		select "name", "run_id", "owner_id", "workspace", "kind", "path", "created_at"
		from "session" where "name" = $1
		`,
		name,
	).Scan(
		&s.Name, &s.RunId, &s.OwnerId, &s.Workspace, &kind, &s.Path, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, kpgerr.Missing{Table: "session", Identity: name}
		}
		return domain.Session{}, err
	}
	s.Kind = domain.SessionKind(kind)
	return s, nil
}

func (m *sessionPG) ByWorkspace(ctx context.Context, workspace string) (domain.Session, bool, error) {
	s := domain.Session{}
	var kind string
	if err := m.pool.QueryRow(
		ctx,
		`
		select "name", "run_id", "owner_id", "workspace", "kind", "path", "created_at"
		from "session" where "workspace" = $1
		`,
		workspace,
	).Scan(
		&s.Name, &s.RunId, &s.OwnerId, &s.Workspace, &kind, &s.Path, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	s.Kind = domain.SessionKind(kind)
	return s, true, nil
}

func (m *sessionPG) Delete(ctx context.Context, name string) error {
	_, err := m.pool.Exec(
		ctx, `delete from "session" where "name" = $1`, name,
	)
	return err
}
