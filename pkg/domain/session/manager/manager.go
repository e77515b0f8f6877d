package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	cconf "github.com/reanahub/reana-workflow-controller/pkg/configs/controller"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/errors/k8serrors"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	sessiondb "github.com/reanahub/reana-workflow-controller/pkg/domain/session/db"
	sessionk8s "github.com/reanahub/reana-workflow-controller/pkg/domain/session/k8s"
)

// how long a session access token stays valid.
const tokenLifetime = 7 * 24 * time.Hour

// Interface manages interactive sessions attached to run workspaces.
//
// A workspace carries at most one session; the run it was created from
// only names it, so a session outlives run restarts.
type Interface interface {
	// Create materializes a session on the run's workspace.
	//
	// Returns
	//
	//	domain.Session: the stored record.
	//
	//	string: access URL, the ingress path with a signed token attached.
	//
	//	error: domain.ErrSessionConflict when the workspace already has
	//	one. domain.ErrProvisioning when the cluster rejects it; nothing
	//	is left behind in that case.
	Create(ctx context.Context, r domain.Run, kind domain.SessionKind) (domain.Session, string, error)

	// Get retrieves the session of a run, with the pod phase as found
	// in the cluster.
	//
	// Returns
	//
	//	error: domain.ErrMissing when the run has no session.
	Get(ctx context.Context, runId string) (domain.Session, cluster.PodPhase, error)

	// Delete tears a run's session down and removes its record.
	//
	// A session that does not exist is a no-op.
	Delete(ctx context.Context, runId string) error

	// DeleteForWorkspace tears down the session holding the workspace,
	// whichever run it was created from. Run deletion cascades here: a
	// session survives restarts, so it may be named after a sibling
	// attempt rather than the run being deleted.
	//
	// A workspace without a session is a no-op.
	DeleteForWorkspace(ctx context.Context, workspace string) error
}

type manager struct {
	db      sessiondb.SessionInterface
	cluster cluster.Cluster
	conf    *cconf.WorkflowClusterConfig
	signKey []byte
}

func New(
	db sessiondb.SessionInterface,
	clus cluster.Cluster,
	conf *cconf.WorkflowClusterConfig,
	signKey []byte,
) Interface {
	return &manager{db: db, cluster: clus, conf: conf, signKey: signKey}
}

func (m *manager) Create(ctx context.Context, r domain.Run, kind domain.SessionKind) (domain.Session, string, error) {
	s := domain.Session{
		Name:      sessionk8s.Name(r.Id),
		RunId:     r.Id,
		OwnerId:   r.OwnerId,
		Workspace: r.Workspace,
		Kind:      kind,
		Path:      "/sessions/" + uuid.NewString(),
	}

	// the record goes in first: its unique constraint is the conflict
	// guard, and a session without resources is recoverable by Delete.
	s, err := m.db.New(ctx, s)
	if err != nil {
		return domain.Session{}, "", err
	}

	b, err := sessionk8s.New(s, m.conf)
	if err != nil {
		m.compensate(ctx, s)
		return domain.Session{}, "", err
	}
	if _, err := sessionk8s.Spawn(ctx, m.cluster, m.conf, b); err != nil {
		m.compensate(ctx, s)
		return domain.Session{}, "", fmt.Errorf("%w: session %s: %s", domain.ErrProvisioning, s.Name, err)
	}

	token, err := m.sign(s)
	if err != nil {
		return domain.Session{}, "", err
	}
	url := fmt.Sprintf("https://%s%s?token=%s", m.conf.Session().IngressHost(), s.Path, token)
	return s, url, nil
}

func (m *manager) compensate(ctx context.Context, s domain.Session) {
	if found, err := sessionk8s.Find(ctx, m.cluster, s.Name); err == nil {
		found.Close()
	}
	m.db.Delete(ctx, s.Name)
}

func (m *manager) sign(s domain.Session) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  s.OwnerId,
		"run":  s.RunId,
		"path": s.Path,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenLifetime).Unix(),
	})
	return token.SignedString(m.signKey)
}

func (m *manager) Get(ctx context.Context, runId string) (domain.Session, cluster.PodPhase, error) {
	s, err := m.db.Get(ctx, sessionk8s.Name(runId))
	if err != nil {
		return domain.Session{}, cluster.PodUnknown, err
	}

	found, err := sessionk8s.Find(ctx, m.cluster, s.Name)
	if err != nil {
		if k8serrors.AsMissingError(err) {
			// record exists but resources are gone; report as unknown
			// rather than failing the lookup.
			return s, cluster.PodUnknown, nil
		}
		return s, cluster.PodUnknown, err
	}
	return s, found.Phase(), nil
}

func (m *manager) Delete(ctx context.Context, runId string) error {
	return m.delete(ctx, sessionk8s.Name(runId))
}

func (m *manager) DeleteForWorkspace(ctx context.Context, workspace string) error {
	s, found, err := m.db.ByWorkspace(ctx, workspace)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return m.delete(ctx, s.Name)
}

func (m *manager) delete(ctx context.Context, name string) error {
	found, err := sessionk8s.Find(ctx, m.cluster, name)
	switch {
	case err == nil:
		if err := found.Close(); err != nil {
			return err
		}
	case k8serrors.AsMissingError(err):
		// already gone.
	default:
		return err
	}

	return m.db.Delete(ctx, name)
}
