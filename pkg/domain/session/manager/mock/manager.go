package mock

import (
	"context"
	"testing"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/session/manager"
)

type MockSessionManager struct {
	t    *testing.T
	Impl struct {
		Create             func(ctx context.Context, r domain.Run, kind domain.SessionKind) (domain.Session, string, error)
		Get                func(ctx context.Context, runId string) (domain.Session, cluster.PodPhase, error)
		Delete             func(ctx context.Context, runId string) error
		DeleteForWorkspace func(ctx context.Context, workspace string) error
	}
}

var _ manager.Interface = &MockSessionManager{}

func New(t *testing.T) *MockSessionManager {
	return &MockSessionManager{t: t}
}

func (m *MockSessionManager) Create(ctx context.Context, r domain.Run, kind domain.SessionKind) (domain.Session, string, error) {
	if m.Impl.Create == nil {
		m.t.Fatal("Create is not implemented")
	}
	return m.Impl.Create(ctx, r, kind)
}

func (m *MockSessionManager) Get(ctx context.Context, runId string) (domain.Session, cluster.PodPhase, error) {
	if m.Impl.Get == nil {
		m.t.Fatal("Get is not implemented")
	}
	return m.Impl.Get(ctx, runId)
}

func (m *MockSessionManager) Delete(ctx context.Context, runId string) error {
	if m.Impl.Delete == nil {
		m.t.Fatal("Delete is not implemented")
	}
	return m.Impl.Delete(ctx, runId)
}

func (m *MockSessionManager) DeleteForWorkspace(ctx context.Context, workspace string) error {
	if m.Impl.DeleteForWorkspace == nil {
		m.t.Fatal("DeleteForWorkspace is not implemented")
	}
	return m.Impl.DeleteForWorkspace(ctx, workspace)
}
