package mock

import (
	"context"
	"testing"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/manager"
)

type MockRunManager struct {
	t    *testing.T
	Impl struct {
		Start    func(ctx context.Context, runId string) (domain.Run, error)
		Stop     func(ctx context.Context, runId string) (domain.Run, error)
		Finalize func(ctx context.Context, runId string) (domain.Run, error)
		Delete   func(ctx context.Context, runId string, opts manager.DeleteOptions) error
		Restart  func(ctx context.Context, runId string) (domain.Run, error)
	}
}

var _ manager.Interface = &MockRunManager{}

func New(t *testing.T) *MockRunManager {
	return &MockRunManager{t: t}
}

func (m *MockRunManager) Start(ctx context.Context, runId string) (domain.Run, error) {
	if m.Impl.Start == nil {
		m.t.Fatal("Start is not implemented")
	}
	return m.Impl.Start(ctx, runId)
}

func (m *MockRunManager) Stop(ctx context.Context, runId string) (domain.Run, error) {
	if m.Impl.Stop == nil {
		m.t.Fatal("Stop is not implemented")
	}
	return m.Impl.Stop(ctx, runId)
}

func (m *MockRunManager) Finalize(ctx context.Context, runId string) (domain.Run, error) {
	if m.Impl.Finalize == nil {
		m.t.Fatal("Finalize is not implemented")
	}
	return m.Impl.Finalize(ctx, runId)
}

func (m *MockRunManager) Delete(ctx context.Context, runId string, opts manager.DeleteOptions) error {
	if m.Impl.Delete == nil {
		m.t.Fatal("Delete is not implemented")
	}
	return m.Impl.Delete(ctx, runId, opts)
}

func (m *MockRunManager) Restart(ctx context.Context, runId string) (domain.Run, error) {
	if m.Impl.Restart == nil {
		m.t.Fatal("Restart is not implemented")
	}
	return m.Impl.Restart(ctx, runId)
}
