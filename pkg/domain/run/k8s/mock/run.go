package mock

import (
	"context"
	"io"
	"testing"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s/dask"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s/driver"
)

type MockRunInterface struct {
	t    *testing.T
	Impl struct {
		SpawnDriver  func(ctx context.Context, r domain.Run) (driver.Driver, error)
		FindDriver   func(ctx context.Context, r domain.RunBody) (driver.Driver, error)
		RemoveDriver func(ctx context.Context, runId string) error

		SpawnComputeCluster  func(ctx context.Context, r domain.Run) (dask.ComputeCluster, error)
		FindComputeCluster   func(ctx context.Context, r domain.RunBody) (dask.ComputeCluster, error)
		RemoveComputeCluster func(ctx context.Context, runId string) error
	}
}

var _ k8s.Interface = &MockRunInterface{}

func New(t *testing.T) *MockRunInterface {
	return &MockRunInterface{
		t: t,
	}
}

func (m *MockRunInterface) SpawnDriver(ctx context.Context, r domain.Run) (driver.Driver, error) {
	if m.Impl.SpawnDriver == nil {
		m.t.Fatal("SpawnDriver is not implemented")
	}
	return m.Impl.SpawnDriver(ctx, r)
}

func (m *MockRunInterface) FindDriver(ctx context.Context, r domain.RunBody) (driver.Driver, error) {
	if m.Impl.FindDriver == nil {
		m.t.Fatal("FindDriver is not implemented")
	}
	return m.Impl.FindDriver(ctx, r)
}

func (m *MockRunInterface) RemoveDriver(ctx context.Context, runId string) error {
	if m.Impl.RemoveDriver == nil {
		m.t.Fatal("RemoveDriver is not implemented")
	}
	return m.Impl.RemoveDriver(ctx, runId)
}

func (m *MockRunInterface) SpawnComputeCluster(ctx context.Context, r domain.Run) (dask.ComputeCluster, error) {
	if m.Impl.SpawnComputeCluster == nil {
		m.t.Fatal("SpawnComputeCluster is not implemented")
	}
	return m.Impl.SpawnComputeCluster(ctx, r)
}

func (m *MockRunInterface) FindComputeCluster(ctx context.Context, r domain.RunBody) (dask.ComputeCluster, error) {
	if m.Impl.FindComputeCluster == nil {
		m.t.Fatal("FindComputeCluster is not implemented")
	}
	return m.Impl.FindComputeCluster(ctx, r)
}

func (m *MockRunInterface) RemoveComputeCluster(ctx context.Context, runId string) error {
	if m.Impl.RemoveComputeCluster == nil {
		m.t.Fatal("RemoveComputeCluster is not implemented")
	}
	return m.Impl.RemoveComputeCluster(ctx, runId)
}

// MockDriver is a test stand-in for driver.Driver.
type MockDriver struct {
	driver.Driver

	Impl struct {
		RunId     func() string
		JobStatus func() cluster.JobStatus
		ExitCode  func() (uint8, string, bool)
		Log       func(ctx context.Context) (io.ReadCloser, error)
		Close     func() error
	}
}

func (m *MockDriver) RunId() string {
	if m.Impl.RunId == nil {
		panic("RunId is not implemented")
	}
	return m.Impl.RunId()
}

func (m *MockDriver) JobStatus() cluster.JobStatus {
	if m.Impl.JobStatus == nil {
		panic("JobStatus is not implemented")
	}
	return m.Impl.JobStatus()
}

func (m *MockDriver) ExitCode() (uint8, string, bool) {
	if m.Impl.ExitCode == nil {
		panic("ExitCode is not implemented")
	}
	return m.Impl.ExitCode()
}

func (m *MockDriver) Log(ctx context.Context) (io.ReadCloser, error) {
	if m.Impl.Log == nil {
		panic("Log is not implemented")
	}
	return m.Impl.Log(ctx)
}

func (m *MockDriver) Close() error {
	if m.Impl.Close == nil {
		panic("Close is not implemented")
	}
	return m.Impl.Close()
}

// MockComputeCluster is a test stand-in for dask.ComputeCluster.
type MockComputeCluster struct {
	dask.ComputeCluster

	Impl struct {
		RunId            func() string
		SchedulerAddress func() string
		Close            func() error
	}
}

func (m *MockComputeCluster) RunId() string {
	if m.Impl.RunId == nil {
		panic("RunId is not implemented")
	}
	return m.Impl.RunId()
}

func (m *MockComputeCluster) SchedulerAddress() string {
	if m.Impl.SchedulerAddress == nil {
		panic("SchedulerAddress is not implemented")
	}
	return m.Impl.SchedulerAddress()
}

func (m *MockComputeCluster) Close() error {
	if m.Impl.Close == nil {
		panic("Close is not implemented")
	}
	return m.Impl.Close()
}
