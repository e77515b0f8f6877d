package mock

import (
	"context"
	"errors"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	dbmock "github.com/reanahub/reana-workflow-controller/pkg/domain/internal/db/mock"
	kdb "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db"
)

type RunInterface struct {
	Impl struct {
		New                       func(ctx context.Context, spec kdb.NewRunSpec) (domain.Run, error)
		Get                       func(ctx context.Context, runId string) (domain.Run, error)
		Find                      func(ctx context.Context, ownerId string, name string) ([]domain.Run, error)
		Latest                    func(ctx context.Context, ownerId string, name string) (domain.Run, error)
		ChangeStatus              func(ctx context.Context, runId string, newStatus domain.RunStatus) error
		AcquireWorkspace          func(ctx context.Context, runId string) error
		ReleaseWorkspace          func(ctx context.Context, runId string) error
		ApplyJobStatus            func(ctx context.Context, job domain.Job) (domain.Progress, error)
		Progress                  func(ctx context.Context, runId string) (domain.Progress, error)
		MarkUnfinishedJobsStopped func(ctx context.Context, runId string) error
		NewAttempt                func(ctx context.Context, fromRunId string) (domain.Run, error)
		AppendLogs                func(ctx context.Context, runId string, logs string) error
		Logs                      func(ctx context.Context, runId string) (string, error)
		WorkspaceInUse            func(ctx context.Context, workspace string, excludeRunId string) (bool, error)
		Delete                    func(ctx context.Context, runId string) error
	}

	Calls struct {
		New              dbmock.CallLog[kdb.NewRunSpec]
		Get              dbmock.CallLog[string]
		Find             dbmock.CallLog[struct{ OwnerId, Name string }]
		Latest           dbmock.CallLog[struct{ OwnerId, Name string }]
		ChangeStatus     dbmock.CallLog[struct {
			RunId     string
			NewStatus domain.RunStatus
		}]
		AcquireWorkspace          dbmock.CallLog[string]
		ReleaseWorkspace          dbmock.CallLog[string]
		ApplyJobStatus            dbmock.CallLog[domain.Job]
		Progress                  dbmock.CallLog[string]
		MarkUnfinishedJobsStopped dbmock.CallLog[string]
		NewAttempt                dbmock.CallLog[string]
		AppendLogs                dbmock.CallLog[struct{ RunId, Logs string }]
		Logs                      dbmock.CallLog[string]
		WorkspaceInUse            dbmock.CallLog[struct{ Workspace, ExcludeRunId string }]
		Delete                    dbmock.CallLog[string]
	}
}

func NewRunInterface() *RunInterface {
	return &RunInterface{}
}

var _ kdb.RunInterface = &RunInterface{}

func (m *RunInterface) New(ctx context.Context, spec kdb.NewRunSpec) (domain.Run, error) {
	m.Calls.New = append(m.Calls.New, spec)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, spec)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) Get(ctx context.Context, runId string) (domain.Run, error) {
	m.Calls.Get = append(m.Calls.Get, runId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) Find(ctx context.Context, ownerId string, name string) ([]domain.Run, error) {
	m.Calls.Find = append(m.Calls.Find, struct{ OwnerId, Name string }{ownerId, name})
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, ownerId, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) Latest(ctx context.Context, ownerId string, name string) (domain.Run, error) {
	m.Calls.Latest = append(m.Calls.Latest, struct{ OwnerId, Name string }{ownerId, name})
	if m.Impl.Latest != nil {
		return m.Impl.Latest(ctx, ownerId, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) ChangeStatus(ctx context.Context, runId string, newStatus domain.RunStatus) error {
	m.Calls.ChangeStatus = append(m.Calls.ChangeStatus, struct {
		RunId     string
		NewStatus domain.RunStatus
	}{RunId: runId, NewStatus: newStatus})
	if m.Impl.ChangeStatus != nil {
		return m.Impl.ChangeStatus(ctx, runId, newStatus)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) AcquireWorkspace(ctx context.Context, runId string) error {
	m.Calls.AcquireWorkspace = append(m.Calls.AcquireWorkspace, runId)
	if m.Impl.AcquireWorkspace != nil {
		return m.Impl.AcquireWorkspace(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) ReleaseWorkspace(ctx context.Context, runId string) error {
	m.Calls.ReleaseWorkspace = append(m.Calls.ReleaseWorkspace, runId)
	if m.Impl.ReleaseWorkspace != nil {
		return m.Impl.ReleaseWorkspace(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) ApplyJobStatus(ctx context.Context, job domain.Job) (domain.Progress, error) {
	m.Calls.ApplyJobStatus = append(m.Calls.ApplyJobStatus, job)
	if m.Impl.ApplyJobStatus != nil {
		return m.Impl.ApplyJobStatus(ctx, job)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) Progress(ctx context.Context, runId string) (domain.Progress, error) {
	m.Calls.Progress = append(m.Calls.Progress, runId)
	if m.Impl.Progress != nil {
		return m.Impl.Progress(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) MarkUnfinishedJobsStopped(ctx context.Context, runId string) error {
	m.Calls.MarkUnfinishedJobsStopped = append(m.Calls.MarkUnfinishedJobsStopped, runId)
	if m.Impl.MarkUnfinishedJobsStopped != nil {
		return m.Impl.MarkUnfinishedJobsStopped(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) NewAttempt(ctx context.Context, fromRunId string) (domain.Run, error) {
	m.Calls.NewAttempt = append(m.Calls.NewAttempt, fromRunId)
	if m.Impl.NewAttempt != nil {
		return m.Impl.NewAttempt(ctx, fromRunId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) AppendLogs(ctx context.Context, runId string, logs string) error {
	m.Calls.AppendLogs = append(m.Calls.AppendLogs, struct{ RunId, Logs string }{runId, logs})
	if m.Impl.AppendLogs != nil {
		return m.Impl.AppendLogs(ctx, runId, logs)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) Logs(ctx context.Context, runId string) (string, error) {
	m.Calls.Logs = append(m.Calls.Logs, runId)
	if m.Impl.Logs != nil {
		return m.Impl.Logs(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) WorkspaceInUse(ctx context.Context, workspace string, excludeRunId string) (bool, error) {
	m.Calls.WorkspaceInUse = append(m.Calls.WorkspaceInUse, struct{ Workspace, ExcludeRunId string }{workspace, excludeRunId})
	if m.Impl.WorkspaceInUse != nil {
		return m.Impl.WorkspaceInUse(ctx, workspace, excludeRunId)
	}
	panic(errors.New("it should not be called"))
}

func (m *RunInterface) Delete(ctx context.Context, runId string) error {
	m.Calls.Delete = append(m.Calls.Delete, runId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, runId)
	}
	panic(errors.New("it should not be called"))
}
