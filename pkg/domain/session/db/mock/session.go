package mock

import (
	"context"
	"errors"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	dbmock "github.com/reanahub/reana-workflow-controller/pkg/domain/internal/db/mock"
	kdb "github.com/reanahub/reana-workflow-controller/pkg/domain/session/db"
)

type SessionInterface struct {
	Impl struct {
		New         func(ctx context.Context, s domain.Session) (domain.Session, error)
		Get         func(ctx context.Context, name string) (domain.Session, error)
		ByWorkspace func(ctx context.Context, workspace string) (domain.Session, bool, error)
		Delete      func(ctx context.Context, name string) error
	}

	Calls struct {
		New         dbmock.CallLog[domain.Session]
		Get         dbmock.CallLog[string]
		ByWorkspace dbmock.CallLog[string]
		Delete      dbmock.CallLog[string]
	}
}

func NewSessionInterface() *SessionInterface {
	return &SessionInterface{}
}

var _ kdb.SessionInterface = &SessionInterface{}

func (m *SessionInterface) New(ctx context.Context, s domain.Session) (domain.Session, error) {
	m.Calls.New = append(m.Calls.New, s)
	if m.Impl.New != nil {
		return m.Impl.New(ctx, s)
	}
	panic(errors.New("it should not be called"))
}

func (m *SessionInterface) Get(ctx context.Context, name string) (domain.Session, error) {
	m.Calls.Get = append(m.Calls.Get, name)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, name)
	}
	panic(errors.New("it should not be called"))
}

func (m *SessionInterface) ByWorkspace(ctx context.Context, workspace string) (domain.Session, bool, error) {
	m.Calls.ByWorkspace = append(m.Calls.ByWorkspace, workspace)
	if m.Impl.ByWorkspace != nil {
		return m.Impl.ByWorkspace(ctx, workspace)
	}
	panic(errors.New("it should not be called"))
}

func (m *SessionInterface) Delete(ctx context.Context, name string) error {
	m.Calls.Delete = append(m.Calls.Delete, name)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, name)
	}
	panic(errors.New("it should not be called"))
}
