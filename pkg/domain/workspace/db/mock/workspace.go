package mock

import (
	"context"
	"errors"

	dbmock "github.com/reanahub/reana-workflow-controller/pkg/domain/internal/db/mock"
	kdb "github.com/reanahub/reana-workflow-controller/pkg/domain/workspace/db"
)

type AccountantInterface struct {
	Impl struct {
		Reserve func(ctx context.Context, ownerId string, workspace string, bytes int64) error
		Release func(ctx context.Context, workspace string) error
		Usage   func(ctx context.Context, ownerId string) (int64, int64, error)
	}

	Calls struct {
		Reserve dbmock.CallLog[struct {
			OwnerId   string
			Workspace string
			Bytes     int64
		}]
		Release dbmock.CallLog[string]
		Usage   dbmock.CallLog[string]
	}
}

func NewAccountantInterface() *AccountantInterface {
	return &AccountantInterface{}
}

var _ kdb.AccountantInterface = &AccountantInterface{}

func (m *AccountantInterface) Reserve(ctx context.Context, ownerId string, workspace string, bytes int64) error {
	m.Calls.Reserve = append(m.Calls.Reserve, struct {
		OwnerId   string
		Workspace string
		Bytes     int64
	}{ownerId, workspace, bytes})
	if m.Impl.Reserve != nil {
		return m.Impl.Reserve(ctx, ownerId, workspace, bytes)
	}
	panic(errors.New("it should not be called"))
}

func (m *AccountantInterface) Release(ctx context.Context, workspace string) error {
	m.Calls.Release = append(m.Calls.Release, workspace)
	if m.Impl.Release != nil {
		return m.Impl.Release(ctx, workspace)
	}
	panic(errors.New("it should not be called"))
}

func (m *AccountantInterface) Usage(ctx context.Context, ownerId string) (int64, int64, error) {
	m.Calls.Usage = append(m.Calls.Usage, ownerId)
	if m.Impl.Usage != nil {
		return m.Impl.Usage(ctx, ownerId)
	}
	panic(errors.New("it should not be called"))
}
