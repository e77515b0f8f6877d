package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/errors/k8serrors"
	rundb "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db"
	runk8s "github.com/reanahub/reana-workflow-controller/pkg/domain/run/k8s"
	sessionmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/session/manager"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/workspace"
	workspacedb "github.com/reanahub/reana-workflow-controller/pkg/domain/workspace/db"
)

// option key under which a provisioned Dask scheduler address is handed
// to the engine.
const optionDaskScheduler = "dask_scheduler_address"

// DeleteOptions tune what Delete takes down along with the run record.
type DeleteOptions struct {
	// Remove the workspace from disk, if no other non-deleted run
	// references it.
	Workspace bool

	// Delete every run of the same workflow (owner + name), not just
	// the addressed one.
	AllRuns bool
}

// Interface drives the run lifecycle against the store and the cluster.
//
// Methods return the run as stored after the operation.
type Interface interface {
	// Start admits a run to the cluster: quota booking, workspace
	// acquisition (created|queued -> pending), then provisioning of the
	// compute cluster (when the run asks for one) and the driver job.
	//
	// Starting a run that is already pending or running returns its
	// current state; retried requests converge instead of erroring.
	//
	// Returns
	//
	//	error: domain.ErrQuotaExceeded before anything is touched;
	//	domain.ErrWorkspaceConflict / domain.ErrInvalidState from the
	//	workspace acquisition; domain.ErrProvisioning when the cluster
	//	rejects the resources, after best-effort compensation put the
	//	run back to "created".
	Start(ctx context.Context, runId string) (domain.Run, error)

	// Stop aborts an active run: engine logs are captured into the run
	// record first, then the driver and compute cluster are deleted,
	// unfinished jobs are marked stopped and the run goes to "stopped".
	//
	// Stopping a stopped run is a no-op success.
	Stop(ctx context.Context, runId string) (domain.Run, error)

	// Delete tears the run down (any status), cascades to its sessions
	// and marks the record deleted. See DeleteOptions for the scope.
	//
	// The workspace is removed from disk only when opts.Workspace is
	// set AND no other non-deleted run references it; the quota booking
	// is released only when the workspace is actually removed.
	Delete(ctx context.Context, runId string, opts DeleteOptions) error

	// Finalize settles a running run whose jobs all reached a terminal
	// status: engine logs are captured, driver and compute cluster are
	// released and the run goes to "finished", or "failed" when any job
	// failed.
	//
	// A run that is not running, or whose jobs are not all done yet, is
	// returned unchanged; racing a stop or delete is silent.
	Finalize(ctx context.Context, runId string) (domain.Run, error)

	// Restart creates and starts the next attempt of a workflow.
	//
	// The latest attempt must be terminal and its driver gone from the
	// cluster; a driver still being torn down is reported as
	// domain.ErrWorkspaceConflict. Retention rules are applied to the
	// workspace before the new attempt starts.
	Restart(ctx context.Context, runId string) (domain.Run, error)
}

type manager struct {
	db       rundb.RunInterface
	cluster  runk8s.Interface
	acct     workspacedb.AccountantInterface
	sessions sessionmanager.Interface

	// injectable for tests; defaults to the real filesystem walk.
	diskUsage func(root string) (int64, error)
	retention func(root string, rules []domain.RetentionRule, now time.Time) (int64, error)
	removeAll func(root string) error
}

var _ Interface = &manager{}

func New(
	db rundb.RunInterface,
	cluster runk8s.Interface,
	acct workspacedb.AccountantInterface,
	sessions sessionmanager.Interface,
) Interface {
	return &manager{
		db:       db,
		cluster:  cluster,
		acct:     acct,
		sessions: sessions,

		diskUsage: workspace.DiskUsage,
		retention: workspace.Apply,
		removeAll: workspace.Remove,
	}
}

func (m *manager) Start(ctx context.Context, runId string) (domain.Run, error) {
	r, err := m.db.Get(ctx, runId)
	if err != nil {
		return domain.Run{}, err
	}

	// a run already admitted: report its state, do not provision twice.
	// The driver's deterministic name makes the lookup cheap.
	if r.Status == domain.StatusPending || r.Status == domain.StatusRunning {
		if _, err := m.cluster.FindDriver(ctx, r.RunBody); err != nil && !k8serrors.AsMissingError(err) {
			return domain.Run{}, err
		}
		return r, nil
	}

	// quota first: nothing has been touched yet when this fails.
	// A workspace not materialized yet walks to zero bytes.
	usage, err := m.diskUsage(r.Workspace)
	if err != nil {
		return domain.Run{}, err
	}
	if err := m.acct.Reserve(ctx, r.OwnerId, r.Workspace, usage); err != nil {
		return domain.Run{}, err
	}

	if err := m.db.AcquireWorkspace(ctx, r.Id); err != nil {
		return domain.Run{}, err
	}

	if err := m.provision(ctx, r); err != nil {
		m.compensate(ctx, r)
		return domain.Run{}, fmt.Errorf("%w: run %s: %s", domain.ErrProvisioning, r.Id, err)
	}

	return m.db.Get(ctx, r.Id)
}

func (m *manager) provision(ctx context.Context, r domain.Run) error {
	if r.ComputeBackend == domain.ComputeDask {
		cc, err := m.cluster.SpawnComputeCluster(ctx, r)
		if err != nil {
			if !k8serrors.AsConflict(err) {
				return err
			}
			// an earlier start of this run got here first; adopt the
			// cluster it created instead of failing the retry.
			if cc, err = m.cluster.FindComputeCluster(ctx, r.RunBody); err != nil {
				return err
			}
		}

		// hand the scheduler address to the engine with the rest of
		// the operational options.
		opts := make(map[string]string, len(r.Options)+1)
		for k, v := range r.Options {
			opts[k] = v
		}
		opts[optionDaskScheduler] = cc.SchedulerAddress()
		r.Options = opts
	}

	if _, err := m.cluster.SpawnDriver(ctx, r); err != nil && !k8serrors.AsConflict(err) {
		return err
	}
	return nil
}

// compensate reclaims whatever provisioning left behind and reverts the
// run to "created". Best effort: the run being startable again matters
// more than reporting cleanup failures.
func (m *manager) compensate(ctx context.Context, r domain.Run) {
	m.cluster.RemoveDriver(ctx, r.Id)
	if r.ComputeBackend == domain.ComputeDask {
		m.cluster.RemoveComputeCluster(ctx, r.Id)
	}
	m.db.ReleaseWorkspace(ctx, r.Id)
	m.acct.Release(ctx, r.Workspace)
}

func (m *manager) Stop(ctx context.Context, runId string) (domain.Run, error) {
	r, err := m.db.Get(ctx, runId)
	if err != nil {
		return domain.Run{}, err
	}

	if r.Status == domain.StatusStopped {
		return r, nil
	}
	if !r.Status.CanTransitTo(domain.StatusStopped) {
		return domain.Run{}, domain.NewErrInvalidState(r.Status, domain.StatusStopped)
	}

	// logs are gone with the pod; capture them before any teardown.
	m.captureLogs(ctx, r)

	if err := m.cluster.RemoveDriver(ctx, r.Id); err != nil {
		return domain.Run{}, err
	}
	if r.ComputeBackend == domain.ComputeDask {
		if err := m.cluster.RemoveComputeCluster(ctx, r.Id); err != nil {
			return domain.Run{}, err
		}
	}

	if err := m.db.MarkUnfinishedJobsStopped(ctx, r.Id); err != nil {
		return domain.Run{}, err
	}
	if err := m.db.ChangeStatus(ctx, r.Id, domain.StatusStopped); err != nil {
		return domain.Run{}, err
	}

	return m.db.Get(ctx, r.Id)
}

// captureLogs appends whatever the engine container has written so far.
// Failing to read logs never fails the surrounding operation.
func (m *manager) captureLogs(ctx context.Context, r domain.Run) {
	d, err := m.cluster.FindDriver(ctx, r.RunBody)
	if err != nil {
		return
	}
	stream, err := d.Log(ctx)
	if err != nil {
		return
	}
	defer stream.Close()

	logs, err := io.ReadAll(stream)
	if err != nil || len(logs) == 0 {
		return
	}
	m.db.AppendLogs(ctx, r.Id, string(logs))
}

func (m *manager) Finalize(ctx context.Context, runId string) (domain.Run, error) {
	r, err := m.db.Get(ctx, runId)
	if err != nil {
		return domain.Run{}, err
	}
	if r.Status != domain.StatusRunning || !r.Progress.Complete() {
		return r, nil
	}

	m.captureLogs(ctx, r)

	if err := m.cluster.RemoveDriver(ctx, r.Id); err != nil {
		return domain.Run{}, err
	}
	if r.ComputeBackend == domain.ComputeDask {
		if err := m.cluster.RemoveComputeCluster(ctx, r.Id); err != nil {
			return domain.Run{}, err
		}
	}

	final := domain.StatusFinished
	if 0 < r.Progress.Failed {
		final = domain.StatusFailed
	}
	if err := m.db.ChangeStatus(ctx, r.Id, final); err != nil {
		// a stop or delete won the race; their outcome stands.
		if !errors.Is(err, domain.ErrInvalidState) {
			return domain.Run{}, err
		}
	}

	return m.db.Get(ctx, r.Id)
}

func (m *manager) Delete(ctx context.Context, runId string, opts DeleteOptions) error {
	r, err := m.db.Get(ctx, runId)
	if err != nil {
		return err
	}

	targets := []domain.Run{r}
	if opts.AllRuns {
		if targets, err = m.db.Find(ctx, r.OwnerId, r.Name); err != nil {
			return err
		}
	}

	for _, target := range targets {
		if target.Status == domain.StatusDeleted {
			continue
		}
		if target.Status.Active() {
			m.captureLogs(ctx, target)
		}

		if err := m.cluster.RemoveDriver(ctx, target.Id); err != nil {
			return err
		}
		if target.ComputeBackend == domain.ComputeDask {
			if err := m.cluster.RemoveComputeCluster(ctx, target.Id); err != nil {
				return err
			}
		}
		// the session is keyed by workspace, not by run: after a restart
		// it is named after whichever attempt created it.
		if err := m.sessions.DeleteForWorkspace(ctx, target.Workspace); err != nil {
			return err
		}
		if err := m.db.Delete(ctx, target.Id); err != nil {
			return err
		}
	}

	if !opts.Workspace {
		return nil
	}
	inUse, err := m.db.WorkspaceInUse(ctx, r.Workspace, "")
	if err != nil {
		return err
	}
	if inUse {
		return nil
	}
	if err := m.removeAll(r.Workspace); err != nil {
		return err
	}
	// booking is released only now, when the bytes are actually freed.
	return m.acct.Release(ctx, r.Workspace)
}

func (m *manager) Restart(ctx context.Context, runId string) (domain.Run, error) {
	r, err := m.db.Get(ctx, runId)
	if err != nil {
		return domain.Run{}, err
	}

	latest, err := m.db.Latest(ctx, r.OwnerId, r.Name)
	if err != nil {
		return domain.Run{}, err
	}
	if !latest.Status.Terminal() {
		return domain.Run{}, domain.NewErrInvalidState(latest.Status, domain.StatusCreated)
	}

	// teardown-complete barrier: the previous driver must be gone, or
	// the new attempt would collide with it on the deterministic names.
	if _, err := m.cluster.FindDriver(ctx, latest.RunBody); err == nil {
		return domain.Run{}, fmt.Errorf(
			"%w: driver of run %s is still being torn down",
			domain.ErrWorkspaceConflict, latest.Id,
		)
	} else if !k8serrors.AsMissingError(err) {
		return domain.Run{}, err
	}

	if len(latest.Retention) > 0 {
		if _, err := m.retention(latest.Workspace, latest.Retention, time.Now()); err != nil {
			return domain.Run{}, err
		}
	}

	next, err := m.db.NewAttempt(ctx, latest.Id)
	if err != nil {
		return domain.Run{}, err
	}
	return m.Start(ctx, next.Id)
}
