package db

import (
	"context"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
)

// NewRunSpec is what a caller decides about a new run.
// Everything else (id, number, status, timestamps) is assigned here.
type NewRunSpec struct {
	OwnerId        string
	Name           string
	Engine         domain.EngineKind
	ComputeBackend domain.ComputeBackend
	Workspace      string
	Options        map[string]string
	Retention      []domain.RetentionRule
}

type RunInterface interface {
	// create a new run in "created" status.
	//
	// Returns
	//
	// - domain.Run: the created run, with its assigned id and run number.
	//
	// - error
	New(ctx context.Context, spec NewRunSpec) (domain.Run, error)

	// Retrieve a run by id.
	//
	// Returns
	//
	// - domain.Run
	//
	// - error: dberrors.Missing (wrapping domain.ErrMissing) when no such run.
	Get(ctx context.Context, runId string) (domain.Run, error)

	// find all runs of a named workflow, newest attempt first.
	Find(ctx context.Context, ownerId string, name string) ([]domain.Run, error)

	// Latest returns the run with the highest run number for owner+name.
	//
	// Returns
	//
	// - error: dberrors.Missing when the workflow has no runs.
	Latest(ctx context.Context, ownerId string, name string) (domain.Run, error)

	// update run status, checking the transition against the current
	// status under a row lock.
	//
	// Changing to the current status is a no-op success, so retried
	// requests stay idempotent.
	//
	// Timestamps are maintained here: started_at is set when a run
	// enters "running", finished_at when it enters a terminal status.
	//
	// Returns
	//
	// - error: domain.ErrInvalidState (wrapped, with from -> to) when the
	// transition is not allowed; dberrors.Missing when run is not found.
	ChangeStatus(ctx context.Context, runId string, newStatus domain.RunStatus) error

	// AcquireWorkspace moves a created or queued run to "pending",
	// guarding workspace exclusivity.
	//
	// Only one non-deleted run per workspace may be pending or running;
	// the guard is a partial unique index on the run table.
	//
	// Returns
	//
	// - error: domain.ErrWorkspaceConflict when another run holds the
	// workspace; domain.ErrInvalidState when the run is not created/queued.
	AcquireWorkspace(ctx context.Context, runId string) error

	// ReleaseWorkspace reverts a pending run to "created", undoing
	// AcquireWorkspace when provisioning fails.
	//
	// This is the only way back out of "pending" besides moving forward;
	// a run in any other status is left untouched.
	ReleaseWorkspace(ctx context.Context, runId string) error

	// ApplyJobStatus upserts a job row and recomputes the run's progress
	// counters from the job table, in one transaction.
	//
	// Terminal job rows are immutable: a late or duplicated update for a
	// finished/failed/stopped job changes nothing. Counters are always
	// recomputed by counting job rows, never incremented.
	//
	// Returns
	//
	// - domain.Progress: counters after the update.
	//
	// - error: dberrors.Missing when the run is not found.
	ApplyJobStatus(ctx context.Context, job domain.Job) (domain.Progress, error)

	// Progress reads the current counters of a run.
	Progress(ctx context.Context, runId string) (domain.Progress, error)

	// MarkUnfinishedJobsStopped stamps every non-terminal job of the run
	// as stopped and recomputes counters. Used when a run is stopped.
	MarkUnfinishedJobsStopped(ctx context.Context, runId string) error

	// NewAttempt creates the next attempt of a finished workflow:
	// a new run id, run number + 1, same owner/name/engine/backend/
	// workspace/options/retention, zeroed counters, and lineage to the
	// run it restarts.
	//
	// Returns
	//
	// - error: domain.ErrInvalidState when the source run is not terminal.
	NewAttempt(ctx context.Context, fromRunId string) (domain.Run, error)

	// AppendLogs appends captured engine output to the run record.
	AppendLogs(ctx context.Context, runId string, logs string) error

	// Logs returns the captured engine output of the run.
	Logs(ctx context.Context, runId string) (string, error)

	// WorkspaceInUse reports whether any non-deleted run other than
	// excludeRunId references the workspace.
	WorkspaceInUse(ctx context.Context, workspace string, excludeRunId string) (bool, error)

	// Delete marks the run deleted. Deleted is terminal for good:
	// nothing leaves it.
	Delete(ctx context.Context, runId string) error
}
