package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/reanahub/reana-workflow-controller/pkg/utils/cmp"
)

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	// The run has been submitted but not started.
	StatusCreated RunStatus = "created"

	// A start was requested but the run waits for capacity.
	// Queue admission is decided upstream, by the submission service
	// writing this status directly; this process never produces it,
	// it only moves queued runs onward when they start.
	StatusQueued RunStatus = "queued"

	// The driver pod has been submitted to the cluster.
	StatusPending RunStatus = "pending"

	// The driver pod has been observed running.
	StatusRunning RunStatus = "running"

	// All jobs finished and none failed.
	StatusFinished RunStatus = "finished"

	// All jobs finished and at least one failed.
	StatusFailed RunStatus = "failed"

	// The run was stopped by the user before completion.
	StatusStopped RunStatus = "stopped"

	// The run record was deleted. Cluster resources are reclaimed.
	StatusDeleted RunStatus = "deleted"
)

func (s RunStatus) String() string {
	return string(s)
}

func AsRunStatus(s string) (RunStatus, error) {
	switch s {
	case string(StatusCreated):
		return StatusCreated, nil
	case string(StatusQueued):
		return StatusQueued, nil
	case string(StatusPending):
		return StatusPending, nil
	case string(StatusRunning):
		return StatusRunning, nil
	case string(StatusFinished):
		return StatusFinished, nil
	case string(StatusFailed):
		return StatusFailed, nil
	case string(StatusStopped):
		return StatusStopped, nil
	case string(StatusDeleted):
		return StatusDeleted, nil
	default:
		return "", fmt.Errorf("'%s' is not a run status", s)
	}
}

// Active means the run may still make progress on the cluster.
func (s RunStatus) Active() bool {
	switch s {
	case StatusCreated, StatusQueued, StatusPending, StatusRunning:
		return true
	default:
		return false
	}
}

// Terminal statuses are never left, except for deletion.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusStopped, StatusDeleted:
		return true
	default:
		return false
	}
}

// CanTransitTo reports whether from -> to is an edge of the run lifecycle:
//
//	created -> queued -> pending -> running -> {finished | failed}
//
// Any active status may be stopped; any status may be deleted.
// Nothing leaves deleted.
func (s RunStatus) CanTransitTo(to RunStatus) bool {
	if s == StatusDeleted {
		return false
	}
	switch to {
	case StatusDeleted:
		return true
	case StatusStopped:
		return s.Active()
	case StatusQueued:
		return s == StatusCreated
	case StatusPending:
		return s == StatusCreated || s == StatusQueued
	case StatusRunning:
		return s == StatusPending
	case StatusFinished, StatusFailed:
		return s == StatusRunning
	default:
		return false
	}
}

var (
	// The requested operation is not legal from the run's current status.
	ErrInvalidState = errors.New("cannot change run status")

	// Another active run holds exclusive write access to the workspace.
	ErrWorkspaceConflict = errors.New("workspace is held by another active run")

	// The owner's disk or compute quota does not admit the operation.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// Cluster resource creation failed. Partially created resources have
	// been reclaimed best-effort and the run is left in its pre-start status.
	ErrProvisioning = errors.New("failed to provision cluster resources")

	// The referenced run, job or session does not exist.
	ErrMissing = errors.New("not found")

	// A session is already open on the workspace.
	ErrSessionConflict = errors.New("workspace already has an open session")
)

func NewErrInvalidState(from, to RunStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
}

// Progress counts the jobs of one run per status bucket.
//
// Counters are always recomputed from the job records of the run,
// never incremented, so that redelivered status messages cannot
// make them drift.
type Progress struct {
	Total    int
	Running  int
	Finished int
	Failed   int
	Stopped  int
}

// Complete reports whether every known job reached a terminal status.
// A run with no jobs reported yet is not complete.
func (p Progress) Complete() bool {
	return 0 < p.Total && p.Finished+p.Failed+p.Stopped == p.Total
}

// RetentionRule expires workspace files matching Pattern after Days days.
// Rules are evaluated when a run is deleted or restarted.
type RetentionRule struct {
	Pattern string
	Days    int
}

// RunBody is the persisted core of a workflow run.
type RunBody struct {
	Id      string
	OwnerId string

	// Human-given workflow name. Together with OwnerId and Number it
	// identifies the run for users.
	Name string

	// Sequential attempt number, monotonic per owner+name.
	Number int

	Status RunStatus
	Engine EngineKind

	// Optional distributed-compute flavor, independent of Engine.
	ComputeBackend ComputeBackend

	// Path of the shared workspace. Restarted runs reuse it.
	Workspace string

	// Id of the run this one restarted from, if any.
	RestartedFrom string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (rb *RunBody) Equal(o *RunBody) bool {
	if (rb == nil) || (o == nil) {
		return (rb == nil) && (o == nil)
	}
	return rb.Id == o.Id &&
		rb.OwnerId == o.OwnerId &&
		rb.Name == o.Name &&
		rb.Number == o.Number &&
		rb.Status == o.Status &&
		rb.Engine == o.Engine &&
		rb.ComputeBackend == o.ComputeBackend &&
		rb.Workspace == o.Workspace &&
		rb.RestartedFrom == o.RestartedFrom &&
		timePtrEq(rb.StartedAt, o.StartedAt) &&
		timePtrEq(rb.FinishedAt, o.FinishedAt)
}

type Run struct {
	RunBody

	Progress Progress

	// Engine-specific configuration, immutable after start.
	Options map[string]string

	Retention []RetentionRule
}

func (r *Run) Equal(o *Run) bool {
	return r.RunBody.Equal(&o.RunBody) &&
		r.Progress == o.Progress &&
		cmp.MapEq(r.Options, o.Options) &&
		cmp.SliceContentEq(r.Retention, o.Retention)
}

func timePtrEq(a, b *time.Time) bool {
	if (a == nil) || (b == nil) {
		return (a == nil) && (b == nil)
	}
	return a.Equal(*b)
}
