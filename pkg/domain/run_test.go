package domain_test

import (
	"testing"

	"github.com/reanahub/reana-workflow-controller/pkg/domain"
)

func TestRunStatusCanTransitTo(t *testing.T) {
	all := []domain.RunStatus{
		domain.StatusCreated, domain.StatusQueued, domain.StatusPending,
		domain.StatusRunning, domain.StatusFinished, domain.StatusFailed,
		domain.StatusStopped, domain.StatusDeleted,
	}

	allowed := map[domain.RunStatus][]domain.RunStatus{
		domain.StatusCreated:  {domain.StatusQueued, domain.StatusPending, domain.StatusStopped, domain.StatusDeleted},
		domain.StatusQueued:   {domain.StatusPending, domain.StatusStopped, domain.StatusDeleted},
		domain.StatusPending:  {domain.StatusRunning, domain.StatusStopped, domain.StatusDeleted},
		domain.StatusRunning:  {domain.StatusFinished, domain.StatusFailed, domain.StatusStopped, domain.StatusDeleted},
		domain.StatusFinished: {domain.StatusDeleted},
		domain.StatusFailed:   {domain.StatusDeleted},
		domain.StatusStopped:  {domain.StatusDeleted},
		domain.StatusDeleted:  {},
	}

	for from, tos := range allowed {
		okSet := map[domain.RunStatus]bool{}
		for _, to := range tos {
			okSet[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitTo(to); got != okSet[to] {
				t.Errorf("%s -> %s: CanTransitTo = %v, want %v", from, to, got, okSet[to])
			}
		}
	}
}

func TestRunStatusPredicates(t *testing.T) {
	for status, want := range map[domain.RunStatus]struct {
		active   bool
		terminal bool
	}{
		domain.StatusCreated:  {active: true},
		domain.StatusQueued:   {active: true},
		domain.StatusPending:  {active: true},
		domain.StatusRunning:  {active: true},
		domain.StatusFinished: {terminal: true},
		domain.StatusFailed:   {terminal: true},
		domain.StatusStopped:  {terminal: true},
		domain.StatusDeleted:  {terminal: true},
	} {
		if got := status.Active(); got != want.active {
			t.Errorf("%s: Active = %v, want %v", status, got, want.active)
		}
		if got := status.Terminal(); got != want.terminal {
			t.Errorf("%s: Terminal = %v, want %v", status, got, want.terminal)
		}
	}
}

func TestAsRunStatus(t *testing.T) {
	t.Run("it accepts every known status", func(t *testing.T) {
		for _, name := range []string{
			"created", "queued", "pending", "running",
			"finished", "failed", "stopped", "deleted",
		} {
			s, err := domain.AsRunStatus(name)
			if err != nil {
				t.Errorf("%s: unexpected error: %v", name, err)
			}
			if s.String() != name {
				t.Errorf("%s: round-trip mismatch: %s", name, s)
			}
		}
	})

	t.Run("it rejects anything else", func(t *testing.T) {
		for _, name := range []string{"", "paused", "RUNNING"} {
			if _, err := domain.AsRunStatus(name); err == nil {
				t.Errorf("'%s' should not parse", name)
			}
		}
	})
}

func TestProgressComplete(t *testing.T) {
	for name, testcase := range map[string]struct {
		progress domain.Progress
		want     bool
	}{
		"no jobs reported yet": {
			progress: domain.Progress{},
			want:     false,
		},
		"some jobs still running": {
			progress: domain.Progress{Total: 3, Running: 1, Finished: 2},
			want:     false,
		},
		"all finished": {
			progress: domain.Progress{Total: 3, Finished: 3},
			want:     true,
		},
		"mixed terminal outcomes": {
			progress: domain.Progress{Total: 4, Finished: 2, Failed: 1, Stopped: 1},
			want:     true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := testcase.progress.Complete(); got != testcase.want {
				t.Errorf("Complete() = %v, want %v", got, testcase.want)
			}
		})
	}
}
