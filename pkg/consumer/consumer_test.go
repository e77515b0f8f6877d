package consumer_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/reanahub/reana-workflow-controller/pkg/consumer"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	dbmock "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db/mock"
	managermock "github.com/reanahub/reana-workflow-controller/pkg/domain/run/manager/mock"
)

func aRun(status domain.RunStatus) domain.Run {
	return domain.Run{
		RunBody: domain.RunBody{
			Id:      "run-1",
			OwnerId: "owner-1",
			Name:    "analysis",
			Status:  status,
		},
	}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	logger := log.New(os.Stderr, "", log.LstdFlags)

	t.Run("it applies a job status and acks", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		db.Impl.ApplyJobStatus = func(_ context.Context, job domain.Job) (domain.Progress, error) {
			if job.Id != "job-7" || job.Status != domain.JobRunning {
				t.Errorf("unexpected job applied: %+v", job)
			}
			return domain.Progress{Total: 3, Running: 1}, nil
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "job_id": "job-7", "status": "running"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
	})

	t.Run("it settles the run when all jobs are done", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		db.Impl.ApplyJobStatus = func(context.Context, domain.Job) (domain.Progress, error) {
			return domain.Progress{Total: 2, Finished: 1, Failed: 1}, nil
		}
		finalized := false
		runs.Impl.Finalize = func(_ context.Context, runId string) (domain.Run, error) {
			finalized = true
			if runId != "run-1" {
				t.Errorf("unexpected run finalized: %s", runId)
			}
			return aRun(domain.StatusFailed), nil
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "job_id": "job-7", "status": "failed"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
		if !finalized {
			t.Error("the run was not settled")
		}
	})

	t.Run("it admits a pending run when its first job reports", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusPending), nil
		}
		db.Impl.ChangeStatus = func(context.Context, string, domain.RunStatus) error { return nil }
		db.Impl.ApplyJobStatus = func(context.Context, domain.Job) (domain.Progress, error) {
			return domain.Progress{Total: 3, Running: 1}, nil
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "job_id": "job-1", "status": "running"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
		if db.Calls.ChangeStatus.Times() != 1 ||
			db.Calls.ChangeStatus[0].NewStatus != domain.StatusRunning {
			t.Errorf("the run should be moved to running: %+v", db.Calls.ChangeStatus)
		}
	})

	t.Run("it settles a pending run whose jobs all finished", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusPending), nil
		}
		db.Impl.ChangeStatus = func(_ context.Context, _ string, s domain.RunStatus) error {
			if s != domain.StatusRunning {
				t.Errorf("unexpected status change: %s", s)
			}
			return nil
		}
		db.Impl.ApplyJobStatus = func(context.Context, domain.Job) (domain.Progress, error) {
			return domain.Progress{Total: 3, Finished: 3}, nil
		}
		finalized := false
		runs.Impl.Finalize = func(context.Context, string) (domain.Run, error) {
			finalized = true
			return aRun(domain.StatusFinished), nil
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "job_id": "job-3", "status": "finished"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
		if !finalized {
			t.Error("the run was admitted but not settled")
		}
	})

	t.Run("it marks the run running on an engine report", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusPending), nil
		}
		db.Impl.ChangeStatus = func(context.Context, string, domain.RunStatus) error { return nil }
		db.Impl.AppendLogs = func(context.Context, string, string) error { return nil }

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "status": "running", "logs": "engine starting\n"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
		if db.Calls.ChangeStatus.Times() != 1 ||
			db.Calls.ChangeStatus[0].NewStatus != domain.StatusRunning {
			t.Errorf("the run should be moved to running: %+v", db.Calls.ChangeStatus)
		}
		want := struct{ RunId, Logs string }{"run-1", "engine starting\n"}
		if db.Calls.AppendLogs.Times() != 1 || db.Calls.AppendLogs[0] != want {
			t.Errorf("the logs were not captured: %+v", db.Calls.AppendLogs)
		}
	})

	t.Run("it discards a stale engine report", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusFinished), nil
		}
		db.Impl.ChangeStatus = func(context.Context, string, domain.RunStatus) error {
			return domain.NewErrInvalidState(domain.StatusFinished, domain.StatusRunning)
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "status": "running"}`)
		if got := testee.Handle(ctx, body); got != consumer.Discarded {
			t.Errorf("unexpected outcome: %v", got)
		}
	})

	t.Run("it settles on the engine's terminal report", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		finalized := false
		runs.Impl.Finalize = func(context.Context, string) (domain.Run, error) {
			finalized = true
			return aRun(domain.StatusFailed), nil
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "status": "failed"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
		if !finalized {
			t.Error("the run was not settled")
		}
	})

	t.Run("it appends logs from a message carrying logs alone", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		db.Impl.AppendLogs = func(_ context.Context, _ string, logs string) error {
			if logs != "step 1 done\n" {
				t.Errorf("unexpected logs: %s", logs)
			}
			return nil
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "logs": "step 1 done\n"}`)
		if got := testee.Handle(ctx, body); got != consumer.Processed {
			t.Errorf("unexpected outcome: %v", got)
		}
		if db.Calls.AppendLogs.Times() != 1 {
			t.Error("the logs were not captured")
		}
	})

	t.Run("it discards messages for stopped and deleted runs", func(t *testing.T) {
		for _, status := range []domain.RunStatus{domain.StatusStopped, domain.StatusDeleted} {
			t.Run(status.String(), func(t *testing.T) {
				db := dbmock.NewRunInterface()
				runs := managermock.New(t)

				db.Impl.Get = func(context.Context, string) (domain.Run, error) {
					return aRun(status), nil
				}

				testee := consumer.NewHandler(db, runs, logger)
				body := []byte(`{"run_id": "run-1", "job_id": "job-7", "status": "finished"}`)
				if got := testee.Handle(ctx, body); got != consumer.Discarded {
					t.Errorf("unexpected outcome: %v", got)
				}
				if db.Calls.ApplyJobStatus.Times() != 0 {
					t.Error("nothing should be applied for a settled run")
				}
			})
		}
	})

	t.Run("it treats garbage as poison", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		testee := consumer.NewHandler(db, runs, logger)
		for name, body := range map[string][]byte{
			"bad json":       []byte(`{{{`),
			"no ids":         []byte(`{"status": "running"}`),
			"unknown status": []byte(`{"run_id": "run-1", "job_id": "job-7", "status": "paused"}`),
		} {
			t.Run(name, func(t *testing.T) {
				if got := testee.Handle(ctx, body); got != consumer.Poison {
					t.Errorf("unexpected outcome: %v", got)
				}
			})
		}
	})

	t.Run("it treats an unknown run as poison", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return domain.Run{}, domain.ErrMissing
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-unknown", "job_id": "job-7", "status": "running"}`)
		if got := testee.Handle(ctx, body); got != consumer.Poison {
			t.Errorf("unexpected outcome: %v", got)
		}
	})

	t.Run("it requeues on transient store failures", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return domain.Run{}, errors.New("connection refused")
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "job_id": "job-7", "status": "running"}`)
		if got := testee.Handle(ctx, body); got != consumer.Requeue {
			t.Errorf("unexpected outcome: %v", got)
		}
	})

	t.Run("it requeues when settlement fails after the commit", func(t *testing.T) {
		db := dbmock.NewRunInterface()
		runs := managermock.New(t)

		db.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		db.Impl.ApplyJobStatus = func(context.Context, domain.Job) (domain.Progress, error) {
			return domain.Progress{Total: 1, Finished: 1}, nil
		}
		runs.Impl.Finalize = func(context.Context, string) (domain.Run, error) {
			return domain.Run{}, errors.New("cluster unreachable")
		}

		testee := consumer.NewHandler(db, runs, logger)
		body := []byte(`{"run_id": "run-1", "job_id": "job-7", "status": "finished"}`)
		if got := testee.Handle(ctx, body); got != consumer.Requeue {
			t.Errorf("unexpected outcome: %v", got)
		}
	})
}
