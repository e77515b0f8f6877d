package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	kpool "github.com/reanahub/reana-workflow-controller/pkg/conn/db/postgres/pool"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	kpgerr "github.com/reanahub/reana-workflow-controller/pkg/domain/errors/dberrors/postgres"
	kdb "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db"
)

// name of the partial unique index enforcing workspace exclusivity.
// Only one non-deleted run per workspace may be pending or running.
const workspaceExclusivityIndex = "idx_run_active_workspace"

type runPG struct {
	pool kpool.Pool
}

var _ kdb.RunInterface = &runPG{}

func New(pool kpool.Pool) kdb.RunInterface {
	return &runPG{pool: pool}
}

func (m *runPG) New(ctx context.Context, spec kdb.NewRunSpec) (domain.Run, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.Run{}, err
	}
	defer tx.Rollback(ctx)

	runId := uuid.NewString()

	var number int
	if err := tx.QueryRow(
		ctx,
		`
		select coalesce(max("number"), 0) + 1
		from "run"
		where "owner_id" = $1 and "name" = $2
		`,
		spec.OwnerId, spec.Name,
	).Scan(&number); err != nil {
		return domain.Run{}, err
	}

	run, err := m.insertRun(ctx, tx, runId, number, "", spec)
	if err != nil {
		return domain.Run{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

func (m *runPG) insertRun(
	ctx context.Context, tx kpool.Tx,
	runId string, number int, restartedFrom string, spec kdb.NewRunSpec,
) (domain.Run, error) {
	run := domain.Run{
		RunBody: domain.RunBody{
			Id:             runId,
			OwnerId:        spec.OwnerId,
			Name:           spec.Name,
			Number:         number,
			Status:         domain.StatusCreated,
			Engine:         spec.Engine,
			ComputeBackend: spec.ComputeBackend,
			Workspace:      spec.Workspace,
			RestartedFrom:  restartedFrom,
		},
		Options:   spec.Options,
		Retention: spec.Retention,
	}

	if err := tx.QueryRow(
		ctx,
		`
		insert into "run" (
			"run_id", "owner_id", "name", "number", "status",
			"engine", "compute_backend", "workspace", "restarted_from"
		)
		values ($1, $2, $3, $4, 'created', $5, $6, $7, $8)
		returning "created_at"
		`,
		runId, spec.OwnerId, spec.Name, number,
		string(spec.Engine), string(spec.ComputeBackend),
		spec.Workspace, restartedFrom,
	).Scan(&run.CreatedAt); err != nil {
		return domain.Run{}, err
	}

	for name, value := range spec.Options {
		if _, err := tx.Exec(
			ctx,
			`insert into "run_option" ("run_id", "name", "value") values ($1, $2, $3)`,
			runId, name, value,
		); err != nil {
			return domain.Run{}, err
		}
	}
	for _, rule := range spec.Retention {
		if _, err := tx.Exec(
			ctx,
			`insert into "run_retention" ("run_id", "pattern", "days") values ($1, $2, $3)`,
			runId, rule.Pattern, rule.Days,
		); err != nil {
			return domain.Run{}, err
		}
	}

	return run, nil
}

func (m *runPG) Get(ctx context.Context, runId string) (domain.Run, error) {
	return m.get(ctx, m.pool, runId)
}

func (m *runPG) get(ctx context.Context, conn kpool.Queryer, runId string) (domain.Run, error) {
	run := domain.Run{}

	var status string
	var engine string
	var backend string
	var startedAt, finishedAt sql.NullTime
	if err := conn.QueryRow(
		ctx,
		`
		select
			"run_id", "owner_id", "name", "number", "status",
			"engine", "compute_backend", "workspace", "restarted_from",
			"created_at", "started_at", "finished_at"
		from "run"
		where "run_id" = $1
		`,
		runId,
	).Scan(
		&run.Id, &run.OwnerId, &run.Name, &run.Number, &status,
		&engine, &backend, &run.Workspace, &run.RestartedFrom,
		&run.CreatedAt, &startedAt, &finishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, kpgerr.Missing{
				Table:    "run",
				Identity: fmt.Sprintf("run_id = %s", runId),
			}
		}
		return domain.Run{}, err
	}

	var err error
	if run.Status, err = domain.AsRunStatus(status); err != nil {
		return domain.Run{}, err
	}
	if run.Engine, err = domain.AsEngineKind(engine); err != nil {
		return domain.Run{}, err
	}
	if run.ComputeBackend, err = domain.AsComputeBackend(backend); err != nil {
		return domain.Run{}, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	if run.Options, err = m.options(ctx, conn, runId); err != nil {
		return domain.Run{}, err
	}
	if run.Retention, err = m.retention(ctx, conn, runId); err != nil {
		return domain.Run{}, err
	}
	if run.Progress, err = m.progress(ctx, conn, runId); err != nil {
		return domain.Run{}, err
	}

	return run, nil
}

func (m *runPG) options(ctx context.Context, conn kpool.Queryer, runId string) (map[string]string, error) {
	rows, err := conn.Query(
		ctx,
		`select "name", "value" from "run_option" where "run_id" = $1`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opts := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		opts[name] = value
	}
	if len(opts) == 0 {
		return nil, rows.Err()
	}
	return opts, rows.Err()
}

func (m *runPG) retention(ctx context.Context, conn kpool.Queryer, runId string) ([]domain.RetentionRule, error) {
	rows, err := conn.Query(
		ctx,
		`select "pattern", "days" from "run_retention" where "run_id" = $1 order by "pattern"`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.RetentionRule
	for rows.Next() {
		r := domain.RetentionRule{}
		if err := rows.Scan(&r.Pattern, &r.Days); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (m *runPG) Find(ctx context.Context, ownerId string, name string) ([]domain.Run, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "run_id" from "run"
		where "owner_id" = $1 and "name" = $2
		order by "number" desc
		`,
		ownerId, name,
	)
	if err != nil {
		return nil, err
	}

	var runIds []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		runIds = append(runIds, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	runs := make([]domain.Run, 0, len(runIds))
	for _, id := range runIds {
		run, err := m.get(ctx, m.pool, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (m *runPG) Latest(ctx context.Context, ownerId string, name string) (domain.Run, error) {
	var runId string
	if err := m.pool.QueryRow(
		ctx,
		`
		select "run_id" from "run"
		where "owner_id" = $1 and "name" = $2
		order by "number" desc
		limit 1
		`,
		ownerId, name,
	).Scan(&runId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, kpgerr.Missing{
				Table:    "run",
				Identity: fmt.Sprintf("owner_id = %s, name = %s", ownerId, name),
			}
		}
		return domain.Run{}, err
	}
	return m.get(ctx, m.pool, runId)
}

func (m *runPG) ChangeStatus(ctx context.Context, runId string, newStatus domain.RunStatus) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := m.setStatus(ctx, tx, runId, newStatus); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AcquireWorkspace is the only way into "pending": the status change and
// the workspace-exclusivity guard commit or fail as one.
func (m *runPG) AcquireWorkspace(ctx context.Context, runId string) error {
	return m.ChangeStatus(ctx, runId, domain.StatusPending)
}

// ReleaseWorkspace undoes AcquireWorkspace after a provisioning failure.
// The pending -> created revert is deliberately not in the transition
// table; nothing else may leave "pending" backwards.
func (m *runPG) ReleaseWorkspace(ctx context.Context, runId string) error {
	_, err := m.pool.Exec(
		ctx,
		`update "run" set "status" = 'created' where "run_id" = $1 and "status" = 'pending'`,
		runId,
	)
	return err
}

func (m *runPG) setStatus(
	ctx context.Context, tx kpool.Tx, runId string, newStatus domain.RunStatus,
) error {
	var current domain.RunStatus
	{
		var _current string
		if err := tx.QueryRow(
			ctx,
			`
			select "status" from "run"
			where "run_id" = $1 for update
			`,
			runId,
		).Scan(&_current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return kpgerr.Missing{
					Table:    "run",
					Identity: fmt.Sprintf("run_id = %s", runId),
				}
			}
			return err
		}
		var err error
		if current, err = domain.AsRunStatus(_current); err != nil {
			return err
		}
	}

	// same status: keep the request idempotent.
	if current == newStatus {
		return nil
	}

	if !current.CanTransitTo(newStatus) {
		return domain.NewErrInvalidState(current, newStatus)
	}

	cmd, err := tx.Exec(
		ctx,
		`
		update "run" set
			"status" = $1,
			"started_at" = case
				when $1 = 'running' then coalesce("started_at", now())
				else "started_at"
			end,
			"finished_at" = case
				when $1 in ('finished', 'failed', 'stopped', 'deleted')
					then coalesce("finished_at", now())
				else "finished_at"
			end
		where "run_id" = $2
		`,
		string(newStatus), runId,
	)
	if err != nil {
		if kpgerr.IsUniqueViolation(err, workspaceExclusivityIndex) {
			return fmt.Errorf("%w: run %s", domain.ErrWorkspaceConflict, runId)
		}
		return err
	}

	if cmd.RowsAffected() == 0 {
		return kpgerr.Missing{
			Table:    "run",
			Identity: fmt.Sprintf("updating run_id='%s'", runId),
		}
	}

	return nil
}

func (m *runPG) ApplyJobStatus(ctx context.Context, job domain.Job) (domain.Progress, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.Progress{}, err
	}
	defer tx.Rollback(ctx)

	// lock the run row so concurrent job updates recompute one by one.
	{
		var found string
		if err := tx.QueryRow(
			ctx,
			`select "run_id" from "run" where "run_id" = $1 for update`,
			job.RunId,
		).Scan(&found); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Progress{}, kpgerr.Missing{
					Table:    "run",
					Identity: fmt.Sprintf("run_id = %s", job.RunId),
				}
			}
			return domain.Progress{}, err
		}
	}

	// terminal job rows are immutable; redelivered messages change nothing.
	if _, err := tx.Exec(
		ctx,
		`
		insert into "job" ("job_id", "run_id", "status", "started_at", "finished_at")
		values ($1, $2, $3, $4, $5)
		on conflict ("job_id") do update set
			"status" = excluded."status",
			"started_at" = coalesce("job"."started_at", excluded."started_at"),
			"finished_at" = coalesce("job"."finished_at", excluded."finished_at")
		where "job"."status" not in ('finished', 'failed', 'stopped')
		`,
		job.Id, job.RunId, string(job.Status), job.StartedAt, job.FinishedAt,
	); err != nil {
		return domain.Progress{}, err
	}

	progress, err := m.progress(ctx, tx, job.RunId)
	if err != nil {
		return domain.Progress{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Progress{}, err
	}
	return progress, nil
}

func (m *runPG) Progress(ctx context.Context, runId string) (domain.Progress, error) {
	return m.progress(ctx, m.pool, runId)
}

func (m *runPG) progress(ctx context.Context, conn kpool.Queryer, runId string) (domain.Progress, error) {
	p := domain.Progress{}
	if err := conn.QueryRow(
		ctx,
		`
		select
			count(*),
			count(*) filter (where "status" = 'running'),
			count(*) filter (where "status" = 'finished'),
			count(*) filter (where "status" = 'failed'),
			count(*) filter (where "status" = 'stopped')
		from "job"
		where "run_id" = $1
		`,
		runId,
	).Scan(&p.Total, &p.Running, &p.Finished, &p.Failed, &p.Stopped); err != nil {
		return domain.Progress{}, err
	}
	return p, nil
}

func (m *runPG) MarkUnfinishedJobsStopped(ctx context.Context, runId string) error {
	_, err := m.pool.Exec(
		ctx,
		`
		update "job" set
			"status" = 'stopped',
			"finished_at" = coalesce("finished_at", now())
		where "run_id" = $1
		  and "status" not in ('finished', 'failed', 'stopped')
		`,
		runId,
	)
	return err
}

func (m *runPG) NewAttempt(ctx context.Context, fromRunId string) (domain.Run, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.Run{}, err
	}
	defer tx.Rollback(ctx)

	source, err := m.lockRun(ctx, tx, fromRunId)
	if err != nil {
		return domain.Run{}, err
	}
	if source.Status == domain.StatusDeleted || !source.Status.Terminal() {
		return domain.Run{}, domain.NewErrInvalidState(source.Status, domain.StatusCreated)
	}

	var number int
	if err := tx.QueryRow(
		ctx,
		`
		select coalesce(max("number"), 0) + 1
		from "run"
		where "owner_id" = $1 and "name" = $2
		`,
		source.OwnerId, source.Name,
	).Scan(&number); err != nil {
		return domain.Run{}, err
	}

	run, err := m.insertRun(ctx, tx, uuid.NewString(), number, fromRunId, kdb.NewRunSpec{
		OwnerId:        source.OwnerId,
		Name:           source.Name,
		Engine:         source.Engine,
		ComputeBackend: source.ComputeBackend,
		Workspace:      source.Workspace,
		Options:        source.Options,
		Retention:      source.Retention,
	})
	if err != nil {
		return domain.Run{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// lockRun reads a run with its options and retention rules, holding a
// row lock until the transaction ends.
func (m *runPG) lockRun(ctx context.Context, tx kpool.Tx, runId string) (domain.Run, error) {
	if _, err := tx.Exec(
		ctx,
		`select "run_id" from "run" where "run_id" = $1 for update`,
		runId,
	); err != nil {
		return domain.Run{}, err
	}
	return m.get(ctx, tx, runId)
}

func (m *runPG) AppendLogs(ctx context.Context, runId string, logs string) error {
	cmd, err := m.pool.Exec(
		ctx,
		`update "run" set "logs" = "logs" || $2 where "run_id" = $1`,
		runId, logs,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return kpgerr.Missing{
			Table:    "run",
			Identity: fmt.Sprintf("run_id = %s", runId),
		}
	}
	return nil
}

func (m *runPG) Logs(ctx context.Context, runId string) (string, error) {
	var logs string
	if err := m.pool.QueryRow(
		ctx,
		`select "logs" from "run" where "run_id" = $1`,
		runId,
	).Scan(&logs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kpgerr.Missing{
				Table:    "run",
				Identity: fmt.Sprintf("run_id = %s", runId),
			}
		}
		return "", err
	}
	return logs, nil
}

func (m *runPG) WorkspaceInUse(ctx context.Context, workspace string, excludeRunId string) (bool, error) {
	var inUse bool
	if err := m.pool.QueryRow(
		ctx,
		`
		select exists (
			select 1 from "run"
			where "workspace" = $1
			  and "run_id" <> $2
			  and "status" <> 'deleted'
		)
		`,
		workspace, excludeRunId,
	).Scan(&inUse); err != nil {
		return false, err
	}
	return inUse, nil
}

func (m *runPG) Delete(ctx context.Context, runId string) error {
	return m.ChangeStatus(ctx, runId, domain.StatusDeleted)
}
