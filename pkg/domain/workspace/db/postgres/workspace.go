package postgres

import (
	"context"
	"fmt"

	kpool "github.com/reanahub/reana-workflow-controller/pkg/conn/db/postgres/pool"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	kdb "github.com/reanahub/reana-workflow-controller/pkg/domain/workspace/db"
)

type accountantPG struct {
	pool kpool.Pool

	// limit granted to owners without an explicit quota row.
	defaultLimit int64
}

var _ kdb.AccountantInterface = &accountantPG{}

func New(pool kpool.Pool, defaultLimit int64) kdb.AccountantInterface {
	return &accountantPG{pool: pool, defaultLimit: defaultLimit}
}

func (m *accountantPG) Reserve(ctx context.Context, ownerId string, workspace string, bytes int64) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx,
		`
		insert into "owner_quota" ("owner_id", "disk_limit")
		values ($1, $2)
		on conflict ("owner_id") do nothing
		`,
		ownerId, m.defaultLimit,
	); err != nil {
		return err
	}

	var limit int64
	if err := tx.QueryRow(
		ctx,
		`select "disk_limit" from "owner_quota" where "owner_id" = $1 for update`,
		ownerId,
	).Scan(&limit); err != nil {
		return err
	}

	// booked bytes of the owner, not counting the workspace being
	// (re-)reserved: its booking is about to be replaced.
	var booked int64
	if err := tx.QueryRow(
		ctx,
		`
		select coalesce(sum("bytes"), 0) from "workspace_usage"
		where "owner_id" = $1 and "workspace" <> $2
		`,
		ownerId, workspace,
	).Scan(&booked); err != nil {
		return err
	}

	// zero limit means unmetered.
	if 0 < limit && limit < booked+bytes {
		return fmt.Errorf(
			"%w: owner %s: %d + %d over limit %d",
			domain.ErrQuotaExceeded, ownerId, booked, bytes, limit,
		)
	}

	if _, err := tx.Exec(
		ctx,
		`
		insert into "workspace_usage" ("workspace", "owner_id", "bytes")
		values ($1, $2, $3)
		on conflict ("workspace") do update set "owner_id" = $2, "bytes" = $3
		`,
		workspace, ownerId, bytes,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (m *accountantPG) Release(ctx context.Context, workspace string) error {
	_, err := m.pool.Exec(
		ctx,
		`delete from "workspace_usage" where "workspace" = $1`,
		workspace,
	)
	return err
}

func (m *accountantPG) Usage(ctx context.Context, ownerId string) (int64, int64, error) {
	var used, limit int64
	if err := m.pool.QueryRow(
		ctx,
		`
		select
			(select coalesce(sum("bytes"), 0) from "workspace_usage" where "owner_id" = $1),
			coalesce(
				(select "disk_limit" from "owner_quota" where "owner_id" = $1),
				$2
			)
		`,
		ownerId, m.defaultLimit,
	).Scan(&used, &limit); err != nil {
		return 0, 0, err
	}
	return used, limit, nil
}
