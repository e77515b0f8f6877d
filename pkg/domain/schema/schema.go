package schema

import (
	"context"
	_ "embed"

	kpool "github.com/reanahub/reana-workflow-controller/pkg/conn/db/postgres/pool"
)

//go:embed schema.sql
var ddl string

// Ensure brings the database schema up. Every statement is written to be
// re-runnable, so calling this at each boot is safe.
func Ensure(ctx context.Context, pool kpool.Pool) error {
	_, err := pool.Exec(ctx, ddl)
	return err
}
