package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Queryer sends SQL commands. It is the subset of pgx connections and
// transactions the storage layer needs; keeping it narrow lets tests stand
// in a fake without a database.
type Queryer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Begin starts a transaction.
type Begin interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the subset of pgx.Tx used here. pgx.Tx itself does not implement
// Tx (Go has no return-type covariance), so transactions are obtained
// through Pool.Begin, which wraps them.
type Tx interface {
	Queryer
	Begin

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type pgxTx struct {
	base pgx.Tx
}

var _ Tx = &pgxTx{}

func (t *pgxTx) Begin(ctx context.Context) (Tx, error) {
	inner, err := t.base.Begin(ctx)
	if inner == nil {
		return nil, err
	}
	return &pgxTx{inner}, err
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.base.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.base.Rollback(ctx)
}

func (t *pgxTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return t.base.Exec(ctx, sql, arguments...)
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.base.Query(ctx, sql, args...)
}

func (t *pgxTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.base.QueryRow(ctx, sql, args...)
}

// Pool is the subset of *pgxpool.Pool used by the storage layer.
type Pool interface {
	Queryer
	Begin

	Ping(ctx context.Context) error
}

type pgxPool struct {
	base *pgxpool.Pool
}

var _ Pool = &pgxPool{}

func (p *pgxPool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.base.Begin(ctx)
	if tx == nil {
		return nil, err
	}
	return &pgxTx{tx}, err
}

func (p *pgxPool) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return p.base.Exec(ctx, sql, arguments...)
}

func (p *pgxPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return p.base.Query(ctx, sql, args...)
}

func (p *pgxPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.base.QueryRow(ctx, sql, args...)
}

func (p *pgxPool) Ping(ctx context.Context) error {
	return p.base.Ping(ctx)
}

// Wrap adapts a *pgxpool.Pool to Pool.
func Wrap(p *pgxpool.Pool) Pool {
	return &pgxPool{p}
}

// New connects to the database with the given connection string.
func New(ctx context.Context, conninfo string) (Pool, error) {
	p, err := pgxpool.Connect(ctx, conninfo)
	if err != nil {
		return nil, err
	}
	return Wrap(p), nil
}
