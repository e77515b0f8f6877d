package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
)

// Missing: the requested record does not exist.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return domain.ErrMissing
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally on a named constraint.
//
// The workspace-exclusivity and single-session invariants are backed by
// unique indexes; a violation there is a user-visible conflict, not an
// internal error.
func IsUniqueViolation(err error, constraint string) bool {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return false
	}
	if pgerr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgerr.ConstraintName == constraint
}
