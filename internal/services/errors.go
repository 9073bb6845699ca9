package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict is returned when a write loses a uniqueness race at commit
	// time. Callers should refresh and retry.
	ErrConflict = errors.New("write conflicted with a concurrent change")

	ErrAccountNotFound  = errors.New("account not found")
	ErrServerNotFound   = errors.New("server not found")
	ErrSubuserNotFound  = errors.New("subuser not found")
	ErrAlreadySubuser   = errors.New("account is already a subuser of this server")
	ErrCannotGrantOwner = errors.New("server owner cannot be added as a subuser")
	ErrPasswordMismatch = errors.New("current password is incorrect")

	// ErrHasActiveServers guards account deletion while servers still point
	// at the account as their owner.
	ErrHasActiveServers = errors.New("account still owns active servers")
)

// ValidationError reports a single field failing a write invariant. It is
// always user-correctable input, not a system fault.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q (rule %q)", e.Field, e.Rule)
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
