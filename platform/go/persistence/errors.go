package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrMainDatabase marks failures against the main database. Nothing can authenticate without it,
// so callers surface it as "service unavailable" rather than as bad credentials.
var ErrMainDatabase = errors.New("main database unavailable")

// ErrCredentialNotFound is returned when no active user matches the lookup.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrPoolManagerClosed is returned for dials that complete after the pool manager shut down.
var ErrPoolManagerClosed = errors.New("pool manager closed")

const (
	sqlStateInvalidCatalogName = "3D000"
	sqlStateUndefinedTable     = "42P01"
	sqlStateUndefinedColumn    = "42703"
)

// IsDatabaseMissing reports whether err carries Postgres' "database does not exist" condition.
// Connect errors wrap the server error, so errors.As reaches it.
func IsDatabaseMissing(err error) bool {
	return hasSQLState(err, sqlStateInvalidCatalogName)
}

// IsUndefinedObject reports whether err is caused by a missing table or column.
func IsUndefinedObject(err error) bool {
	return hasSQLState(err, sqlStateUndefinedTable) || hasSQLState(err, sqlStateUndefinedColumn)
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
