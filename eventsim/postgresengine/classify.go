package postgresengine

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

const (
	sqlStateClassInvalidAuthorization = "28"
	sqlStateInvalidCatalogName        = "3D000"
	sqlStateInsufficientPrivilege     = "42501"
)

// ClassifyError sorts connection errors into transient and permanent failures.
//
// Authentication failures (SQLSTATE class 28), an unknown database (3D000), missing privileges (42501)
// and malformed connection strings are permanent. Everything else, e.g. refused connections, timeouts,
// DNS failures or a server that is still starting up (57P03), is transient.
func ClassifyError(err error) eventsim.ErrorClass {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return eventsim.ErrorClassPermanent
	}

	return eventsim.ErrorClassTransient
}

func classifySQLState(code string) eventsim.ErrorClass {
	switch {
	case strings.HasPrefix(code, sqlStateClassInvalidAuthorization):
		return eventsim.ErrorClassPermanent
	case code == sqlStateInvalidCatalogName, code == sqlStateInsufficientPrivilege:
		return eventsim.ErrorClassPermanent
	default:
		return eventsim.ErrorClassTransient
	}
}
