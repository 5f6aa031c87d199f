package sqliteengine

import (
	"errors"
	"io/fs"
	"syscall"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// ClassifyError sorts connection errors into transient and permanent failures.
//
// Missing file system permissions, a read-only file system and SQLite result codes that will not change
// on the next attempt (SQLITE_PERM, SQLITE_READONLY, SQLITE_AUTH, SQLITE_NOTADB) are permanent.
// Everything else, e.g. a locked database or a directory that is not mounted yet, is transient.
func ClassifyError(err error) eventsim.ErrorClass {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS) {
		return eventsim.ErrorClassPermanent
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff { // primary result code
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_NOTADB:
			return eventsim.ErrorClassPermanent
		}
	}

	return eventsim.ErrorClassTransient
}
