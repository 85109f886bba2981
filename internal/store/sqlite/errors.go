package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

// Error handling utilities for SQLite.

// uniqueIndexPattern extracts the index name from a unique violation on an expression index.
var uniqueIndexPattern = regexp.MustCompile(`index '([^']+)'`)

// isUniqueViolation checks if an error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed: UNIQUE")
}

// isUnavailable checks for lock contention and I/O failures.
func isUnavailable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL:
		return true
	}
	return false
}

// isNoRows checks if an error indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// translate maps driver errors into the domain taxonomy.
func translate(spec *schema.Spec, err error) error {
	switch {
	case err == nil:
		return nil
	case isNoRows(err):
		return store.ErrNoDocument
	case isUniqueViolation(err):
		return conflictFrom(spec, err)
	case isUnavailable(err):
		return domain.Unavailable(err)
	default:
		return domain.Internal(err)
	}
}

// conflictFrom resolves the violated index from SQLite's message. Expression indexes are
// reported by name ("index 'ux_users_email'"); the primary key by column ("users.id").
func conflictFrom(spec *schema.Spec, err error) error {
	msg := err.Error()
	if m := uniqueIndexPattern.FindStringSubmatch(msg); m != nil {
		return store.ConflictForIndexName(spec, m[1])
	}
	if strings.Contains(msg, spec.Collection()+"."+schema.FieldID) {
		return domain.Conflict(spec.Entity(), schema.FieldID)
	}
	return domain.Conflict(spec.Entity(), "")
}
