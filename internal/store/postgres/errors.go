package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/schema"
	"github.com/prn-tf/inkwell/internal/store"
)

const uniqueViolation = "23505"

// translate maps pgx errors into the domain taxonomy.
func translate(spec *schema.Spec, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNoDocument
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return store.ConflictForIndexName(spec, pgErr.ConstraintName)
		case isUnavailableCode(pgErr.Code):
			return domain.Unavailable(err)
		default:
			return domain.Internal(err)
		}
	}

	if isUnavailable(err) {
		return domain.Unavailable(err)
	}
	return domain.Internal(err)
}

// isUnavailableCode covers connection exceptions (08), insufficient resources (53),
// operator intervention (57) and lock timeouts.
func isUnavailableCode(code string) bool {
	return strings.HasPrefix(code, "08") ||
		strings.HasPrefix(code, "53") ||
		strings.HasPrefix(code, "57") ||
		code == "55P03"
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
