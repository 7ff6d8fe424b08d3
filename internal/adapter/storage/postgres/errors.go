package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

const pgUniqueViolation = "23505"

// translateError maps driver errors into the application taxonomy. A unique
// violation is the expected signal of a concurrent-insert race and must map
// to a retryable duplicate-entry condition, not a crash.
func translateError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.NewDatabaseError(domain.ErrDefDuplicateEntry, operation, err)
	}
	return domain.NewDatabaseError(domain.ErrDefQuery, operation, err)
}
