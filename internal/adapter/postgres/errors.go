package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mpblatz/repeet/internal/domain"
)

// MapError converts pgx/pgconn errors to domain errors.
// context.DeadlineExceeded and context.Canceled are NOT mapped; they pass through.
func MapError(err error, entity string, id fmt.Stringer) error {
	if err == nil {
		return nil
	}

	subject := entity
	if id != nil {
		if s := id.String(); s != "" {
			subject = entity + " " + s
		}
	}

	// context errors pass through as-is
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", subject, err)
	}

	// pgx.ErrNoRows → domain.ErrNotFound
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
	}

	// PgError codes
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
		case "23505", "23514": // unique_violation, check_violation
			return fmt.Errorf("%s: %w", subject, constraintError(pgErr))
		}
		// Class 08 is connection exception, 57P0x is operator intervention.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") {
			return fmt.Errorf("%s: %w: %w", subject, domain.ErrStorageUnavailable, err)
		}
		return fmt.Errorf("%s: %w", subject, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", subject, domain.ErrStorageUnavailable, err)
	}

	// Everything else: wrap with context
	return fmt.Errorf("%s: %w", subject, err)
}

func constraintError(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName
	if field == "" {
		field = pgErr.ConstraintName
	}
	if field == "" {
		field = "row"
	}
	return domain.NewValidationError(field, pgErr.Message)
}
