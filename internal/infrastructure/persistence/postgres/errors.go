package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

// transientCodes are server errors after which the same statement may succeed.
// Class 08 (connection exception) is matched by prefix.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool     { return sqlState(err) == codeUniqueViolation }
func IsForeignKeyViolation(err error) bool { return sqlState(err) == codeForeignKeyViolation }
func IsCheckViolation(err error) bool      { return sqlState(err) == codeCheckViolation }

// IsTransient reports whether err is a connectivity problem, a timeout or a
// server error that is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) {
		return true
	}
	code := sqlState(err)
	return transientCodes[code] || strings.HasPrefix(code, "08")
}

// classify maps a driver error onto the domain taxonomy.
// notFound replaces pgx.ErrNoRows and malformed uuids (no row can match
// them); conflict replaces unique violations. Either may be nil.
func classify(op string, err error, notFound, conflict error) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && (errors.Is(err, pgx.ErrNoRows) || sqlState(err) == codeInvalidText):
		return notFound
	case conflict != nil && IsUniqueViolation(err):
		return conflict
	case errors.Is(err, context.Canceled), IsTransient(err):
		return shared.Transient("postgres", op, err)
	default:
		return fmt.Errorf("postgres %s: %w", op, err)
	}
}
