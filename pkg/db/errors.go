package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided the constraint (or, for sqlite, the column list)
// must appear in the error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName || strings.Contains(pgErr.Message, constraintName)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" || strings.Contains(msg, constraintName) {
		return true
	}
	return matchesSQLiteColumn(msg, constraintName)
}

// matchesSQLiteColumn maps a postgres "<table>_<column>_key" constraint name
// onto the "<table>.<column>" form sqlite reports.
func matchesSQLiteColumn(msg, constraintName string) bool {
	base := strings.TrimSuffix(constraintName, "_key")
	if base == constraintName {
		return false
	}
	for i := 0; i < len(base); i++ {
		if base[i] != '_' {
			continue
		}
		if strings.Contains(msg, base[:i]+"."+base[i+1:]) {
			return true
		}
	}
	return false
}
