package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Driver messages for unique violations when the error is not translated.
var duplicateKeyMarkers = []string{
	"Error 1062",               // mysql
	"UNIQUE constraint failed", // sqlite
	"SQLSTATE 23505",           // postgres via a wrapped string
}

// IsDuplicateKeyErr reports a unique-constraint violation from any of the
// supported dialects. Reference numbers and catalog codes rely on it to retry
// or map to a conflict.
func IsDuplicateKeyErr(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	}

	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
