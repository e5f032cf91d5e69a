package db

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports a unique-constraint failure from either backend.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
	}
	return false
}

// StampLayout is how SQLite stores timestamps. It is fixed width so text
// ordering matches time ordering.
const StampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatStamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// ParseStamp returns the zero time for values it cannot read.
func ParseStamp(s string) time.Time {
	t, err := time.Parse(StampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
