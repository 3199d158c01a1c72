package database

import (
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	// ErrConnection reports that the store could not be reached.
	ErrConnection = errors.New("database unreachable")
	// ErrDuplicateKey reports a primary key or unique constraint conflict.
	ErrDuplicateKey = errors.New("duplicate key")
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
	sqliteUniqueFailure = "UNIQUE constraint failed"
)

// IsDuplicateKey reports whether err is a unique violation from any of the
// supported drivers.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) {
		return true
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), sqliteUniqueFailure)
}

// IsConnection reports whether err means the store could not be reached.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnection) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
