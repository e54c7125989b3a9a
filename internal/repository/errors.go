// Package repository is the MySQL store for users, sessions,
// participants and the transaction log.  Missing rows surface as
// ledger.ErrNotFound and unique-key violations as ErrEmailExists or
// ledger.ErrInvalidInput so handlers can map them without knowing SQL.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/pokernight/internal/ledger"
)

// ErrEmailExists is returned when registering an email that is
// already taken.  Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to ledger.ErrNotFound and leaves every
// other error untouched.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", ledger.ErrNotFound, what, id)
	}
	return err
}
