// Package repository holds the MySQL data access code.  Lookups that find
// no row return booking.ErrNotFound so handlers can map every package's
// errors in one place.  The sentinels below cover the remaining failure
// scenarios, e.g. deleting a ticket that still has active bookings.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticketing/internal/booking"
)

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent records, such as deleting a ticket with pending
// or confirmed bookings.  Handlers translate this into a 422 response.
var ErrConflict = errors.New("conflict")

// ErrQuantityBelowSold is returned when a ticket update would lower the
// quantity below what has already been reserved.
var ErrQuantityBelowSold = errors.New("quantity cannot be lower than quantity sold")

// ErrEmailExists is returned by UserRepo.Create for a taken email.
var ErrEmailExists = errors.New("email already exists")

const mysqlDuplicateEntry = 1062

// uniqueViolation converts a MySQL duplicate key error into a
// *booking.UniqueViolation naming the violated key.  Other errors are
// returned unchanged.
func uniqueViolation(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	return &booking.UniqueViolation{Constraint: duplicateKeyName(me.Message), Err: err}
}

// duplicateKeyName extracts the key from "Duplicate entry 'x' for key
// 'bookings.uq_bookings_reference'".  MySQL 8 prefixes the table name.
func duplicateKeyName(msg string) string {
	const marker = "for key '"
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len(marker):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return booking.ErrNotFound
	}
	return err
}
