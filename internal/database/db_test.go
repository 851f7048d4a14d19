package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"root:secret@tcp(db:3306)/tickets?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("root", "secret", "db", "3306", "tickets"))
	assert.Equal(t,
		"root@tcp(localhost:3306)/tickets?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("root", "", "localhost", "3306", "tickets"))
}

func TestSchemaDeclaresBookingKeys(t *testing.T) {
	var bookings string
	for _, stmt := range schema {
		if strings.Contains(stmt, "EXISTS bookings") {
			bookings = stmt
		}
	}
	require.NotEmpty(t, bookings)
	assert.Contains(t, bookings, "UNIQUE KEY uq_bookings_reference (booking_reference)")
	assert.Contains(t, bookings, "UNIQUE KEY uq_bookings_active (user_id, ticket_id, active_slot)")
}
