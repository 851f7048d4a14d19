package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema creates the tables when they do not exist yet.  Statements run
// one at a time so the DSN does not need multiStatements.
//
// bookings.active_slot is 1 while a booking is pending or confirmed and
// NULL otherwise.  UNIQUE(user_id, ticket_id, active_slot) therefore
// admits at most one active booking per customer and ticket while letting
// any number of cancelled ones coexist.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		phone         VARCHAR(32) NULL,
		role          ENUM('admin','organizer','customer') NOT NULL DEFAULT 'customer',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS events (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title       VARCHAR(255) NOT NULL,
		description TEXT NULL,
		date        DATETIME NOT NULL,
		location    VARCHAR(255) NOT NULL,
		status      ENUM('draft','published','cancelled') NOT NULL DEFAULT 'published',
		created_by  BIGINT UNSIGNED NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		deleted_at  DATETIME NULL,
		KEY idx_events_status_date (status, date),
		CONSTRAINT fk_events_created_by FOREIGN KEY (created_by) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id      BIGINT UNSIGNED NOT NULL,
		type          ENUM('VIP','Standard','Economy','Early Bird') NOT NULL,
		price         DECIMAL(12,2) NOT NULL,
		quantity      INT NOT NULL,
		quantity_sold INT NOT NULL DEFAULT 0,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		deleted_at    DATETIME NULL,
		KEY idx_tickets_event (event_id),
		CONSTRAINT fk_tickets_event FOREIGN KEY (event_id) REFERENCES events (id),
		CONSTRAINT chk_tickets_sold CHECK (quantity_sold >= 0 AND quantity_sold <= quantity)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id             BIGINT UNSIGNED NOT NULL,
		ticket_id           BIGINT UNSIGNED NOT NULL,
		quantity            INT UNSIGNED NOT NULL,
		total_amount        DECIMAL(12,2) NOT NULL,
		status              ENUM('pending','confirmed','cancelled') NOT NULL DEFAULT 'pending',
		booking_reference   VARCHAR(20) NOT NULL,
		confirmed_at        DATETIME NULL,
		cancelled_at        DATETIME NULL,
		cancellation_reason VARCHAR(500) NULL,
		active_slot         TINYINT GENERATED ALWAYS AS (IF(status IN ('pending','confirmed'), 1, NULL)) STORED,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_bookings_reference (booking_reference),
		UNIQUE KEY uq_bookings_active (user_id, ticket_id, active_slot),
		KEY idx_bookings_ticket_status (ticket_id, status),
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT fk_bookings_ticket FOREIGN KEY (ticket_id) REFERENCES tickets (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payments (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id       BIGINT UNSIGNED NOT NULL,
		amount           DECIMAL(12,2) NOT NULL,
		status           ENUM('success','failed','refunded') NOT NULL,
		payment_method   VARCHAR(32) NOT NULL DEFAULT 'mock',
		transaction_id   VARCHAR(64) NOT NULL,
		gateway_response JSON NULL,
		paid_at          DATETIME NULL,
		refunded_at      DATETIME NULL,
		created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_payments_transaction (transaction_id),
		KEY idx_payments_booking (booking_id),
		CONSTRAINT fk_payments_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_id   CHAR(36) NOT NULL PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_revoked_tokens_expires (expires_at),
		CONSTRAINT fk_revoked_tokens_user FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
