package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Bootstrap creates every table and index if absent. Safe to call on every
// start.
func (d *DB) Bootstrap(ctx context.Context) error {
	stmts, ok := schemas[d.dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", d.dialect)
	}
	return d.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		for _, s := range stmts {
			if _, err := conn.ExecContext(ctx, s); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		return nil
	})
}

// One statement per entry: the MySQL driver rejects multi-statement strings
// unless multiStatements is enabled.
var schemas = map[Dialect][]string{
	MySQL: {
		`CREATE TABLE IF NOT EXISTS sys_user (
			id              BIGINT AUTO_INCREMENT PRIMARY KEY,
			name            VARCHAR(191) NOT NULL,
			password_digest VARCHAR(255) NOT NULL,
			organization_id BIGINT NOT NULL DEFAULT 1,
			active          TINYINT(1) NOT NULL DEFAULT 1,
			latitude        DOUBLE NULL,
			longitude       DOUBLE NULL,
			address         TEXT NULL,
			created_at      DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			UNIQUE KEY uq_sys_user_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS attendance_log (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			event_ulid  CHAR(26) NOT NULL,
			user_id     BIGINT NOT NULL,
			type        TINYINT NOT NULL,
			recorded_at DATETIME(6) NOT NULL,
			latitude    DOUBLE NOT NULL,
			longitude   DOUBLE NOT NULL,
			address     TEXT NULL,
			weather     TEXT NULL,
			image       LONGTEXT NULL,
			signature   LONGTEXT NULL,
			remark      TEXT NULL,
			imei        VARCHAR(64) NULL,
			UNIQUE KEY uq_attendance_log_ulid (event_ulid),
			KEY idx_attendance_log_user (user_id, recorded_at),
			CONSTRAINT fk_attendance_log_user FOREIGN KEY (user_id) REFERENCES sys_user (id),
			CONSTRAINT chk_attendance_log_type CHECK (type IN (1, 2))
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS saved_locations (
			id            BIGINT AUTO_INCREMENT PRIMARY KEY,
			location_ulid CHAR(26) NOT NULL,
			user_id       BIGINT NOT NULL,
			name          VARCHAR(255) NOT NULL,
			latitude      DOUBLE NOT NULL,
			longitude     DOUBLE NOT NULL,
			created_at    DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			UNIQUE KEY uq_saved_locations_ulid (location_ulid),
			KEY idx_saved_locations_user (user_id),
			CONSTRAINT fk_saved_locations_user FOREIGN KEY (user_id) REFERENCES sys_user (id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},

	Postgres: {
		`CREATE TABLE IF NOT EXISTS sys_user (
			id              BIGSERIAL PRIMARY KEY,
			name            TEXT NOT NULL UNIQUE,
			password_digest TEXT NOT NULL,
			organization_id BIGINT NOT NULL DEFAULT 1,
			active          BOOLEAN NOT NULL DEFAULT TRUE,
			latitude        DOUBLE PRECISION,
			longitude       DOUBLE PRECISION,
			address         TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_log (
			id          BIGSERIAL PRIMARY KEY,
			event_ulid  CHAR(26) NOT NULL UNIQUE,
			user_id     BIGINT NOT NULL REFERENCES sys_user (id),
			type        SMALLINT NOT NULL CHECK (type IN (1, 2)),
			recorded_at TIMESTAMPTZ NOT NULL,
			latitude    DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
			longitude   DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
			address     TEXT,
			weather     TEXT,
			image       TEXT,
			signature   TEXT,
			remark      TEXT,
			imei        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_log_user ON attendance_log (user_id, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS saved_locations (
			id            BIGSERIAL PRIMARY KEY,
			location_ulid CHAR(26) NOT NULL UNIQUE,
			user_id       BIGINT NOT NULL REFERENCES sys_user (id),
			name          TEXT NOT NULL,
			latitude      DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
			longitude     DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_locations_user ON saved_locations (user_id)`,
	},

	SQLite: {
		`CREATE TABLE IF NOT EXISTS sys_user (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			name            TEXT NOT NULL UNIQUE,
			password_digest TEXT NOT NULL,
			organization_id INTEGER NOT NULL DEFAULT 1,
			active          INTEGER NOT NULL DEFAULT 1,
			latitude        REAL,
			longitude       REAL,
			address         TEXT,
			created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			event_ulid  TEXT NOT NULL UNIQUE,
			user_id     INTEGER NOT NULL REFERENCES sys_user (id),
			type        INTEGER NOT NULL CHECK (type IN (1, 2)),
			recorded_at TIMESTAMP NOT NULL,
			latitude    REAL NOT NULL CHECK (latitude BETWEEN -90 AND 90),
			longitude   REAL NOT NULL CHECK (longitude BETWEEN -180 AND 180),
			address     TEXT,
			weather     TEXT,
			image       TEXT,
			signature   TEXT,
			remark      TEXT,
			imei        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_log_user ON attendance_log (user_id, recorded_at)`,
		`CREATE TABLE IF NOT EXISTS saved_locations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			location_ulid TEXT NOT NULL UNIQUE,
			user_id       INTEGER NOT NULL REFERENCES sys_user (id),
			name          TEXT NOT NULL,
			latitude      REAL NOT NULL CHECK (latitude BETWEEN -90 AND 90),
			longitude     REAL NOT NULL CHECK (longitude BETWEEN -180 AND 180),
			created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_locations_user ON saved_locations (user_id)`,
	},
}
