package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"attendance-backend/internal/platform/db"
)

// ErrUserNotFound is returned by SaveLocation when no active user has the
// given name. Nothing is written in that case.
var ErrUserNotFound = errors.New("user not found")

type EventStore interface {
	RecordEvent(ctx context.Context, e *Event) (int64, error)
	SaveLocation(ctx context.Context, username string, loc *SavedLocation) (int64, error)
}

type Store struct{ db *db.DB }

func NewStore(d *db.DB) *Store { return &Store{db: d} }

// RecordEvent appends one row to attendance_log.
func (s *Store) RecordEvent(ctx context.Context, e *Event) (int64, error) {
	const q = `
INSERT INTO attendance_log
	(event_ulid, user_id, type, recorded_at, latitude, longitude, address, weather, image, signature, remark, imei)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var id int64
	err := s.db.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		id, err = s.db.InsertID(ctx, conn, q,
			e.ULID, e.UserID, int(e.Type), e.RecordedAt.UTC(), e.Latitude, e.Longitude,
			e.Address, e.Weather, e.Image, e.Signature, e.Remark, e.IMEI,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SaveLocation resolves username and inserts the location on the same
// connection. The user id is taken from the lookup, never from the client.
func (s *Store) SaveLocation(ctx context.Context, username string, loc *SavedLocation) (int64, error) {
	const lookup = `SELECT id FROM sys_user WHERE name = ? AND active = ? LIMIT 1`
	const insert = `
INSERT INTO saved_locations (location_ulid, user_id, name, latitude, longitude)
VALUES (?, ?, ?, ?, ?)`

	var id int64
	err := s.db.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		var userID int64
		err := conn.GetContext(ctx, &userID, s.db.Rebind(lookup), username, true)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		loc.UserID = userID
		id, err = s.db.InsertID(ctx, conn, insert, loc.ULID, userID, loc.Name, loc.Latitude, loc.Longitude)
		return err
	})
	if err != nil {
		return 0, err
	}
	loc.ID = id
	return id, nil
}
