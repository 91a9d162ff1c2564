package attendance

import (
	"database/sql"
	"time"
)

// EventType is the attendance_log.type column.
type EventType int

const (
	TypeClockIn  EventType = 1
	TypeClockOut EventType = 2
)

func (t EventType) String() string {
	switch t {
	case TypeClockIn:
		return "clock-in"
	case TypeClockOut:
		return "clock-out"
	default:
		return "unknown"
	}
}

// Event is one append-only attendance_log row.
type Event struct {
	ID         int64          `db:"id"`
	ULID       string         `db:"event_ulid"`
	UserID     int64          `db:"user_id"`
	Type       EventType      `db:"type"`
	RecordedAt time.Time      `db:"recorded_at"`
	Latitude   float64        `db:"latitude"`
	Longitude  float64        `db:"longitude"`
	Address    sql.NullString `db:"address"`
	Weather    sql.NullString `db:"weather"`
	Image      sql.NullString `db:"image"`
	Signature  sql.NullString `db:"signature"`
	Remark     sql.NullString `db:"remark"`
	IMEI       sql.NullString `db:"imei"`
}

// SavedLocation is a named position a user stored for later.
type SavedLocation struct {
	ID        int64   `db:"id"`
	ULID      string  `db:"location_ulid"`
	UserID    int64   `db:"user_id"`
	Name      string  `db:"name"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
}

// 空文字はNULLとして保存
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
