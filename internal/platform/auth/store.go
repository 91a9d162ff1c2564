package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"attendance-backend/internal/platform/db"
)

var ErrUsernameTaken = errors.New("username already exists")

type User struct {
	ID             int64           `db:"id"`
	Name           string          `db:"name"`
	PasswordDigest string          `db:"password_digest"`
	OrganizationID int64           `db:"organization_id"`
	Active         bool            `db:"active"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	Address        sql.NullString  `db:"address"`
}

type UserStore interface {
	Create(ctx context.Context, u *User) (int64, error)
	FindByName(ctx context.Context, name string) (*User, error)
	UpdateLocation(ctx context.Context, id int64, lat, lon float64, address string) (int64, error)
}

type Store struct{ db *db.DB }

func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Create inserts a user. Username uniqueness is left to the table's unique
// constraint; a violation comes back as ErrUsernameTaken.
func (s *Store) Create(ctx context.Context, u *User) (int64, error) {
	const q = `
INSERT INTO sys_user (name, password_digest, organization_id, active)
VALUES (?, ?, ?, ?)`

	var id int64
	err := s.db.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		id, err = s.db.InsertID(ctx, conn, q, u.Name, u.PasswordDigest, u.OrganizationID, u.Active)
		return err
	})
	if db.IsDuplicateKey(err) {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByName returns nil, nil when no user has that name.
func (s *Store) FindByName(ctx context.Context, name string) (*User, error) {
	const q = `
SELECT id, name, password_digest, organization_id, active, latitude, longitude, address
FROM sys_user
WHERE name = ?
LIMIT 1`

	var u User
	err := s.db.Get(ctx, &u, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateLocation stores the user's last known position.
func (s *Store) UpdateLocation(ctx context.Context, id int64, lat, lon float64, address string) (int64, error) {
	const q = `UPDATE sys_user SET latitude = ?, longitude = ?, address = ? WHERE id = ?`

	var n int64
	err := s.db.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		n, err = s.db.Exec(ctx, conn, q, lat, lon, nullString(address), id)
		return err
	})
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
