package attendance

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/auth"
	"attendance-backend/internal/platform/db"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New(t time.Time) (string, error)
}

type ulidGen struct{}

func (ulidGen) New(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type AttendanceService interface {
	MarkAttendance(ctx context.Context, in MarkRequest) (*MarkResponse, error)
	MarkExit(ctx context.Context, in MarkRequest) (*MarkResponse, error)
	SaveLocation(ctx context.Context, in SaveLocationRequest) (*SaveLocationResponse, error)
}

// ===== Service本体 =====

type Service struct {
	store EventStore
	users auth.UserStore
	clock Clock
	id    IDGen
	log   logrus.FieldLogger
}

func NewService(d *db.DB, log logrus.FieldLogger) *Service {
	return &Service{
		store: NewStore(d),
		users: auth.NewStore(d),
		clock: realClock{},
		id:    ulidGen{},
		log:   log,
	}
}

// POST /attendance
func (s *Service) MarkAttendance(ctx context.Context, in MarkRequest) (*MarkResponse, error) {
	return s.mark(ctx, TypeClockIn, "Attendance", in)
}

// POST /exit
func (s *Service) MarkExit(ctx context.Context, in MarkRequest) (*MarkResponse, error) {
	return s.mark(ctx, TypeClockOut, "Exit", in)
}

// mark checks that every required field is present (username, location,
// evidence), then resolves the user, then parses and range-checks the
// position. The first failure wins.
func (s *Service) mark(ctx context.Context, typ EventType, op string, in MarkRequest) (*MarkResponse, error) {
	if auth.NormalizeUsername(in.Username) == "" {
		return nil, errMissingUsername
	}
	if !in.Position.Present() {
		return nil, errMissingLocation
	}
	if in.Signature == "" || in.Image == "" {
		return nil, errMissingEvidence
	}

	u, err := auth.ResolveActive(ctx, s.users, op, in.Username)
	if err != nil {
		return nil, err
	}
	pos, err := in.Position.Resolve()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	eventID, err := s.id.New(now)
	if err != nil {
		return nil, apierr.Persistence(op, err)
	}

	e := &Event{
		ULID:       eventID,
		UserID:     u.ID,
		Type:       typ,
		RecordedAt: now,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Address:    nullString(in.Address),
		Weather:    nullString(in.Weather),
		Image:      nullString(in.Image),
		Signature:  nullString(in.Signature),
		Remark:     nullString(in.Remark),
		IMEI:       nullString(in.IMEI),
	}
	if _, err := s.store.RecordEvent(ctx, e); err != nil {
		return nil, apierr.Persistence(op, err)
	}

	// 最終位置の更新は失敗してもイベント記録は成功扱い
	if _, err := s.users.UpdateLocation(ctx, u.ID, pos.Latitude, pos.Longitude, in.Address); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("failed to refresh last known location")
	}

	s.log.WithFields(logrus.Fields{
		"event_id": eventID,
		"user_id":  u.ID,
		"type":     typ.String(),
	}).Info("attendance event recorded")

	return &MarkResponse{EventID: eventID, Type: typ, Timestamp: now}, nil
}

// POST /save-location
func (s *Service) SaveLocation(ctx context.Context, in SaveLocationRequest) (*SaveLocationResponse, error) {
	name := auth.NormalizeUsername(in.Username)
	if name == "" {
		return nil, errMissingUsername
	}
	if in.Name == "" {
		return nil, errMissingLabel
	}
	if !in.Position.Present() {
		return nil, errMissingLocation
	}

	// 範囲チェックより先にユーザーを確認する
	if _, err := auth.ResolveActive(ctx, s.users, "Save location", name); err != nil {
		return nil, err
	}
	pos, err := in.Position.Resolve()
	if err != nil {
		return nil, err
	}

	locID, err := s.id.New(s.clock.Now())
	if err != nil {
		return nil, apierr.Persistence("Save location", err)
	}
	loc := &SavedLocation{
		ULID:      locID,
		Name:      in.Name,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	}
	_, err = s.store.SaveLocation(ctx, name, loc)
	if errors.Is(err, ErrUserNotFound) {
		return nil, errUnknownUser
	}
	if err != nil {
		return nil, apierr.Persistence("Save location", err)
	}
	return &SaveLocationResponse{LocationID: locID}, nil
}
