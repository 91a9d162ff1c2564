package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/auth"
	"attendance-backend/internal/platform/db"
	"attendance-backend/internal/testutil"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n int }

func (g *seqIDs) New(time.Time) (string, error) {
	g.n++
	return fmt.Sprintf("ID%04d", g.n), nil
}

var testNow = time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)

// newTestService returns a service over a fresh SQLite database with alice
// (active) and carol (inactive) registered.
func newTestService(t *testing.T) (*Service, *db.DB, *test.Hook) {
	t.Helper()
	d := testutil.SetupTestDB(t)

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	users := auth.NewService(d, hasher)
	_, err = users.Signup(context.Background(), auth.SignupRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	_, err = users.Signup(context.Background(), auth.SignupRequest{Username: "carol", Password: "secret"})
	require.NoError(t, err)
	deactivate(t, d, "carol")

	log, hook := test.NewNullLogger()
	svc := NewService(d, log)
	svc.clock = fixedClock{testNow}
	svc.id = &seqIDs{}
	return svc, d, hook
}

func deactivate(t *testing.T, d *db.DB, name string) {
	t.Helper()
	store := auth.NewStore(d)
	u, err := store.FindByName(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, u)
	testutil.ExecSQL(t, d, "UPDATE sys_user SET active = ? WHERE id = ?", false, u.ID)
}

func validMark() MarkRequest {
	return MarkRequest{
		Username:  "alice",
		Position:  Position{Latitude: "12.9", Longitude: "77.6"},
		Signature: "sig",
		Image:     "img",
	}
}

func eventCount(t *testing.T, d *db.DB) int {
	t.Helper()
	return testutil.CountRows(t, d, "SELECT COUNT(*) FROM attendance_log")
}

func TestMarkAttendance(t *testing.T) {
	svc, d, hook := newTestService(t)

	in := validMark()
	in.Address = "MG Road"
	in.Weather = "sunny"
	in.Remark = "on time"
	in.IMEI = "356938035643809"

	res, err := svc.MarkAttendance(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "ID0001", res.EventID)
	assert.Equal(t, TypeClockIn, res.Type)
	assert.Equal(t, testNow, res.Timestamp)

	assert.Equal(t, 1, testutil.CountRows(t, d,
		`SELECT COUNT(*) FROM attendance_log l JOIN sys_user u ON u.id = l.user_id
		 WHERE u.name = ? AND l.type = 1 AND l.event_ulid = ? AND l.address = ? AND l.weather = ?
		   AND l.remark = ? AND l.imei = ? AND l.signature = ? AND l.image = ?`,
		"alice", "ID0001", "MG Road", "sunny", "on time", "356938035643809", "sig", "img"))

	u, err := auth.NewStore(d).FindByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.InDelta(t, 12.9, u.Latitude.Float64, 1e-9)
	assert.InDelta(t, 77.6, u.Longitude.Float64, 1e-9)
	assert.Equal(t, "MG Road", u.Address.String)

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "attendance event recorded", hook.LastEntry().Message)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestMarkExitRecordsClockOut(t *testing.T) {
	svc, d, _ := newTestService(t)

	in := validMark()
	in.Position = Position{Location: "12.97, 77.59"}
	res, err := svc.MarkExit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, TypeClockOut, res.Type)
	assert.Equal(t, 1, testutil.CountRows(t, d, "SELECT COUNT(*) FROM attendance_log WHERE type = 2"))
	assert.Equal(t, 0, testutil.CountRows(t, d, "SELECT COUNT(*) FROM attendance_log WHERE type = 1"))
}

func TestMarkRejects(t *testing.T) {
	tests := []struct {
		name string
		edit func(*MarkRequest)
		code apierr.Code
		msg  string
	}{
		{"missing username", func(r *MarkRequest) { r.Username = " " }, apierr.CodeInvalidArgument, "Missing username"},
		{"missing location", func(r *MarkRequest) { r.Position = Position{} }, apierr.CodeInvalidArgument, "Missing location"},
		{"half pair", func(r *MarkRequest) { r.Position = Position{Latitude: "12.9"} }, apierr.CodeInvalidArgument, "Missing location"},
		{"bad location string", func(r *MarkRequest) { r.Position = Position{Location: "12.9"} }, apierr.CodeInvalidArgument, "Invalid location"},
		{"non numeric", func(r *MarkRequest) { r.Position = Position{Latitude: "north", Longitude: "77"} }, apierr.CodeInvalidArgument, "Invalid location"},
		{"nan", func(r *MarkRequest) { r.Position = Position{Latitude: "NaN", Longitude: "77"} }, apierr.CodeInvalidArgument, "Invalid location"},
		{"latitude range", func(r *MarkRequest) { r.Position = Position{Latitude: "90.5", Longitude: "0"} }, apierr.CodeInvalidArgument, "Latitude must be between -90 and 90"},
		{"longitude range", func(r *MarkRequest) { r.Position = Position{Location: "0,-180.01"} }, apierr.CodeInvalidArgument, "Longitude must be between -180 and 180"},
		{"missing signature", func(r *MarkRequest) { r.Signature = "" }, apierr.CodeInvalidArgument, "Missing signature or image"},
		{"missing image", func(r *MarkRequest) { r.Image = "" }, apierr.CodeInvalidArgument, "Missing signature or image"},
		{"unknown user", func(r *MarkRequest) { r.Username = "ghost" }, apierr.CodeUnauthenticated, "Unknown user"},
		{"inactive user", func(r *MarkRequest) { r.Username = "carol" }, apierr.CodeUnauthenticated, "Unknown user"},
		{"unknown user before range", func(r *MarkRequest) {
			r.Username = "ghost"
			r.Position = Position{Latitude: "95", Longitude: "0"}
		}, apierr.CodeUnauthenticated, "Unknown user"},
		{"unknown user before parse", func(r *MarkRequest) {
			r.Username = "ghost"
			r.Position = Position{Location: "somewhere"}
		}, apierr.CodeUnauthenticated, "Unknown user"},
		{"evidence before user", func(r *MarkRequest) {
			r.Username = "ghost"
			r.Image = ""
		}, apierr.CodeInvalidArgument, "Missing signature or image"},
		// username is checked before the location
		{"order", func(r *MarkRequest) {
			r.Username = ""
			r.Position = Position{}
		}, apierr.CodeInvalidArgument, "Missing username"},
	}

	svc, d, _ := newTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validMark()
			tt.edit(&in)

			_, err := svc.MarkAttendance(context.Background(), in)
			var api *apierr.APIError
			require.ErrorAs(t, err, &api)
			assert.Equal(t, tt.code, api.Code)
			assert.Equal(t, tt.msg, api.Message)
			assert.Equal(t, 0, eventCount(t, d))
		})
	}
}

func TestMarkBoundaryCoordinates(t *testing.T) {
	svc, d, _ := newTestService(t)

	for _, p := range []Position{
		{Latitude: "-90", Longitude: "-180"},
		{Latitude: "90", Longitude: "180"},
		{Location: "0,0"},
	} {
		in := validMark()
		in.Position = p
		_, err := svc.MarkAttendance(context.Background(), in)
		require.NoError(t, err, "%+v", p)
	}
	assert.Equal(t, 3, eventCount(t, d))
}

func TestSaveLocation(t *testing.T) {
	svc, d, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.SaveLocation(ctx, SaveLocationRequest{
		Username: "alice",
		Name:     "Home",
		Position: Position{Latitude: "12.9", Longitude: "77.6"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ID0001", res.LocationID)

	// one row per call
	_, err = svc.SaveLocation(ctx, SaveLocationRequest{Username: "alice", Name: "Home", Position: Position{Location: "1,2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CountRows(t, d,
		`SELECT COUNT(*) FROM saved_locations s JOIN sys_user u ON u.id = s.user_id WHERE u.name = ? AND s.name = ?`,
		"alice", "Home"))
}

func TestSaveLocationRejects(t *testing.T) {
	svc, d, _ := newTestService(t)

	tests := []struct {
		name string
		in   SaveLocationRequest
		code apierr.Code
	}{
		{"unknown user", SaveLocationRequest{Username: "ghost", Name: "Home", Position: Position{Latitude: "1", Longitude: "2"}}, apierr.CodeUnauthenticated},
		{"inactive user", SaveLocationRequest{Username: "carol", Name: "Home", Position: Position{Latitude: "1", Longitude: "2"}}, apierr.CodeUnauthenticated},
		{"unknown user before range", SaveLocationRequest{Username: "ghost", Name: "Home", Position: Position{Latitude: "95", Longitude: "2"}}, apierr.CodeUnauthenticated},
		{"missing name", SaveLocationRequest{Username: "alice", Position: Position{Latitude: "1", Longitude: "2"}}, apierr.CodeInvalidArgument},
		{"out of range", SaveLocationRequest{Username: "alice", Name: "Home", Position: Position{Latitude: "91", Longitude: "2"}}, apierr.CodeInvalidArgument},
		{"missing coordinates", SaveLocationRequest{Username: "alice", Name: "Home"}, apierr.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveLocation(context.Background(), tt.in)
			var api *apierr.APIError
			require.ErrorAs(t, err, &api)
			assert.Equal(t, tt.code, api.Code)
			assert.Equal(t, 0, testutil.CountRows(t, d, "SELECT COUNT(*) FROM saved_locations"))
		})
	}
}

// failingEvents lets the user lookup succeed and the insert fail.
type failingEvents struct{ err error }

func (f failingEvents) RecordEvent(context.Context, *Event) (int64, error) { return 0, f.err }
func (f failingEvents) SaveLocation(context.Context, string, *SavedLocation) (int64, error) {
	return 0, f.err
}

func TestMarkPersistenceFailure(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.store = failingEvents{err: fmt.Errorf("disk I/O error")}

	_, err := svc.MarkAttendance(context.Background(), validMark())
	var api *apierr.APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, apierr.CodeInternal, api.Code)
	assert.Equal(t, "Attendance failed: disk I/O error", api.Message)

	_, err = svc.SaveLocation(context.Background(), SaveLocationRequest{Username: "alice", Name: "Home", Position: Position{Location: "1,2"}})
	require.ErrorAs(t, err, &api)
	assert.Equal(t, "Save location failed: disk I/O error", api.Message)
}
