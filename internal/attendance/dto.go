package attendance

import (
	"strings"
	"time"

	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/request"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

var (
	errMissingUsername = apierr.ErrInvalid("Missing username")
	errMissingLocation = apierr.ErrInvalid("Missing location")
	errInvalidLocation = apierr.ErrInvalid("Invalid location")
	errLatitudeRange   = apierr.ErrInvalid("Latitude must be between -90 and 90")
	errLongitudeRange  = apierr.ErrInvalid("Longitude must be between -180 and 180")
	errMissingEvidence = apierr.ErrInvalid("Missing signature or image")
	errMissingLabel    = apierr.ErrInvalid("Missing location name")
	errUnknownUser     = apierr.ErrUnauthenticated("Unknown user")
)

// Position is the raw location input of a request: either a latitude and
// longitude pair or a single "lat,lon" string.
type Position struct {
	Latitude  string
	Longitude string
	Location  string
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Present reports whether either form of location was sent at all.
func (p Position) Present() bool {
	pair := strings.TrimSpace(p.Latitude) != "" && strings.TrimSpace(p.Longitude) != ""
	return pair || strings.TrimSpace(p.Location) != ""
}

// Resolve parses and range-checks the position. An explicit pair wins over Location.
func (p Position) Resolve() (Coordinates, error) {
	lat, lon := strings.TrimSpace(p.Latitude), strings.TrimSpace(p.Longitude)
	if lat == "" || lon == "" {
		loc := strings.TrimSpace(p.Location)
		if loc == "" {
			return Coordinates{}, errMissingLocation
		}
		parts := strings.Split(loc, ",")
		if len(parts) != 2 {
			return Coordinates{}, errInvalidLocation
		}
		lat, lon = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	la, err := request.ParseFloat(lat)
	if err != nil {
		return Coordinates{}, errInvalidLocation
	}
	lo, err := request.ParseFloat(lon)
	if err != nil {
		return Coordinates{}, errInvalidLocation
	}

	c := Coordinates{Latitude: la, Longitude: lo}
	return c, c.Validate()
}

func (c Coordinates) Validate() error {
	if c.Latitude < MinLatitude || c.Latitude > MaxLatitude {
		return errLatitudeRange
	}
	if c.Longitude < MinLongitude || c.Longitude > MaxLongitude {
		return errLongitudeRange
	}
	return nil
}

// MarkRequest is the body of POST /attendance and POST /exit.
type MarkRequest struct {
	Username  string
	Position  Position
	Signature string
	Image     string
	Address   string
	Weather   string
	Remark    string
	IMEI      string
}

type MarkResponse struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaveLocationRequest is the body of POST /save-location.
type SaveLocationRequest struct {
	Username string
	Name     string
	Position Position
}

type SaveLocationResponse struct {
	LocationID string `json:"location_id"`
}
