package attendance

import (
	"github.com/gin-gonic/gin"

	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/request"
)

type Handler struct{ svc AttendanceService }

func RegisterRoutes(r gin.IRoutes, svc AttendanceService) {
	h := &Handler{svc: svc}
	r.POST("/attendance", h.MarkAttendance)
	r.POST("/exit", h.MarkExit)
	r.POST("/save-location", h.SaveLocation)
}

var errInvalidBody = apierr.ErrInvalid("Invalid request body")

func position(f request.Fields) Position {
	return Position{
		Latitude:  f.String("latitude"),
		Longitude: f.String("longitude"),
		Location:  f.String("location"),
	}
}

// deviceInfo is accepted but not stored.
func markRequest(f request.Fields) MarkRequest {
	return MarkRequest{
		Username:  f.String("username"),
		Position:  position(f),
		Signature: f.String("signature"),
		Image:     f.String("image"),
		Address:   f.String("address"),
		Weather:   f.String("weather"),
		Remark:    f.First("description", "remark"),
		IMEI:      f.String("imei"),
	}
}

// POST /attendance
func (h *Handler) MarkAttendance(c *gin.Context) {
	f, err := request.Bind(c)
	if err != nil {
		apierr.Write(c, errInvalidBody)
		return
	}
	res, err := h.svc.MarkAttendance(c.Request.Context(), markRequest(f))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	apierr.Success(c, "Attendance marked", gin.H{"event_id": res.EventID, "timestamp": res.Timestamp})
}

// POST /exit
func (h *Handler) MarkExit(c *gin.Context) {
	f, err := request.Bind(c)
	if err != nil {
		apierr.Write(c, errInvalidBody)
		return
	}
	res, err := h.svc.MarkExit(c.Request.Context(), markRequest(f))
	if err != nil {
		apierr.Write(c, err)
		return
	}
	apierr.Success(c, "Exit marked", gin.H{"event_id": res.EventID, "timestamp": res.Timestamp})
}

// POST /save-location
func (h *Handler) SaveLocation(c *gin.Context) {
	f, err := request.Bind(c)
	if err != nil {
		apierr.Write(c, errInvalidBody)
		return
	}
	res, err := h.svc.SaveLocation(c.Request.Context(), SaveLocationRequest{
		Username: f.String("username"),
		Name:     f.String("name"),
		Position: position(f),
	})
	if err != nil {
		apierr.Write(c, err)
		return
	}
	apierr.Success(c, "Location saved", gin.H{"location_id": res.LocationID})
}
