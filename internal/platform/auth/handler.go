package auth

import (
	"github.com/gin-gonic/gin"

	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/request"
)

type AuthHandler struct{ svc AuthService }

func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
}

var errInvalidBody = apierr.ErrInvalid("Invalid request body")

func (h *AuthHandler) Signup(c *gin.Context) {
	f, err := request.Bind(c)
	if err != nil {
		apierr.Write(c, errInvalidBody)
		return
	}

	in := SignupRequest{
		Username: f.String("username"),
		Password: f.Raw("password"),
	}
	// organization is optional; both spellings appear in clients
	for _, key := range []string{"organization_id", "organizationId"} {
		org, ok, err := f.Int64(key)
		if err != nil {
			apierr.Write(c, apierr.ErrInvalid(err.Error()))
			return
		}
		if ok {
			in.OrganizationID = org
			break
		}
	}

	u, err := h.svc.Signup(c.Request.Context(), in)
	if err != nil {
		apierr.Write(c, err)
		return
	}
	apierr.Success(c, "Signup successful", gin.H{"username": u.Name})
}

func (h *AuthHandler) Login(c *gin.Context) {
	f, err := request.Bind(c)
	if err != nil {
		apierr.Write(c, errInvalidBody)
		return
	}

	u, err := h.svc.Login(c.Request.Context(), LoginRequest{
		Username: f.String("username"),
		Password: f.Raw("password"),
	})
	if err != nil {
		apierr.Write(c, err)
		return
	}
	apierr.Success(c, "Login successful", gin.H{"username": u.Name})
}

