// Package router assembles the gin engine: middleware, API routes, CORS
// preflight answers and the frontend redirect.
package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/auth"
	"attendance-backend/internal/platform/config"
	"attendance-backend/internal/platform/logging"
)

const APIPrefix = "/api"

var (
	allowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	allowHeaders = []string{"Content-Type"}

	// preflight is answered for these paths under APIPrefix
	actionPaths = []string{"/signup", "/login", "/attendance", "/exit", "/save-location"}
)

type Deps struct {
	Config     *config.Config
	Log        logrus.FieldLogger
	Auth       auth.AuthService
	Attendance attendance.AttendanceService
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	_ = r.SetTrustedProxies(nil)

	r.Use(gin.Recovery(), logging.Middleware(d.Log), cors.New(corsConfig(d.Config.CORS)))

	preflight := preflightHandler(d.Config.CORS.AllowOrigins)

	// OPTIONS is answered on every path, registered or not
	r.NoMethod(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			preflight(c)
			return
		}
		apierr.Abort(c, apierr.ErrMethodNotAllowed("Method not allowed"))
	})
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			preflight(c)
			return
		}
		apierr.Abort(c, apierr.ErrNotFound("Not found"))
	})

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	frontend := d.Config.FrontendURL
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, frontend) })

	api := r.Group(APIPrefix)
	auth.RegisterRoutes(api, d.Auth)
	attendance.RegisterRoutes(api, d.Attendance)

	for _, p := range actionPaths {
		api.OPTIONS(p, preflight)
	}
	return r
}

func allowsAll(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

func corsConfig(c config.CORSConfig) cors.Config {
	cfg := cors.Config{
		AllowMethods: allowMethods,
		AllowHeaders: allowHeaders,
	}
	if allowsAll(c.AllowOrigins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = c.AllowOrigins
	}
	return cfg
}

// preflightHandler answers OPTIONS for clients that do not send Origin; the
// cors middleware already aborts real preflight requests before this runs.
func preflightHandler(origins []string) gin.HandlerFunc {
	methods := strings.Join(allowMethods, ", ")
	headers := strings.Join(allowHeaders, ", ")
	all := allowsAll(origins)

	return func(c *gin.Context) {
		switch origin := c.GetHeader("Origin"); {
		case all:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Status(http.StatusNoContent)
	}
}
