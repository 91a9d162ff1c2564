package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/platform/auth"
	"attendance-backend/internal/platform/config"
	"attendance-backend/internal/platform/db"
	"attendance-backend/internal/platform/logging"
	"attendance-backend/internal/router"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reports a config error through log and exits via log.ExitFunc.
func loadConfig(log *logrus.Logger, path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).WithField("config_file", path).Fatal("failed to load config")
		return nil
	}
	return cfg
}

func main() {
	// 設定読み込み
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = config.DefaultConfigFile
	}
	// ロガー設定前なので既定のlogrusで出力
	cfg := loadConfig(logrus.New(), path)

	log := logging.New(cfg.LogLevel, cfg.Mode)
	log.WithField("mode", cfg.Mode).Info("starting attendance backend")

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		log.WithError(err).Fatal("invalid BCRYPT_COST")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer conn.Close()

	// DBが起動前でもサーバーは立ち上げる
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DB.QueryTimeout)
	if err := conn.Ping(ctx); err != nil {
		log.WithError(err).Warn("database not reachable yet")
	} else {
		log.WithField("dialect", conn.Dialect()).Info("connected to database")
	}
	cancel()

	if err := conn.Bootstrap(context.Background()); err != nil {
		log.WithError(err).Error("schema bootstrap failed")
	}

	if cfg.Mode == config.ModeRelease {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.New(router.Deps{
		Config:     cfg,
		Log:        log,
		Auth:       auth.NewService(conn, hasher),
		Attendance: attendance.NewService(conn, log),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLSEnabled() {
			log.WithField("addr", srv.Addr).Info("listening (TLS)")
			err = srv.ListenAndServeTLS(cfg.Certificate.Cert, cfg.Certificate.Key)
		} else {
			log.WithField("addr", srv.Addr).Info("listening")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")

	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
