package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-lpr-service/internal/auth"
	"parking-lpr-service/internal/capture"
	"parking-lpr-service/internal/config"
	"parking-lpr-service/internal/db"
	httphandler "parking-lpr-service/internal/http"
	"parking-lpr-service/internal/repository"
	"parking-lpr-service/internal/service"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Directory containing config.yml.")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := run(configPath, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped")
	}
}

func run(configPath string, log zerolog.Logger) error {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tariffs, err := config.NewTariffHolder(v, log)
	if err != nil {
		return err
	}

	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}

	captures, err := capture.NewStore(cfg.Capture.RunDir)
	if err != nil {
		return err
	}

	repo := repository.NewLedgerRepository(gdb)
	sessions := service.NewSessionService(repo, tariffs, captures, cfg.Session.Scope, log)
	jwtSvc := auth.NewJWTService(cfg.Auth)
	handler := httphandler.NewHandler(sessions, tariffs, jwtSvc, log)

	if !cfg.Server.GinDebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
	}))

	handler.Register(router, auth.Middleware(jwtSvc))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("driver", cfg.Database.Driver).
			Str("scope", string(cfg.Session.Scope)).
			Msg("parking LPR service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
