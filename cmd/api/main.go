package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"httpupload/internal/config"
	"httpupload/internal/database"
	"httpupload/internal/domain/policy"
	"httpupload/internal/domain/slot"
	"httpupload/internal/metrics"
	"httpupload/internal/middleware"
	"httpupload/internal/pkg/logger"
	"httpupload/internal/storage/blob"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("setup logger")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	a, err := newApp(cfg, db, afero.NewOsFs())
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}

	if cfg.CleanupSchedule != "" {
		scheduler, err := a.cleanup.Schedule(cfg.CleanupSchedule, slot.CleanupOptions{
			ReclaimReserved: true,
			ExpireStored:    true,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("schedule cleanup")
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http upload service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

type app struct {
	router  *gin.Engine
	cleanup *slot.CleanupService
}

// newApp migrates the schema and wires the services and routes.
func newApp(cfg *config.Config, db *gorm.DB, fs afero.Fs) (*app, error) {
	if err := database.Migrate(db, &slot.Slot{}); err != nil {
		return nil, err
	}

	store, err := blob.New(fs, cfg.UploadRoot, cfg.MaxPathLength)
	if err != nil {
		return nil, err
	}

	resolver, err := policy.NewResolver(cfg.Rules, cfg.PolicyCacheSize)
	if err != nil {
		return nil, err
	}

	settings := cfg.SlotSettings()
	repo := slot.NewRepository(db)
	slotService := slot.NewService(repo, resolver, store, settings)
	exchangeService := slot.NewExchangeService(repo, store, settings)

	r := gin.New()
	r.Use(
		middleware.ErrorLogger(),
		middleware.AccessLogger(),
		middleware.Metrics(),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rules": resolver.Len()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	slot.RegisterRoutes(r, slot.NewHandler(slotService, exchangeService))

	return &app{
		router:  r,
		cleanup: slot.NewCleanupService(repo, store, settings),
	}, nil
}
