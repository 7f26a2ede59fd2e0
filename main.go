package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rpmt/config"
	"rpmt/database"
	"rpmt/providers/crossref"
	"rpmt/services"
	"rpmt/storage"
	"rpmt/web"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load error: %v", err)
	}

	logging, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Datenbank
	db, err := database.Open(cfg)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err), zap.String("driver", cfg.DBDriver))
	}
	logging.Info("Successfully connected to database.", zap.String("driver", cfg.DBDriver))

	logging.Info("Running database auto-migration...")
	if err := database.Migrate(db); err != nil {
		logging.Fatal("Database migration failed", zap.Error(err))
	}

	// Objektspeicher
	store, err := storage.NewS3Store(ctx, storage.OptionsFromConfig(cfg))
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	// Services
	services.RegisterMetrics()
	web.RegisterMetrics()

	users := services.NewUserService(db, logging)
	if err := users.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		logging.Fatal("Bootstrap admin creation failed", zap.Error(err))
	}
	outbox := services.NewOutbox(db, store, logging)
	proofs := services.NewProofManager(db, store, outbox, logging)
	projects := services.NewProjectService(db, services.NewReconciler(db, logging), proofs, outbox, logging)
	sweeper := services.NewSweeper(db, logging)

	// Cron
	scheduler := services.NewScheduler(logging)
	mustSchedule := func(name, schedule string, job func(context.Context) error) {
		if err := scheduler.Add(name, schedule, job); err != nil {
			logging.Fatal("Invalid schedule", zap.Error(err))
		}
	}
	mustSchedule("sweep", cfg.SweepSchedule, func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	})
	mustSchedule("outbox", cfg.OutboxSchedule, func(ctx context.Context) error {
		_, err := outbox.Drain(ctx, 0)
		return err
	})
	if cfg.CrossrefEnabled {
		refresher := services.NewCitationRefresher(db, crossref.NewClient(cfg, logging), logging)
		mustSchedule("citations", cfg.CitationSchedule, func(ctx context.Context) error {
			_, err := refresher.Run(ctx)
			return err
		})
		logging.Info("Crossref citation refresh enabled", zap.String("schedule", cfg.CitationSchedule))
	}
	scheduler.Start()

	// Router
	server := web.NewServer(web.Options{
		Config:   cfg,
		DB:       db,
		Store:    store,
		Users:    users,
		Projects: projects,
		Report:   services.NewReport(projects, store),
		Sweeper:  sweeper,
		Logger:   logging,
	})

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logging.Warn("Scheduled jobs did not finish in time", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logging.Info("Server stopped")
}
