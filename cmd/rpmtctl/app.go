package main

import (
	"context"
	"fmt"

	"rpmt/config"
	"rpmt/database"
	"rpmt/services"
	"rpmt/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app bündelt die Abhängigkeiten, die die Befehle brauchen.
type app struct {
	DB      *gorm.DB
	Users   *services.UserService
	Sweeper *services.Sweeper
	Outbox  *services.Outbox // nil, wenn ohne Objektspeicher geöffnet
	Logger  *zap.Logger

	release func()
}

func (a *app) Close() {
	if a.release != nil {
		a.release()
	}
}

// opener öffnet die Anwendung; withStore verbindet zusätzlich den Objektspeicher.
type opener func(ctx context.Context, withStore bool) (*app, error)

func openApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		DB:      db,
		Users:   services.NewUserService(db, logger),
		Sweeper: services.NewSweeper(db, logger),
		Logger:  logger,
		release: func() {
			_ = logger.Sync()
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}
	if withStore {
		store, err := storage.NewS3Store(ctx, storage.OptionsFromConfig(cfg))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open object store: %w", err)
		}
		a.Outbox = services.NewOutbox(db, store, logger)
	}
	return a, nil
}
