package database

import (
	"fmt"

	"rpmt/config"
	"rpmt/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open öffnet die konfigurierte Datenbank (PostgreSQL oder SQLite).
func Open(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		return open(postgres.Open(cfg.DSN()), cfg.IsDevelopment())
	case "sqlite":
		return OpenSQLite(cfg.DBSQLitePath+"?_foreign_keys=on&_busy_timeout=5000", cfg.IsDevelopment())
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLite öffnet eine SQLite-Datenbank. Fremdschlüssel müssen im DSN aktiviert sein
// (_foreign_keys=on), sonst greift das Kaskadenlöschen der Verknüpfungen nicht.
func OpenSQLite(dsn string, verbose bool) (*gorm.DB, error) {
	db, err := open(sqlite.Open(dsn), verbose)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serialisiert Schreibzugriffe ohnehin; eine Verbindung vermeidet SQLITE_BUSY
	// und hält In-Memory-Datenbanken am Leben.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func open(dialector gorm.Dialector, verbose bool) (*gorm.DB, error) {
	level := logger.Silent
	if verbose {
		level = logger.Warn
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

// Migrate legt alle Tabellen an bzw. aktualisiert sie.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Author{},
		&models.Editor{},
		&models.Project{},
		&models.AuthorProject{},
		&models.EditorProject{},
		&models.PendingDeletion{},
	)
}
