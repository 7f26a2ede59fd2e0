package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"production"`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`

	// DBDriver wählt zwischen "postgres" (Standard) und "sqlite" (lokaler Betrieb).
	DBDriver     string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost       string `envconfig:"DB_HOST" default:"localhost"`
	DBPort       int    `envconfig:"DB_PORT" default:"5432"`
	DBUser       string `envconfig:"DB_USER"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	DBName       string `envconfig:"DB_NAME" default:"rpmt"`
	DBSQLitePath string `envconfig:"DB_SQLITE_PATH" default:"data.db"`

	SessionSecret      string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	SessionRememberTTL time.Duration `envconfig:"SESSION_REMEMBER_TTL" default:"720h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`
	// S3PublicURL ist die Basis für öffentliche Links; leer bedeutet <endpoint>/<bucket>.
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`

	SweepSchedule    string        `envconfig:"SWEEP_SCHEDULE" default:"@every 1h"`
	SweepMinInterval time.Duration `envconfig:"SWEEP_MIN_INTERVAL" default:"1m"`
	OutboxSchedule   string        `envconfig:"OUTBOX_SCHEDULE" default:"@every 5m"`

	// Crossref-API für automatische Zitationszahlen
	CrossrefEnabled  bool   `envconfig:"CROSSREF_ENABLED" default:"false"`
	CrossrefBaseURL  string `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`
	CrossrefMailto   string `envconfig:"CROSSREF_MAILTO"`
	CitationSchedule string `envconfig:"CITATION_SCHEDULE" default:"0 3 * * *"`

	MaxUploadMB int64 `envconfig:"MAX_UPLOAD_MB" default:"16"`

	// Optionales Start-Konto, wird nur angelegt, wenn noch kein Benutzer existiert.
	BootstrapAdminUser     string `envconfig:"BOOTSTRAP_ADMIN_USER"`
	BootstrapAdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// IsDevelopment meldet, ob die Anwendung im Entwicklungsmodus läuft.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
