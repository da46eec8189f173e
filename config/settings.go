package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds the environment-driven configuration of the API process.
type Settings struct {
	Port        string
	GinMode     string
	Environment string

	DBDriver    string
	DBHost      string
	DBPort      string
	DBName      string
	DBUser      string
	DBPassword  string
	DatabaseURL string
	DBPath      string
	DebugSQL    bool

	UploadPath    string
	BlobBackend   string
	CloudinaryURL string

	AdminNotifyEmail string
	AppBaseURL       string
	CORSOrigins      []string

	ProgramCode   string
	AdmissionYear int
	IDSecret      string
	JWTSecret     string

	AdminBootstrapEmail    string
	AdminBootstrapPassword string

	EMIReminderCron    string
	BroadcastWorkers   int
	OutboxPollInterval time.Duration
}

// LoadSettings reads Settings from the process environment, applying defaults.
func LoadSettings() Settings {
	return Settings{
		Port:        envOr("SERVER_PORT", "8080"),
		GinMode:     os.Getenv("GIN_MODE"),
		Environment: strings.ToLower(os.Getenv("ENVIRONMENT")),

		DBDriver:    strings.ToLower(envOr("DB_DRIVER", "mysql")),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      envOr("DB_PORT", "3306"),
		DBName:      os.Getenv("DB_DATABASE"),
		DBUser:      os.Getenv("DB_USERNAME"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      envOr("DB_PATH", "admissions.db"),
		DebugSQL:    strings.ToLower(os.Getenv("DEBUG_SQL")) == "true",

		UploadPath:    envOr("UPLOAD_PATH", "./uploads"),
		BlobBackend:   strings.ToLower(envOr("BLOB_BACKEND", "local")),
		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),

		AdminNotifyEmail: os.Getenv("ADMIN_NOTIFY_EMAIL"),
		AppBaseURL:       strings.TrimRight(envOr("APP_BASE_URL", "http://localhost:3000"), "/"),
		CORSOrigins:      strings.Split(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		ProgramCode:   strings.ToUpper(envOr("PROGRAM_CODE", "PGCERT")),
		AdmissionYear: envInt("ADMISSION_YEAR", time.Now().Year()),
		IDSecret:      envOr("ID_SECRET", "change-me-id-secret"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		AdminBootstrapEmail:    os.Getenv("ADMIN_BOOTSTRAP_EMAIL"),
		AdminBootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),

		EMIReminderCron:    envOr("EMI_REMINDER_CRON", "0 9 * * *"),
		BroadcastWorkers:   envInt("BROADCAST_WORKERS", 4),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
	}
}

// IsProduction reports whether ENVIRONMENT=production.
func (s Settings) IsProduction() bool {
	return s.Environment == "production"
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
