package config

import (
	"fmt"
	"log"

	"admissions-api/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the database selected by DB_DRIVER and stores it in DB.
func InitDB(settings Settings) (*gorm.DB, error) {
	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if settings.IsProduction() && !settings.DebugSQL {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if settings.DBDriver == "sqlite" {
		// sqlite allows a single writer; serialise through one connection.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	DB = db
	log.Printf("database connected (driver=%s)", settings.DBDriver)
	return db, nil
}

func dialectorFor(settings Settings) (gorm.Dialector, error) {
	switch settings.DBDriver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			settings.DBUser,
			settings.DBPassword,
			settings.DBHost,
			settings.DBPort,
			settings.DBName,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		if settings.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for postgres")
		}
		return postgres.Open(settings.DatabaseURL), nil
	case "sqlite":
		return sqlite.Open(settings.DBPath + "?_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", settings.DBDriver)
	}
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Application{},
		&models.Payment{},
		&models.ApplicationFile{},
		&models.ApplicationStatusHistory{},
		&models.NotificationOutbox{},
		&models.MailBroadcast{},
		&models.AdminUser{},
	)
}
