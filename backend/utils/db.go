package utils

import (
	"database/sql"
	"fmt"
	"time"

	"learnhub/backend/config"
	"learnhub/backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the configured database and migrates the schema. SQLite is
// the default store; Postgres can be selected with DB_DRIVER=postgres.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := MigrateDB(db); err != nil {
		return nil, err
	}

	return db, nil
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.CourseContent{},
		&models.QuizQuestion{},
		&models.UserProgress{},
		&models.QuizAttempt{},
		&models.ClickstreamEvent{},
	)
}

// sqlTimeFormats covers the datetime text renderings of the supported
// drivers.
var sqlTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseSQLTime converts a datetime scanned as text into a *time.Time, nil
// for NULL or unparseable values. Aggregate columns like MAX(timestamp)
// lose the declared column type on SQLite, so raw scans read them as
// strings rather than time.Time.
func ParseSQLTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	for _, format := range sqlTimeFormats {
		if t, err := time.Parse(format, value.String); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
