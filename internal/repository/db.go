package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/model"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens postgres:// or sqlite:// DSNs and migrates the schema.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := "sqlite://folio.db"
	if cfg != nil && cfg.Database.DSN != "" {
		dsn = cfg.Database.DSN
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(sqliteDSN(strings.TrimPrefix(dsn, "sqlite://")))
	default:
		return nil, fmt.Errorf("unsupported database dsn %q", dsn)
	}

	logLevel := gormlogger.Warn
	if cfg != nil && strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	maxOpen, maxIdle := 20, 5
	if cfg != nil && cfg.Database.MaxOpenConns > 0 {
		maxOpen = cfg.Database.MaxOpenConns
	}
	if cfg != nil && cfg.Database.MaxIdleConns > 0 {
		maxIdle = cfg.Database.MaxIdleConns
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.VisitRecord{}, &model.Entity{}, &model.TranslatableField{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// sqlite needs foreign keys switched on per connection for cascades.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}
