package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ananth-NQI/segurobot-backend/internal/config"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the configured database. Driver "postgres" talks to Cloud SQL
// over its unix socket when INSTANCE_CONNECTION_NAME is set and to TCP
// otherwise; driver "sqlite" opens a local file.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	switch cfg.Driver {
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = postgresDSN(cfg)
		}
		if cfg.InstanceConnectionName != "" {
			log.Info("Connecting to Cloud SQL via socket", "instance", cfg.InstanceConnectionName)
		} else {
			log.Info("Connecting to PostgreSQL", "host", cfg.Host, "db", cfg.Name)
		}
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil

	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = filepath.Join("data", cfg.Name+".db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
		log.Info("Opening SQLite database", "path", path)
		db, err := gorm.Open(sqlite.Open(path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.InstanceConnectionName, cfg.User, cfg.Pass, cfg.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host, cfg.User, cfg.Pass, cfg.Name, cfg.Port)
}
