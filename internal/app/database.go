package app

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/talkincode/storefront/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// getDatabase opens postgres, or a sqlite file under the data directory for local runs.
func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(sqlitePath(cfg.Name, workdir))
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		zap.S().Panicf("open %s database: %v", cfg.Type, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Panicf("database handle: %v", err)
	}
	if cfg.Type == "sqlite" {
		// one writer at a time
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db
}

func sqlitePath(name, workdir string) string {
	switch {
	case name == "":
		return path.Join(workdir, "data", "storefront.db")
	case strings.HasPrefix(name, "file:"), strings.Contains(name, "/"):
		return name
	default:
		if !strings.HasSuffix(name, ".db") {
			name += ".db"
		}
		return path.Join(workdir, "data", name)
	}
}
