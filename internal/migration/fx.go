package migration

import (
	"strings"

	"github.com/smallbiznis/autotrade/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date for the configured database.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if strings.EqualFold(cfg.DBType, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("db_type", cfg.DBType))
		return nil
	}

	if !cfg.DBAutoMigrate {
		log.Warn("schema migration skipped", zap.String("db_type", cfg.DBType))
		return nil
	}
	if err := AutoMigrate(conn); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("db_type", cfg.DBType))
	return nil
}
