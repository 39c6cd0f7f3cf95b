package main

import (
	"context"
	"time"

	"github.com/smallbiznis/autotrade/internal/config"
	"github.com/smallbiznis/autotrade/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			action := func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
				return migration.Apply(conn, cfg, log)
			}
			if down > 0 {
				action = func(conn *gorm.DB, _ config.Config, log *zap.Logger) error {
					sqlDB, err := conn.DB()
					if err != nil {
						return err
					}
					if err := migration.Rollback(sqlDB, down); err != nil {
						return err
					}
					log.Info("migrations rolled back", zap.Int("steps", down))
					return nil
				}
			}

			app := fx.New(
				coreModules(),
				fx.Invoke(action),
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(ctx)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migration steps instead of applying")
	return cmd
}
