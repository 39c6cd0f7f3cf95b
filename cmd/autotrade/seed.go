package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/migration"
	"github.com/smallbiznis/autotrade/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo customers and vehicles into a development database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			app := fx.New(
				coreModules(),
				migration.Module,
				fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
					res, err := seed.EnsureDemoData(ctx, conn, node, clk)
					if err != nil {
						return err
					}
					log.Info("demo data ensured",
						zap.Bool("customer_created", res.CustomerCreated),
						zap.Int("vehicles_created", res.VehiclesCreated),
					)
					return nil
				}),
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(ctx)
		},
	}
}
