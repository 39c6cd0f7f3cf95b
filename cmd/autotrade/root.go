package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/clock"
	"github.com/smallbiznis/autotrade/internal/config"
	"github.com/smallbiznis/autotrade/internal/observability"
	"github.com/smallbiznis/autotrade/pkg/db"
	"github.com/smallbiznis/autotrade/pkg/db/retry"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "autotrade",
		Short:         "Invoice and payment back office for the dealership",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())
	return root
}

// coreModules are shared by every command that touches the database.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		retry.Module,
		clock.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
