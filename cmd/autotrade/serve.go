package main

import (
	"github.com/smallbiznis/autotrade/internal/lock"
	"github.com/smallbiznis/autotrade/internal/migration"
	"github.com/smallbiznis/autotrade/internal/scheduler"
	"github.com/smallbiznis/autotrade/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				lock.Module,
				migration.Module,
				scheduler.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
