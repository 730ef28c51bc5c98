package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:          "users-api",
		Short:        "CRUD HTTP service over the users table",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.AddCommand(serve, newMigrateCmd())

	return root
}
