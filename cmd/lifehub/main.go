package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lifehub/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "lifehub",
	Short: "Personal budget and book journal",
	Long: `lifehub serves the budget and book journal web app.

Running without a subcommand is the same as "lifehub serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, snapshotCmd)
}

func main() {
	cli.LoadEnvFile()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
