package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anmolarora1/em/infrastructure/config"
	"github.com/anmolarora1/em/infrastructure/di"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "em",
		Short:         "A thought graph outliner with local and remote sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, importCmd, treeCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withContainer builds and starts the container, runs fn and waits for every queued
// write before returning
func withContainer(ctx context.Context, fn func(ctx context.Context, c *di.Container) error) error {
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()
	defer container.Logger.Sync() //nolint:errcheck

	if err := container.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, container)
	if err := container.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
