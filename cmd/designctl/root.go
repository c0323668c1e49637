package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jo-hoe/designcase/internal/core"
	"github.com/spf13/cobra"
)

var (
	configPath string
	appConfig  *core.ServiceConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "designctl",
	Short: "Administrative tasks for the designcase upload service",
	Long: `designctl runs maintenance tasks against the same database and object
storage the server uses. It reads the server configuration file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config.yaml (CONFIG_PATH)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(signURLCmd)
	rootCmd.AddCommand(tokenCmd)
}

func defaultConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join(".", "config.yaml")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}
	appConfig = config
	return nil
}

// withCoreService builds the service for one command and closes it afterwards
func withCoreService(cmd *cobra.Command, run func(ctx context.Context, service *core.CoreService) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := core.NewCoreServiceFromConfig(ctx, appConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer func() {
		if cerr := service.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", cerr)
		}
	}()
	return run(ctx, service)
}
