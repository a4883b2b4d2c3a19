// Command plancheck is the operator tool for stored training plans: it probes
// the date resolver, sweeps plans for grid repairs and reads archived
// snapshots.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"alcyxob/run-coach/internal/config"
	"alcyxob/run-coach/internal/logging"
	"alcyxob/run-coach/internal/repository"
	"alcyxob/run-coach/internal/repository/memory"
	"alcyxob/run-coach/internal/repository/mongo"
	"alcyxob/run-coach/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir string
	cfg       config.Config
	logger    *zap.Logger

	// Swapped out in tests.
	openRepositories = openConfiguredRepositories
	openArchive      = func(ctx context.Context) (storage.SnapshotArchive, error) {
		return storage.NewS3Archive(ctx, cfg.S3, logger)
	}
)

var rootCmd = &cobra.Command{
	Use:   "plancheck",
	Short: "Inspect and repair stored training plans",
	Long: `plancheck works against the same configuration as the API server
(config.yaml in --config, overridden by environment variables).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		loaded, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		l, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding config.yaml")
	rootCmd.AddCommand(resolveCmd, verifyCmd, snapshotCmd)
}

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

func openConfiguredRepositories(ctx context.Context) (repository.Set, func(), error) {
	if cfg.Storage.Backend == "memory" {
		return memory.NewStore().Set(), func() {}, nil
	}
	client, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return repository.Set{}, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	closeFn := func() {
		if err := mongo.DisconnectDB(client); err != nil {
			logger.Warn("disconnect mongodb", zap.Error(err))
		}
	}
	return mongo.NewRepositorySet(client.Database(cfg.Database.Name)), closeFn, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
