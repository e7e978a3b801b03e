package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopradar/shopradar/internal/cli"
	"github.com/shopradar/shopradar/internal/common"
	"github.com/shopradar/shopradar/internal/config"
	"github.com/shopradar/shopradar/internal/storage"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the local enrichment cache",
	}

	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheCleanupCmd())

	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache record counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(store)

			positive, negative, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}

			content := fmt.Sprintf("Enriched shops:   %d\nSuppressed shops: %d", positive, negative)
			fmt.Fprintln(os.Stdout, cli.RenderBox(cli.CacheIcon+" Cache", content))
			return nil
		},
	}
}

func cacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired cache records",
		Long: `Delete cache records past their TTL. Reads already ignore expired rows;
cleanup just keeps the database from growing without bound.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(store)

			positiveTTL, negativeTTL := config.CacheTTLs()
			deleted, err := store.DeleteExpired(cmd.Context(), positiveTTL, negativeTTL)
			if err != nil {
				return fmt.Errorf("failed to delete expired records: %w", err)
			}

			fmt.Fprintln(os.Stdout, cli.FormatSuccess(fmt.Sprintf("Deleted %d expired records", deleted)))
			return nil
		},
	}
}

// openStore opens and migrates the cache database.
func openStore(cmd *cobra.Command) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(config.DatabasePath())
	if err != nil {
		return nil, common.NewUserError("failed to open cache database", err)
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.SQLiteStore) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close cache database", "error", err)
	}
}
