// Package main contains the shopradar CLI commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shopradar/shopradar/internal/cli"
	"github.com/shopradar/shopradar/internal/common"
	"github.com/shopradar/shopradar/internal/config"
	"github.com/shopradar/shopradar/internal/engine"
	"github.com/shopradar/shopradar/internal/model"
	"github.com/shopradar/shopradar/internal/oracle"
	"github.com/shopradar/shopradar/internal/places"
	"github.com/shopradar/shopradar/internal/storage"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find and rank shops near a location",
		Long: `Search for shops matching a query, enrich each candidate with scored
reviews, and print up to --count results ranked by predicted rating.

Examples:
  shopradar search "board games" --lat 52.52 --lng 13.405
  shopradar search vinyl --lat 40.73 --lng -73.99 --radius-km 2 --count 3
  shopradar search tea --lat 51.51 --lng -0.13 --skip ChIJabc123`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	// Flags
	cmd.Flags().Float64("lat", 0, "Search center latitude (required)")
	cmd.Flags().Float64("lng", 0, "Search center longitude (required)")
	cmd.Flags().Float64("radius-km", 5, "Search radius in kilometers")
	cmd.Flags().IntP("reviews", "r", model.DefaultSampleSize, "Reviews to analyze per shop")
	cmd.Flags().IntP("count", "c", model.DefaultDesiredCount, "Number of ranked results to return")
	cmd.Flags().StringSlice("skip", nil, "Place IDs to exclude from results")
	cmd.Flags().Duration("timeout", 0, "Overall deadline for the search (0 = none)")

	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	// Bind to viper (errors are rare and can be ignored in practice)
	_ = viper.BindPFlag("search.lat", cmd.Flags().Lookup("lat"))
	_ = viper.BindPFlag("search.lng", cmd.Flags().Lookup("lng"))
	_ = viper.BindPFlag("search.radius_km", cmd.Flags().Lookup("radius-km"))
	_ = viper.BindPFlag("search.reviews", cmd.Flags().Lookup("reviews"))
	_ = viper.BindPFlag("search.count", cmd.Flags().Lookup("count"))
	_ = viper.BindPFlag("search.skip", cmd.Flags().Lookup("skip"))
	_ = viper.BindPFlag("search.timeout", cmd.Flags().Lookup("timeout"))

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if timeout := viper.GetDuration("search.timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	query := strings.Join(args, " ")

	req := model.SearchRequest{
		Query:        query,
		Lat:          viper.GetFloat64("search.lat"),
		Lng:          viper.GetFloat64("search.lng"),
		RadiusMeters: int(viper.GetFloat64("search.radius_km") * 1000),
		SampleSize:   viper.GetInt("search.reviews"),
		DesiredCount: viper.GetInt("search.count"),
	}
	if skip := viper.GetStringSlice("search.skip"); len(skip) > 0 {
		req.SkipIDs = make(map[string]bool, len(skip))
		for _, id := range skip {
			req.SkipIDs[id] = true
		}
	}

	slog.Info("Starting shop search", "query", query)

	// Initialize storage
	store, err := storage.NewSQLiteStore(config.DatabasePath())
	if err != nil {
		return common.NewUserError("failed to open cache database", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close cache database", "error", closeErr)
		}
	}()

	// Run migrations
	if migrateErr := store.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("failed to run migrations: %w", migrateErr)
	}

	// Initialize the Places client
	placesCfg, err := config.LoadPlacesConfig()
	if err != nil {
		return err
	}
	placesClient, err := places.NewClient(ctx, placesCfg)
	if err != nil {
		return fmt.Errorf("failed to create places client: %w", err)
	}

	// Initialize the scoring oracle
	scorer, err := oracle.New(config.LoadOracleConfig())
	if err != nil {
		return err
	}
	defer scorer.Close()

	eng := engine.NewWithConfig(placesClient, placesClient, scorer, store, config.LoadEngineConfig())

	req = req.Normalize()
	bar := newSearchProgressBar(req.DesiredCount)
	eng.Progress = func(collected, _ int) {
		if err := bar.Set(collected); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	results, err := eng.Enrich(ctx, req)
	if err != nil {
		return err
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stdout)

	fmt.Fprintln(os.Stdout, cli.FormatTitle(fmt.Sprintf("Top shops for %q", query)))
	fmt.Fprintln(os.Stdout, cli.RenderResults(results))

	return nil
}

func newSearchProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Enriching shops...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
