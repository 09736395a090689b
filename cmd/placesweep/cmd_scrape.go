package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"placesweep/internal/config"
	"placesweep/internal/geo"
	"placesweep/internal/here"
	"placesweep/internal/store"
	"placesweep/internal/sweep"
)

var (
	scrapeBBox       string
	scrapeSkipTo     string
	scrapeCategories []string
)

// scrapeCmd sweeps a bounding box into the store
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Sweep a bounding box and store every place found",
	Long: `Requests each cell of a rows x columns grid over the bounding box and
recurses into any cell returning more places than the threshold.

If a request fails the sweep stops and prints a --skip-to value; running the
same command with it continues where the failed run stopped.`,
	Example: `  placesweep scrape --bbox 13.08,52.33,13.76,52.68
  placesweep scrape --bbox 13.08,52.33,13.76,52.68 --skip-to 4,2,9`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeBBox, "bbox", "", "Bounding box minlon,minlat,maxlon,maxlat (required)")
	scrapeCmd.Flags().StringVar(&scrapeSkipTo, "skip-to", "", "Resume a previous sweep at this subdivision path")
	scrapeCmd.Flags().StringSliceVar(&scrapeCategories, "category", nil, "Restrict to a place category (repeatable)")
	scrapeCmd.MarkFlagRequired("bbox")
}

func hereConfig(cfg *config.Config) here.Config {
	return here.Config{
		BaseURL:     cfg.HERE.BaseURL,
		APIKey:      cfg.HERE.APIKey,
		AppID:       cfg.HERE.AppID,
		AppCode:     cfg.HERE.AppCode,
		PageSize:    cfg.HERE.PageSize,
		MaxPages:    cfg.HERE.MaxPages,
		Timeout:     cfg.HERE.GetTimeout(),
		MinInterval: cfg.HERE.GetMinInterval(),
	}
}

func sweepConfig(cfg *config.Config) sweep.Config {
	sc := sweep.Config{
		Rows:       cfg.Sweep.Rows,
		Columns:    cfg.Sweep.Columns,
		Threshold:  cfg.Sweep.Threshold,
		MaxDepth:   cfg.Sweep.MaxDepth,
		PageSize:   cfg.HERE.PageSize,
		Categories: cfg.Sweep.Categories,
	}
	if len(scrapeCategories) > 0 {
		sc.Categories = scrapeCategories
	}
	return sc
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rect, err := geo.ParseRectangle(scrapeBBox)
	if err != nil {
		return err
	}
	skipTo, err := sweep.ParsePath(scrapeSkipTo)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := st.StartRun(ctx, rect.String(), skipTo.String())
	if err != nil {
		return err
	}

	logger.Info("Starting sweep",
		zap.String("run", runID),
		zap.String("bbox", rect.String()),
		zap.String("skip_to", skipTo.String()),
		zap.String("db", cfg.Store.Path))

	sw := sweep.New(here.NewClient(hereConfig(cfg)), st, sweepConfig(cfg),
		sweep.WithLogger(logger),
		sweep.WithRunID(runID))
	stats, runErr := sw.Run(ctx, rect, skipTo)

	result := store.RunResult{
		Requests:    stats.Requests,
		Encountered: stats.Encountered,
		Inserted:    stats.Inserted,
		Err:         runErr,
	}
	var abort *sweep.AbortError
	if errors.As(runErr, &abort) {
		result.ResumePath = abort.Path.String()
	}
	// ctx may already be cancelled
	if err := st.FinishRun(context.Background(), runID, result); err != nil {
		logger.Warn("Failed to record run", zap.Error(err))
	}

	fmt.Printf("Requests made: %d\n", stats.Requests)
	fmt.Printf("Places encountered: %d\n", stats.Encountered)
	fmt.Printf("New places: %d\n", stats.Inserted)

	if abort != nil {
		fmt.Printf("Sweep stopped at [%s]. Resume with:\n  placesweep scrape --bbox %s --skip-to %q\n",
			abort.At, rect, abort.Path.String())
	}
	return runErr
}
