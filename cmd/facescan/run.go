package main

import (
	"fmt"
	"os"
	"time"

	"face-gallery/internal/app"
	"face-gallery/internal/pipeline"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var skipIndex bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Index the library, then process every new camera photo once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}
			for _, dir := range []string{cfg.DatabaseDir, cfg.ThumbnailDir} {
				if err := ensureDir(dir); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipIndex {
				res, err := a.Indexer.Index(ctx)
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d photos (%d removed) in %v\n",
					res.Photos, res.Removed, res.Duration.Round(time.Millisecond))
			}

			total, err := a.Index.CountMatchingPhotos(ctx, cfg.CameraFilter)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Scanning "+cfg.CameraFilter),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			a.Processor.SetProgress(func(pipeline.Event) {
				_ = bar.Add(1)
			})

			outcome, runErr := a.Processor.RunBatch(ctx)
			_ = bar.Finish()

			printOutcome(cmd, outcome)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "use the existing photo index")
	return cmd
}

func printOutcome(cmd *cobra.Command, o pipeline.Outcome) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"Pages: %d  Processed: %d  Saved: %d  Skipped: %d  Failed: %d  (%v)\n",
		o.Pages, o.TotalProcessed, o.TotalSaved, o.Skipped, o.Failed, o.Duration.Round(time.Millisecond))
}
