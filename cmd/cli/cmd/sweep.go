package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blobbridge/blobbridge/internal/sweep"
)

var sweepOlderThan time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete orphaned command and result blobs",
	Long: `Remove mailbox blobs left behind by crashed processors or
timed-out clients. Only blobs older than the retention threshold are
touched; blobs whose age cannot be determined are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		olderThan := cfg.SweepRetention
		if sweepOlderThan > 0 {
			olderThan = sweepOlderThan
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		report, err := sweep.New(store).Sweep(ctx, olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("scanned %d, deleted %d, kept %d\n", report.Scanned, report.Deleted, report.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "retention threshold (default from config)")
}
