package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blobbridge/blobbridge/internal/syncer"
)

var syncDir string

var syncCmd = &cobra.Command{
	Use:   "sync <to|from|both>",
	Short: "Mirror a local directory with the remote workspace",
	Long: `Transfer files between the local sync directory and the remote
workspace by content-hash diff. "to" pushes local changes, "from" pulls
remote changes, "both" does to-then-from (last writer wins per
direction, not a merge).`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"to", "from", "both"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if syncDir != "" {
			cfg.SyncDir = syncDir
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		sm, err := syncer.NewManager(store, cfg.SyncDir, syncer.Patterns{
			Include: cfg.SyncInclude,
			Exclude: cfg.SyncExclude,
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var report *syncer.Report
		switch args[0] {
		case "to":
			report, err = sm.SyncTo(ctx)
		case "from":
			report, err = sm.SyncFrom(ctx)
		case "both":
			report, err = sm.SyncBoth(ctx)
		default:
			return fmt.Errorf("unknown direction %q (expected to, from, or both)", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Printf("uploaded %d, downloaded %d, unchanged %d\n",
			report.Uploaded, report.Downloaded, report.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncDir, "dir", "", "local directory to sync (default from config)")
}
