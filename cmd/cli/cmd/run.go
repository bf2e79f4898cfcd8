package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blobbridge/blobbridge/internal/bridge"
	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/syncer"
)

var (
	runCode    string
	runTimeout time.Duration
	runSync    bool
	runPollID  string
)

var runCmd = &cobra.Command{
	Use:   "run [script-file]",
	Short: "Submit code for remote execution and wait for the result",
	Long: `Submit a script to the remote processor and poll for its result.
The payload comes from a file argument or from --code.

If the wait times out, the command id is printed; rerun with --poll <id>
to keep waiting without resubmitting.

Example: bb run analyze.sh --timeout 2m`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runTimeout > 0 {
			cfg.PollTimeout = runTimeout
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		client := bridge.NewClient(store, bridge.Options{
			Tool:        cfg.Tool,
			PollTimeout: cfg.PollTimeout,
			CallTimeout: cfg.CallTimeout,
		})

		if runPollID != "" {
			res, err := client.Poll(ctx, runPollID)
			if err != nil {
				return reportPending(err)
			}
			return printResult(res)
		}

		code := runCode
		if code == "" {
			if len(args) == 0 {
				return fmt.Errorf("provide a script file or --code")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			code = string(data)
		}

		var sm *syncer.Manager
		if runSync {
			sm, err = syncer.NewManager(store, cfg.SyncDir, syncer.Patterns{
				Include: cfg.SyncInclude,
				Exclude: cfg.SyncExclude,
			})
			if err != nil {
				return err
			}
			if _, err := sm.SyncTo(ctx); err != nil {
				return fmt.Errorf("pre-run sync: %w", err)
			}
		}

		res, err := client.Submit(ctx, code)
		if err != nil {
			return reportPending(err)
		}

		if sm != nil {
			if _, err := sm.SyncFrom(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: post-run sync failed: %v\n", err)
			}
		}
		return printResult(res)
	},
}

func reportPending(err error) error {
	var pending *bridge.PendingError
	if errors.As(err, &pending) {
		return fmt.Errorf("%v; rerun with --poll %s", pending, pending.ID)
	}
	return err
}

func printResult(res *mailbox.Result) error {
	if res.Output != "" {
		fmt.Print(res.Output)
	}
	if res.Status != mailbox.StatusSuccess {
		if res.Error != "" {
			return fmt.Errorf("remote execution failed: %s", res.Error)
		}
		return fmt.Errorf("remote execution failed (status=%s)", res.Status)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runCode, "code", "e", "", "inline code to execute")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall wait for the result (default from config)")
	runCmd.Flags().BoolVar(&runSync, "sync", false, "sync the workspace before and after the run")
	runCmd.Flags().StringVar(&runPollID, "poll", "", "poll an earlier command id instead of submitting")
}
