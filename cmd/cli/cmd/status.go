package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blobbridge/blobbridge/internal/processor"
	"github.com/blobbridge/blobbridge/internal/storage"
	"github.com/blobbridge/blobbridge/pkg/client"
)

// Heartbeats land every processor cycle; a marker this old means the
// processor is down or was never started.
const staleAfter = 60 * time.Second

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check remote processor liveness via its heartbeat blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusAddr != "" {
			return statusOverHTTP(statusAddr)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout)
		defer cancel()

		hb, err := processor.ReadHeartbeat(ctx, store)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no heartbeat found: processor has never run against container %q", cfg.Container)
			}
			return err
		}

		age := hb.Staleness(time.Now())
		if age > staleAfter {
			return fmt.Errorf("processor %s stale: last heartbeat %s ago", hb.Processor, age.Round(time.Second))
		}
		fmt.Printf("processor %s alive (heartbeat %s ago)\n", hb.Processor, age.Round(time.Second))
		return nil
	},
}

// statusOverHTTP asks the processor directly instead of reading the
// heartbeat blob. Only works when the processor's status port is reachable.
func statusOverHTTP(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := client.NewClient(addr).Status(ctx)
	if err != nil {
		return fmt.Errorf("query processor at %s: %w", addr, err)
	}
	fmt.Printf("processor %s up %ds, %d commands processed, last cycle %s\n",
		st.ProcessorID, st.UptimeSeconds, st.Processed, st.LastCycle.Format(time.RFC3339))
	return nil
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "query the processor status API directly, e.g. http://host:8080")
	rootCmd.AddCommand(statusCmd)
}
