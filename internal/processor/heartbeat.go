package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/storage"
)

// writeHeartbeat overwrites the fixed-name liveness marker so external
// monitors can tell a crashed processor from an empty mailbox.
func writeHeartbeat(ctx context.Context, store storage.Adapter, processorID string) error {
	hb := mailbox.Heartbeat{
		Timestamp: time.Now().UnixMilli(),
		Status:    "running",
		Processor: processorID,
	}
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}
	if err := store.Put(ctx, mailbox.HeartbeatBlobName, data); err != nil {
		metrics.HeartbeatFailures.Inc()
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}

// ReadHeartbeat fetches and parses the liveness marker blob.
func ReadHeartbeat(ctx context.Context, store storage.Adapter) (*mailbox.Heartbeat, error) {
	data, err := store.Get(ctx, mailbox.HeartbeatBlobName)
	if err != nil {
		return nil, err
	}
	var hb mailbox.Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return nil, fmt.Errorf("parse heartbeat: %w", err)
	}
	return &hb, nil
}
