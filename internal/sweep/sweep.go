// Package sweep removes orphaned mailbox blobs: commands whose processor
// crashed before responding, and results whose client timed out and
// never came back, plus workspace blobs the manifest no longer
// references. The protocol itself cannot detect these, so the
// sweep compares embedded timestamps to a retention threshold, outside
// the hot path.
package sweep

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/storage"
)

// Report summarizes one sweep pass.
type Report struct {
	Scanned int
	Deleted int
	Skipped int
}

// Sweeper deletes mailbox blobs older than a retention threshold.
type Sweeper struct {
	store storage.Adapter
}

// New creates a sweeper over the given store.
func New(store storage.Adapter) *Sweeper {
	return &Sweeper{store: store}
}

// timestamped covers both command and result envelopes; only the
// timestamp is needed here.
type timestamped struct {
	Timestamp int64 `json:"timestamp"`
}

// idTimestampPattern matches the millisecond timestamp embedded in
// generated command ids (tool-<millis>-<rand>).
var idTimestampPattern = regexp.MustCompile(`-(\d{10,})-`)

// Sweep deletes command and result blobs older than olderThan. Blobs
// whose age cannot be determined are left alone; deleting live traffic
// is worse than keeping garbage.
func (s *Sweeper) Sweep(ctx context.Context, olderThan time.Duration) (*Report, error) {
	cutoff := time.Now().Add(-olderThan)
	report := &Report{}

	for _, prefix := range []string{mailbox.CommandPrefix, mailbox.ResultPrefix} {
		names, err := s.store.List(ctx, prefix)
		if err != nil {
			return report, err
		}
		for _, name := range names {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Scanned++

			written, ok := s.blobTime(ctx, name)
			if !ok || !written.Before(cutoff) {
				report.Skipped++
				continue
			}

			if err := s.store.Delete(ctx, name); err != nil {
				log.Printf("sweep: delete %s: %v", name, err)
				report.Skipped++
				continue
			}
			metrics.SweepDeleted.Inc()
			report.Deleted++
			log.Printf("sweep: deleted orphan %s (written %s)", name, written.Format(time.RFC3339))
		}
	}

	if err := s.sweepWorkspace(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// workspaceManifest mirrors the syncer's manifest; only the entry keys
// matter here.
type workspaceManifest struct {
	Entries map[string]json.RawMessage `json:"entries"`
}

// sweepWorkspace deletes workspace blobs no longer listed in the
// manifest, left behind when files are removed locally and the entry
// set shrinks. Without a readable manifest everything is kept.
func (s *Sweeper) sweepWorkspace(ctx context.Context, report *Report) error {
	data, err := s.store.Get(ctx, mailbox.ManifestBlobName)
	if err != nil {
		return nil
	}
	var man workspaceManifest
	if err := json.Unmarshal(data, &man); err != nil {
		log.Printf("sweep: unreadable workspace manifest, skipping workspace pass: %v", err)
		return nil
	}

	names, err := s.store.List(ctx, mailbox.WorkspacePrefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.Scanned++

		rel := strings.TrimSuffix(strings.TrimPrefix(name, mailbox.WorkspacePrefix), ".zst")
		if _, live := man.Entries[rel]; live {
			report.Skipped++
			continue
		}

		if err := s.store.Delete(ctx, name); err != nil {
			log.Printf("sweep: delete %s: %v", name, err)
			report.Skipped++
			continue
		}
		metrics.SweepDeleted.Inc()
		report.Deleted++
		log.Printf("sweep: deleted unreferenced workspace blob %s", name)
	}
	return nil
}

// blobTime determines when a mailbox blob was written: from its JSON
// timestamp when the envelope parses, falling back to the millisecond
// timestamp embedded in the id for partially written blobs.
func (s *Sweeper) blobTime(ctx context.Context, name string) (time.Time, bool) {
	data, err := s.store.Get(ctx, name)
	if err == nil {
		var env timestamped
		if json.Unmarshal(data, &env) == nil && env.Timestamp > 0 {
			return time.UnixMilli(env.Timestamp), true
		}
	}

	id, ok := mailbox.ParseCommandID(name)
	if !ok {
		id, ok = mailbox.ParseResultID(name)
	}
	if !ok {
		return time.Time{}, false
	}
	match := idTimestampPattern.FindStringSubmatch(id)
	if match == nil {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
