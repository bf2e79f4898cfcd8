// Package syncer mirrors a local directory tree into and out of the
// remote workspace area of the shared container, by content-hash
// diffing. It rides the same storage adapter as the mailbox but is
// otherwise independent of it.
//
// Sync is last-writer-wins per direction: SyncBoth is SyncTo then
// SyncFrom, not a merge, so concurrent edits on both sides can clobber
// one side. That is a documented property of the protocol, not a bug.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/blobbridge/blobbridge/internal/mailbox"
	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/storage"
)

// manifest is the remote workspace entry set, rewritten wholesale on
// every SyncTo pass. It carries the metadata the flat blob namespace
// cannot: per-file hashes and modification times.
type manifest struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Entries     map[string]Entry `json:"entries"` // keyed by RelPath
}

// Report summarizes one sync pass.
type Report struct {
	Uploaded   int
	Downloaded int
	Skipped    int
}

// Manager performs whole-file transfers between a local root and the
// remote workspace prefix. File bytes are stored zstd-compressed.
type Manager struct {
	store storage.Adapter
	root  string
	pat   Patterns

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewManager creates a sync manager rooted at the local directory root.
func NewManager(store storage.Adapter, root string, pat Patterns) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("syncer: root directory is required")
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("syncer: init compressor: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("syncer: init decompressor: %w", err)
	}
	return &Manager{store: store, root: root, pat: pat, enc: enc, dec: dec}, nil
}

func blobNameFor(rel string) string {
	return mailbox.WorkspacePrefix + rel + ".zst"
}

// SyncTo pushes local files whose remote counterpart is absent or
// hash-different, then rewrites the manifest.
func (m *Manager) SyncTo(ctx context.Context) (*Report, error) {
	local, err := LocalEntries(m.root, m.pat)
	if err != nil {
		return nil, err
	}
	remote, err := m.loadManifest(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	seen := make(map[string]bool, len(local))
	for _, e := range local {
		seen[e.RelPath] = true
	}
	// Files deleted locally leave the entry set, so their blobs become
	// sweepable.
	pruned := 0
	for rel := range remote.Entries {
		if !seen[rel] {
			delete(remote.Entries, rel)
			pruned++
			log.Printf("syncer: dropped %s from manifest (removed locally)", rel)
		}
	}

	for _, e := range local {
		prev, ok := remote.Entries[e.RelPath]
		if ok && prev.Hash == e.Hash {
			report.Skipped++
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(e.RelPath)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.RelPath, err)
		}
		compressed := m.enc.EncodeAll(data, nil)
		if err := m.store.Put(ctx, blobNameFor(e.RelPath), compressed); err != nil {
			return nil, fmt.Errorf("upload %s: %w", e.RelPath, err)
		}

		remote.Entries[e.RelPath] = e
		report.Uploaded++
		metrics.SyncFilesTransferred.WithLabelValues("to").Inc()
		log.Printf("syncer: uploaded %s (%d bytes, %d compressed)", e.RelPath, len(data), len(compressed))
	}

	if report.Uploaded > 0 || pruned > 0 || len(remote.Entries) == 0 {
		if err := m.writeManifest(ctx, remote); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// SyncFrom pulls remote files whose local counterpart is absent, or
// whose remote modification time is newer and content differs. Files
// identical by hash are never re-transferred.
func (m *Manager) SyncFrom(ctx context.Context) (*Report, error) {
	remote, err := m.loadManifest(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for rel, e := range remote.Entries {
		if !m.pat.Match(rel) {
			continue
		}

		localPath := filepath.Join(m.root, filepath.FromSlash(rel))
		info, statErr := os.Stat(localPath)
		if statErr == nil {
			hash, hashErr := hashFile(localPath)
			if hashErr == nil && hash == e.Hash {
				report.Skipped++
				continue
			}
			if !e.ModTime.After(info.ModTime().UTC()) {
				report.Skipped++
				continue
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", rel, statErr)
		}

		compressed, err := m.store.Get(ctx, blobNameFor(rel))
		if err != nil {
			// Manifest and blob can drift if an upload was interrupted;
			// skip rather than fail the pass.
			log.Printf("syncer: missing blob for %s: %v", rel, err)
			continue
		}
		data, err := m.dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", rel, err)
		}

		if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
			return nil, fmt.Errorf("mkdir for %s: %w", rel, err)
		}
		if err := os.WriteFile(localPath, data, 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}
		// Keep local mtime aligned with the manifest so the next pass
		// compares cleanly.
		if err := os.Chtimes(localPath, e.ModTime, e.ModTime); err != nil {
			log.Printf("syncer: chtimes %s: %v", rel, err)
		}

		report.Downloaded++
		metrics.SyncFilesTransferred.WithLabelValues("from").Inc()
		log.Printf("syncer: downloaded %s (%d bytes)", rel, len(data))
	}
	return report, nil
}

// SyncBoth runs SyncTo then SyncFrom and merges the reports.
func (m *Manager) SyncBoth(ctx context.Context) (*Report, error) {
	to, err := m.SyncTo(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync to remote: %w", err)
	}
	from, err := m.SyncFrom(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync from remote: %w", err)
	}
	return &Report{
		Uploaded:   to.Uploaded,
		Downloaded: from.Downloaded,
		Skipped:    to.Skipped + from.Skipped,
	}, nil
}

func (m *Manager) loadManifest(ctx context.Context) (*manifest, error) {
	data, err := m.store.Get(ctx, mailbox.ManifestBlobName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &manifest{Entries: make(map[string]Entry)}, nil
		}
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		// A corrupt manifest is rebuilt from scratch on the next
		// SyncTo; treating it as empty is the safe direction.
		log.Printf("syncer: corrupt manifest, starting fresh: %v", err)
		return &manifest{Entries: make(map[string]Entry)}, nil
	}
	if man.Entries == nil {
		man.Entries = make(map[string]Entry)
	}
	return &man, nil
}

func (m *Manager) writeManifest(ctx context.Context, man *manifest) error {
	man.GeneratedAt = time.Now().UTC()
	data, err := json.Marshal(man)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := m.store.Put(ctx, mailbox.ManifestBlobName, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
