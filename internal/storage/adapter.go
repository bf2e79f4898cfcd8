// Package storage wraps the shared storage medium behind a minimal blob
// capability. Higher layers depend only on Adapter and never on a
// particular backend SDK.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Delete when the named blob does not
// exist. Callers branch on it with errors.Is.
var ErrNotFound = errors.New("blob not found")

// Adapter is the blob capability every bridge component is built on:
// whole-object create, read, list-by-prefix, and delete. No partial
// updates, no transactions, no ordering guarantees across names.
// Implementations must honor the caller's context on every call and
// must not retry internally.
type Adapter interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend   string // "azure", "s3", or "memory"
	Container string

	Azure AzureConfig
	S3    S3Config
}

// Open constructs the Adapter named by opts.Backend.
func Open(opts Options) (Adapter, error) {
	switch opts.Backend {
	case "azure":
		cfg := opts.Azure
		cfg.Container = opts.Container
		return NewAzureStore(cfg)
	case "s3":
		cfg := opts.S3
		cfg.Bucket = opts.Container
		return NewS3Store(cfg)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
