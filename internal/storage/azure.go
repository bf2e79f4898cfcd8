package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureConfig holds the configuration for the Azure Blob Storage backend.
type AzureConfig struct {
	// AccountURL is the blob service endpoint, e.g.
	// "https://myaccount.blob.core.windows.net". Used with the default
	// credential chain (env, managed identity, CLI login).
	AccountURL string
	// ConnectionString, if set, takes precedence over AccountURL.
	ConnectionString string
	Container        string
}

// AzureStore is the Azure Blob Storage implementation of Adapter.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates an Azure-backed blob store. With a connection
// string the embedded shared key is used; otherwise the default Azure
// credential chain resolves access to AccountURL.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure storage: container is required")
	}

	var client *azblob.Client
	var err error
	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("azure storage: parse connection string: %w", err)
		}
	} else {
		if cfg.AccountURL == "" {
			return nil, fmt.Errorf("azure storage: account URL or connection string is required")
		}
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("azure storage: default credential: %w", credErr)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("azure storage: create client: %w", err)
		}
	}

	return &AzureStore{client: client, container: cfg.Container}, nil
}

// Put uploads data as a block blob, overwriting any existing blob.
func (s *AzureStore) Put(ctx context.Context, name string, data []byte) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, nil); err != nil {
		return fmt.Errorf("azure put %s: %w", name, err)
	}
	return nil
}

// Get downloads the full blob contents.
func (s *AzureStore) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("azure get %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure read %s: %w", name, err)
	}
	return data, nil
}

// List returns the names of all blobs starting with prefix.
func (s *AzureStore) List(ctx context.Context, prefix string) ([]string, error) {
	var opts *azblob.ListBlobsFlatOptions
	if prefix != "" {
		opts = &azblob.ListBlobsFlatOptions{Prefix: &prefix}
	}

	var names []string
	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure list %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			// The service should only return matches, but the pairing
			// convention depends on it, so filter again.
			if strings.HasPrefix(*item.Name, prefix) {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// Delete removes the named blob.
func (s *AzureStore) Delete(ctx context.Context, name string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("azure delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the named blob exists.
func (s *AzureStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("azure head %s: %w", name, err)
	}
	return true, nil
}
