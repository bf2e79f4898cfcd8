package cmd

import (
	"github.com/spf13/cobra"

	"github.com/blobbridge/blobbridge/internal/config"
	"github.com/blobbridge/blobbridge/internal/storage"
)

var (
	flagBackend   string
	flagContainer string
)

var rootCmd = &cobra.Command{
	Use:   "bb",
	Short: "blobbridge CLI - run code remotely through a shared blob container",
	Long: `blobbridge CLI (bb) submits commands to a remote processor through a
shared cloud storage container, with no direct network path between the
two sides. It also mirrors a local directory into the remote workspace.

Configuration comes from BLOBBRIDGE_* environment variables; the
--backend and --container flags override them per invocation.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend (azure, s3, memory)")
	rootCmd.PersistentFlags().StringVar(&flagContainer, "container", "", "blob container / bucket name")
}

// loadConfig reads the environment config and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagBackend != "" {
		cfg.Backend = flagBackend
	}
	if flagContainer != "" {
		cfg.Container = flagContainer
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (storage.Adapter, error) {
	return storage.Open(storage.Options{
		Backend:   cfg.Backend,
		Container: cfg.Container,
		Azure: storage.AzureConfig{
			AccountURL:       cfg.AzureAccountURL,
			ConnectionString: cfg.AzureConnectionString,
		},
		S3: storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		},
	})
}
