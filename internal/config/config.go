package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Config holds all configuration for the blobbridge CLI and processor.
type Config struct {
	// Storage
	Backend   string // "azure", "s3", "memory"
	Container string // blob container / bucket name

	// Azure backend
	AzureAccountURL       string // e.g. "https://myaccount.blob.core.windows.net"
	AzureConnectionString string // takes precedence over AccountURL

	// S3-compatible backend (AWS, R2, MinIO)
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool

	// Bridge (client side)
	Tool        string        // origin tag embedded in command ids
	PollTimeout time.Duration // overall result-poll budget per submit
	CallTimeout time.Duration // per-storage-call budget

	// Processor (remote side)
	ProcessorID  string
	PollInterval time.Duration // sleep between listing cycles
	RunDuration  time.Duration // 0 = run until interrupted
	ExecTimeout  time.Duration // per-command execution budget
	Workdir      string        // execution working directory
	DedupPath    string        // sqlite processed-set path; empty = in-memory

	// File sync
	SyncDir     string
	SyncInclude []string
	SyncExclude []string

	// Maintenance
	SweepRetention time.Duration

	// Observability
	StatusAddr  string
	MetricsAddr string
	RedisURL    string // optional liveness mirror
	NATSURL     string // optional lifecycle events

	// AWS Secrets Manager bootstrap. If set, the secret is fetched at
	// startup and its keys applied as env vars (env always wins).
	SecretsARN string
}

// Load reads configuration from environment variables with sensible
// defaults. If BLOBBRIDGE_SECRETS_ARN is set, secrets are fetched from
// AWS Secrets Manager first, then environment variables are applied on
// top (env vars take precedence).
func Load() (*Config, error) {
	if arn := os.Getenv("BLOBBRIDGE_SECRETS_ARN"); arn != "" {
		if err := loadSecretsManager(arn); err != nil {
			return nil, fmt.Errorf("failed to load secrets from %s: %w", arn, err)
		}
	}

	cfg := &Config{
		Backend:   envOrDefault("BLOBBRIDGE_BACKEND", "azure"),
		Container: envOrDefault("BLOBBRIDGE_CONTAINER", "blobbridge"),

		AzureAccountURL:       os.Getenv("BLOBBRIDGE_AZURE_ACCOUNT_URL"),
		AzureConnectionString: os.Getenv("BLOBBRIDGE_AZURE_CONNECTION_STRING"),

		S3Endpoint:        os.Getenv("BLOBBRIDGE_S3_ENDPOINT"),
		S3Region:          os.Getenv("BLOBBRIDGE_S3_REGION"),
		S3AccessKeyID:     os.Getenv("BLOBBRIDGE_S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("BLOBBRIDGE_S3_SECRET_ACCESS_KEY"),
		S3ForcePathStyle:  os.Getenv("BLOBBRIDGE_S3_FORCE_PATH_STYLE") == "true",

		Tool:        envOrDefault("BLOBBRIDGE_TOOL", "bb"),
		ProcessorID: envOrDefault("BLOBBRIDGE_PROCESSOR_ID", "proc-local"),
		Workdir:     envOrDefault("BLOBBRIDGE_WORKDIR", "."),
		DedupPath:   os.Getenv("BLOBBRIDGE_DEDUP_PATH"),

		SyncDir:     envOrDefault("BLOBBRIDGE_SYNC_DIR", "."),
		SyncInclude: envList("BLOBBRIDGE_SYNC_INCLUDE"),
		SyncExclude: envList("BLOBBRIDGE_SYNC_EXCLUDE"),

		StatusAddr:  envOrDefault("BLOBBRIDGE_STATUS_ADDR", ":8080"),
		MetricsAddr: envOrDefault("BLOBBRIDGE_METRICS_ADDR", ":9091"),
		RedisURL:    os.Getenv("BLOBBRIDGE_REDIS_URL"),
		NATSURL:     os.Getenv("BLOBBRIDGE_NATS_URL"),

		SecretsARN: os.Getenv("BLOBBRIDGE_SECRETS_ARN"),
	}

	var err error
	if cfg.PollTimeout, err = envOrDefaultDuration("BLOBBRIDGE_POLL_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.CallTimeout, err = envOrDefaultDuration("BLOBBRIDGE_CALL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = envOrDefaultDuration("BLOBBRIDGE_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunDuration, err = envOrDefaultDuration("BLOBBRIDGE_RUN_DURATION", 0); err != nil {
		return nil, err
	}
	if cfg.ExecTimeout, err = envOrDefaultDuration("BLOBBRIDGE_EXEC_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepRetention, err = envOrDefaultDuration("BLOBBRIDGE_SWEEP_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "azure", "s3", "memory":
	default:
		return nil, fmt.Errorf("invalid BLOBBRIDGE_BACKEND %q (expected azure, s3, or memory)", cfg.Backend)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	// Accept bare seconds for convenience.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// loadSecretsManager fetches a JSON secret from AWS Secrets Manager and
// sets any values as environment variables (only if not already set, so
// explicit env vars always win). Uses the default AWS credential chain.
func loadSecretsManager(arn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Extract region from ARN: arn:aws:secretsmanager:REGION:ACCOUNT:secret:NAME
	var opts []func(*awsconfig.LoadOptions) error
	if parts := strings.Split(arn, ":"); len(parts) >= 4 && parts[3] != "" {
		opts = append(opts, awsconfig.WithRegion(parts[3]))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &arn,
	})
	if err != nil {
		return fmt.Errorf("GetSecretValue: %w", err)
	}

	if result.SecretString == nil {
		return fmt.Errorf("secret %s has no string value", arn)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return fmt.Errorf("parse secret JSON: %w", err)
	}

	applied := 0
	for key, value := range secrets {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
			applied++
		}
	}

	log.Printf("config: loaded %d secrets from Secrets Manager (%d keys in secret, env overrides take precedence)", applied, len(secrets))
	return nil
}
