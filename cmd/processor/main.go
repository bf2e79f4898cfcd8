package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blobbridge/blobbridge/internal/config"
	"github.com/blobbridge/blobbridge/internal/metrics"
	"github.com/blobbridge/blobbridge/internal/processor"
	"github.com/blobbridge/blobbridge/internal/statusapi"
	"github.com/blobbridge/blobbridge/internal/storage"
	"github.com/blobbridge/blobbridge/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Printf("blobbridge-processor: starting (id=%s, backend=%s, container=%s)",
		cfg.ProcessorID, cfg.Backend, cfg.Container)

	store, err := storage.Open(storage.Options{
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
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	// Processed-set: durable when a path is configured, in-memory otherwise.
	var dedup processor.Dedup
	if cfg.DedupPath != "" {
		dedup, err = processor.NewSQLiteDedup(cfg.DedupPath)
		if err != nil {
			log.Fatalf("failed to open dedup store: %v", err)
		}
		log.Printf("blobbridge-processor: durable processed-set at %s", cfg.DedupPath)
	} else {
		dedup = processor.NewMemoryDedup()
	}
	defer dedup.Close()

	pcfg := processor.Config{
		Store: store,
		Exec: &processor.ShellExecutor{
			Workdir: cfg.Workdir,
			Timeout: cfg.ExecTimeout,
		},
		Dedup:        dedup,
		ProcessorID:  cfg.ProcessorID,
		PollInterval: cfg.PollInterval,
		RunDuration:  cfg.RunDuration,
		CallTimeout:  cfg.CallTimeout,
	}

	// Mirror the workspace around each execution so submitted commands
	// see the latest synced files and their writes flow back.
	if cfg.SyncDir != "" {
		sm, err := syncer.NewManager(store, cfg.SyncDir, syncer.Patterns{
			Include: cfg.SyncInclude,
			Exclude: cfg.SyncExclude,
		})
		if err != nil {
			log.Fatalf("failed to initialize syncer: %v", err)
		}
		pcfg.PreExec = func(ctx context.Context) error {
			_, err := sm.SyncFrom(ctx)
			return err
		}
		pcfg.PostExec = func(ctx context.Context) error {
			_, err := sm.SyncTo(ctx)
			return err
		}
		log.Printf("blobbridge-processor: workspace sync enabled (dir=%s)", cfg.SyncDir)
	}

	if cfg.NATSURL != "" {
		pub, err := processor.NewEventPublisher(cfg.NATSURL, cfg.ProcessorID)
		if err != nil {
			log.Printf("blobbridge-processor: NATS not available: %v (continuing without events)", err)
		} else {
			pcfg.Events = pub
			defer pub.Stop()
			log.Println("blobbridge-processor: NATS event publisher started")
		}
	}

	proc, err := processor.New(pcfg)
	if err != nil {
		log.Fatalf("failed to initialize processor: %v", err)
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsAddr)
	defer metricsSrv.Close()
	log.Printf("blobbridge-processor: metrics server started on %s", cfg.MetricsAddr)

	statusSrv := statusapi.New(proc)
	go func() {
		if err := statusSrv.Start(cfg.StatusAddr); err != nil {
			log.Printf("status server error: %v", err)
		}
	}()
	defer statusSrv.Shutdown()
	log.Printf("blobbridge-processor: status server started on %s", cfg.StatusAddr)

	if cfg.RedisURL != "" {
		live, err := processor.NewRedisLiveness(cfg.RedisURL, cfg.ProcessorID)
		if err != nil {
			log.Printf("blobbridge-processor: Redis liveness not available: %v", err)
		} else {
			live.Start(func() (int64, time.Duration) {
				s := proc.Snapshot()
				return s.Processed, time.Duration(s.UptimeSeconds) * time.Second
			})
			defer live.Stop()
			log.Println("blobbridge-processor: Redis liveness mirror started")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("blobbridge-processor: shutting down...")
		cancel()
	}()

	if err := proc.Run(ctx); err != nil {
		log.Fatalf("processor stopped with error: %v", err)
	}
}
