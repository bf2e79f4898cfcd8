package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLivenessPayload is the JSON structure published to Redis.
type redisLivenessPayload struct {
	ProcessorID   string `json:"processor_id"`
	Processed     int64  `json:"processed"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`
}

// RedisLiveness mirrors processor liveness into Redis for fleet
// dashboards. The heartbeat blob remains the authoritative marker; this
// is purely a discovery convenience. Each publish:
//  1. SETs processor:{id} with a 30s TTL (auto-expires if the daemon dies)
//  2. PUBLISHes to processors:heartbeat for real-time monitor notification
type RedisLiveness struct {
	rdb         *redis.Client
	processorID string
	getStats    func() (processed int64, uptime time.Duration)
	stop        chan struct{}
	done        chan struct{}
}

// NewRedisLiveness creates a liveness publisher. It pings Redis once so
// misconfiguration is caught at startup rather than on the first cycle.
func NewRedisLiveness(redisURL, processorID string) (*RedisLiveness, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisLiveness{
		rdb:         rdb,
		processorID: processorID,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start begins publishing liveness every 10 seconds.
func (l *RedisLiveness) Start(getStats func() (int64, time.Duration)) {
	l.getStats = getStats

	go func() {
		defer close(l.done)
		l.publish()

		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.publish()
			case <-l.stop:
				return
			}
		}
	}()
}

func (l *RedisLiveness) publish() {
	processed, uptime := l.getStats()

	payload := redisLivenessPayload{
		ProcessorID:   l.processorID,
		Processed:     processed,
		UptimeSeconds: int64(uptime.Seconds()),
		Timestamp:     time.Now().UnixMilli(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("liveness: marshal error: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := "processor:" + l.processorID
	if err := l.rdb.Set(ctx, key, data, 30*time.Second).Err(); err != nil {
		log.Printf("liveness: SET failed: %v", err)
	}
	if err := l.rdb.Publish(ctx, "processors:heartbeat", data).Err(); err != nil {
		log.Printf("liveness: PUBLISH failed: %v", err)
	}
}

// Stop stops the publisher and removes the liveness key.
func (l *RedisLiveness) Stop() {
	close(l.stop)
	<-l.done

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	l.rdb.Del(ctx, "processor:"+l.processorID)

	l.rdb.Close()
	log.Println("liveness: stopped")
}
