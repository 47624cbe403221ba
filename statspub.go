package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// StatsPublisher periodically pushes a ServiceStats snapshot into Redis so a
// fleet dashboard can scrape per-instance load. It stores operational
// counters only, never extraction results.
type StatsPublisher struct {
	client   *redis.Client
	stats    *ServiceStats
	key      string
	interval time.Duration
	log      *slog.Logger
}

// NewStatsPublisher connects to Redis and returns nil when publishing is not
// configured or Redis is unreachable; the service runs fine without it.
func NewStatsPublisher(ctx context.Context, cfg Config, stats *ServiceStats, log *slog.Logger) *StatsPublisher {
	if cfg.RedisAddr == "" || cfg.StatsPublishSec <= 0 {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis not available, stats publishing disabled", "addr", cfg.RedisAddr, "error", err)
		client.Close()
		return nil
	}

	log.Info("redis connected, publishing stats", "addr", cfg.RedisAddr, "key", cfg.StatsKey)
	return &StatsPublisher{
		client:   client,
		stats:    stats,
		key:      cfg.StatsKey,
		interval: cfg.StatsPublishInterval(),
		log:      log,
	}
}

// Run publishes until ctx is cancelled. Publish errors are logged and
// swallowed; monitoring must never affect request processing.
func (p *StatsPublisher) Run(ctx context.Context) {
	defer p.client.Close()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.publish(ctx); err != nil {
				p.log.Warn("stats publish failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *StatsPublisher) publish(ctx context.Context) error {
	snap, err := json.Marshal(p.stats.Snapshot())
	if err != nil {
		return err
	}
	// Triple-interval TTL keeps stale instances from lingering on dashboards.
	return p.client.Set(ctx, p.key, snap, 3*p.interval).Err()
}
