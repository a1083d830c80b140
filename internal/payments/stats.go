package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const statsVersionKey = "payments:stats:version"

// StatsProvider serves dashboard aggregates. Results are cached in
// Redis under a versioned key; mutations bump the version instead of
// deleting entries, so stale keys age out via TTL.
type StatsProvider struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewStatsProvider instantiates the cached stats helper. A nil client
// degrades to uncached reads.
func NewStatsProvider(repo Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatsProvider {
	return &StatsProvider{repo: repo, client: client, ttl: ttl, logger: logger}
}

// Stats returns counts per status and the in-review amount.
func (p *StatsProvider) Stats(ctx context.Context) (Stats, error) {
	if p.client == nil {
		return p.repo.Stats(ctx)
	}
	key, err := p.buildKey(ctx)
	if err != nil {
		p.logger.Warn("stats cache key", slog.Any("error", err))
		return p.repo.Stats(ctx)
	}

	payload, err := p.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Stats
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		p.logger.Warn("stats cache read", slog.Any("error", err))
	}

	result, err, _ := p.group.Do(key, func() (interface{}, error) {
		stats, err := p.repo.Stats(ctx)
		if err != nil {
			return Stats{}, err
		}
		if raw, err := json.Marshal(stats); err == nil {
			if err := p.client.Set(ctx, key, raw, p.ttl).Err(); err != nil {
				p.logger.Warn("stats cache write", slog.Any("error", err))
			}
		}
		return stats, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return result.(Stats), nil
}

// Invalidate bumps the cache version after a mutation.
func (p *StatsProvider) Invalidate(ctx context.Context) {
	if p.client == nil {
		return
	}
	if err := p.client.Incr(ctx, statsVersionKey).Err(); err != nil {
		p.logger.Warn("stats cache bump", slog.Any("error", err))
	}
}

func (p *StatsProvider) buildKey(ctx context.Context) (string, error) {
	ver, err := p.client.Get(ctx, statsVersionKey).Int64()
	if err == redis.Nil {
		ver = 1
		if err := p.client.Set(ctx, statsVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("payments:stats:%d", ver), nil
}
