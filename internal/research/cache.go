package research

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/metrics"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

// CachedResearcher serves research summaries from Redis before falling back
// to the live research service. The key hashes the enriched context, so a
// hit is only possible for an identical context and a cached summary never
// reflects stale enrichment. All Redis errors are fail-open: the lookup
// degrades to a live call, a failed write is logged and ignored.
type CachedResearcher struct {
	inner  workflow.Researcher
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedResearcher wraps a researcher with a Redis cache.
func NewCachedResearcher(inner workflow.Researcher, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedResearcher {
	return &CachedResearcher{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Research implements workflow.Researcher.
func (c *CachedResearcher) Research(ctx context.Context, domain, enrichedContext string) (workflow.ResearchSummary, error) {
	key := cacheKey(domain, enrichedContext)

	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var summary workflow.ResearchSummary
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			metrics.ResearchCacheHits.Inc()
			c.logger.Debug("Research cache hit", zap.String("domain", domain))
			return summary, nil
		}
		// Corrupt entry; fall through and overwrite it.
	} else if err != redis.Nil {
		c.logger.Warn("Research cache lookup failed", zap.Error(err))
	}
	metrics.ResearchCacheMisses.Inc()

	summary, err := c.inner.Research(ctx, domain, enrichedContext)
	if err != nil {
		return workflow.ResearchSummary{}, err
	}

	if data, err := json.Marshal(summary); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Research cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

func cacheKey(domain, enrichedContext string) string {
	sum := sha256.Sum256([]byte(enrichedContext))
	return fmt.Sprintf("fabrica:research:%s:%x", domain, sum[:8])
}
