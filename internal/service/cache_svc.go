package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mathieu-neron/nichescope/internal/logging"
)

// Redis key TTLs.
const (
	AnalysisCacheTTL = 30 * time.Minute
	RunCacheTTL      = 15 * time.Minute
	QuotaTTL         = 25 * time.Hour
	StatsCacheTTL    = time.Minute
)

const statsKey = "stats:global"

// CacheService provides a Redis cache-aside layer for analysis results and the
// per-user daily analysis counter.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService creates a new CacheService. If redisURL is empty or connection
// fails, it returns a CacheService with a nil client (cache operations become no-ops).
func NewCacheService(redisURL string) *CacheService {
	log := logging.Component("redis")

	if redisURL == "" {
		log.Warn().Msg("no URL configured, caching disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid URL, caching disabled")
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("connection failed, caching disabled")
		_ = rdb.Close()
		return &CacheService{}
	}

	log.Info().Msg("connected, caching enabled")
	return &CacheService{rdb: rdb}
}

// NewCacheServiceWithClient wraps an existing client. A nil client disables caching.
func NewCacheServiceWithClient(rdb *redis.Client) *CacheService {
	return &CacheService{rdb: rdb}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

// Enabled reports whether a Redis connection is available.
func (c *CacheService) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetAnalysis retrieves a cached analysis response. Returns nil if not cached or cache is disabled.
func (c *CacheService) GetAnalysis(ctx context.Context, key string) ([]byte, error) {
	return c.get(ctx, analysisKey(key))
}

// SetAnalysis stores an analysis response in cache.
func (c *CacheService) SetAnalysis(ctx context.Context, key string, data interface{}) error {
	return c.set(ctx, analysisKey(key), data, AnalysisCacheTTL)
}

// GetRun retrieves a cached history run.
func (c *CacheService) GetRun(ctx context.Context, runID string) ([]byte, error) {
	return c.get(ctx, runKey(runID))
}

// SetRun stores a history run in cache.
func (c *CacheService) SetRun(ctx context.Context, runID string, data interface{}) error {
	return c.set(ctx, runKey(runID), data, RunCacheTTL)
}

// InvalidateRun removes a history run from cache (called after refresh or delete).
func (c *CacheService) InvalidateRun(ctx context.Context, runID string) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Del(ctx, runKey(runID)).Err()
}

// GetStats retrieves cached aggregate statistics.
func (c *CacheService) GetStats(ctx context.Context) ([]byte, error) {
	return c.get(ctx, statsKey)
}

// SetStats stores aggregate statistics in cache.
func (c *CacheService) SetStats(ctx context.Context, data interface{}) error {
	return c.set(ctx, statsKey, data, StatsCacheTTL)
}

// DailyAnalyses returns the number of analyses a user has been charged for on
// the given day. With caching disabled it always returns 0.
func (c *CacheService) DailyAnalyses(ctx context.Context, userID string, day time.Time) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	n, err := c.rdb.Get(ctx, quotaKey(userID, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// IncrDailyAnalyses increments and returns the number of analyses a user has
// completed on the given day. With caching disabled it always returns 0.
func (c *CacheService) IncrDailyAnalyses(ctx context.Context, userID string, day time.Time) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	key := quotaKey(userID, day)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, QuotaTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

func (c *CacheService) get(ctx context.Context, key string) ([]byte, error) {
	if !c.Enabled() {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

func (c *CacheService) set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

func analysisKey(key string) string {
	return fmt.Sprintf("analysis:%s", key)
}

func runKey(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}

func quotaKey(userID string, day time.Time) string {
	return fmt.Sprintf("quota:%s:%s", userID, day.UTC().Format("20060102"))
}
