package graph

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/research-kb/internal/platform/logger"
)

const pathCacheTTL = 10 * time.Minute

// PathCache memoizes shortest path lengths in Redis. Path queries
// during scoring are heavily repeated across search requests, and
// lengths only change on ingestion, so a short TTL is enough. A nil
// *PathCache disables caching entirely.
type PathCache struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewPathCacheFromEnv returns (nil, nil) when REDIS_ADDR is unset.
func NewPathCacheFromEnv(log *logger.Logger) (*PathCache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &PathCache{
		rdb: rdb,
		log: log.With("client", "PathCache"),
	}, nil
}

func pathKey(fromID, toID uuid.UUID, maxHops int) string {
	return fmt.Sprintf("graph:pathlen:%s:%s:%d", fromID, toID, maxHops)
}

// Get reports (length, true) on a hit. Unreachable pairs are cached
// as -1, so a hit can still mean "no path".
func (c *PathCache) Get(ctx context.Context, fromID, toID uuid.UUID, maxHops int) (int, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	val, err := c.rdb.Get(ctx, pathKey(fromID, toID, maxHops)).Result()
	if err != nil {
		return 0, false
	}
	length, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return length, true
}

// Set is fire and forget. Cache failures never fail a query.
func (c *PathCache) Set(ctx context.Context, fromID, toID uuid.UUID, maxHops int, length int) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, pathKey(fromID, toID, maxHops), strconv.Itoa(length), pathCacheTTL).Err(); err != nil {
		c.log.Warn("path cache set failed", "error", err)
	}
}

// Flush drops all memoized path lengths. Ingestion calls this after
// writing relationships so stale lengths never outlive an edge change.
func (c *PathCache) Flush(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, "graph:pathlen:*", 500).Iterator()
	keys := make([]string, 0, 64)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 500 {
			_ = c.rdb.Del(ctx, keys...).Err()
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		_ = c.rdb.Del(ctx, keys...).Err()
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("path cache flush scan failed", "error", err)
	}
}

func (c *PathCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
