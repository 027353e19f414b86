package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache 检索结果的 Redis 短时缓存
// 摄取在持续写入时结果天然是近似的，短 TTL 换取热点查询的吞吐
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache 创建检索缓存，client 为 nil 时所有操作降级为未命中
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(kbID int64, query string, topK int) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("next-kb:search:%d:%d:%x", kbID, topK, sum[:16])
}

// Get 读取缓存的检索结果
func (c *Cache) Get(ctx context.Context, kbID int64, query string, topK int) ([]Result, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, cacheKey(kbID, query, topK)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Warning: search cache read failed: %v", err)
		}
		return nil, false
	}

	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		log.Printf("Warning: search cache entry corrupted: %v", err)
		return nil, false
	}
	return results, true
}

// Set 写入检索结果，失败只记录日志
func (c *Cache) Set(ctx context.Context, kbID int64, query string, topK int, results []Result) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		log.Printf("Warning: failed to marshal search results for cache: %v", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(kbID, query, topK), data, c.ttl).Err(); err != nil {
		log.Printf("Warning: search cache write failed: %v", err)
	}
}
