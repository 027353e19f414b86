// Package service 组装各业务服务
package service

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/provider"
	"github.com/ashwinyue/next-kb/internal/repository"
	"github.com/ashwinyue/next-kb/internal/service/file"
	"github.com/ashwinyue/next-kb/internal/service/ingest"
	"github.com/ashwinyue/next-kb/internal/service/knowledge"
	"github.com/ashwinyue/next-kb/internal/service/search"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

// Services 服务集合
type Services struct {
	Knowledge *knowledge.Service
	Search    *search.Service
	Worker    *ingest.Worker
}

// NewServices 创建所有服务
// redisClient 可为 nil，此时检索缓存关闭
func NewServices(cfg *config.Config, repos *repository.Repositories, index vectorstore.Index, storage file.Storage, redisClient *redis.Client) *Services {
	registry := provider.NewRegistry(cfg)
	resolver := provider.NewResolver(registry)

	var cache *search.Cache
	if redisClient != nil {
		cache = search.NewCache(redisClient, time.Duration(cfg.Search.CacheTTLSec)*time.Second)
	}

	engine := ingest.NewEngine(repos.Knowledge, index, storage, resolver, cfg)

	return &Services{
		Knowledge: knowledge.NewService(repos.Knowledge, index, storage, cfg),
		Search:    search.NewService(repos.Knowledge, index, resolver, cache, cfg),
		Worker:    ingest.NewWorker(repos.Knowledge, engine, cfg),
	}
}
