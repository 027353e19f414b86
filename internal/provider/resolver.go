package provider

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/model"
)

// resolverTTL 客户端缓存的有效期
const resolverTTL = 60 * time.Second

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// Resolver 把知识库上的模型串解析为具体客户端
// 构造结果按 "角色:provider:model" 缓存 60 秒；
// 并发解析同一键时合并为一次构造；
// 构造失败且存在过期缓存时降级复用旧客户端
type Resolver struct {
	registry *Registry

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group

	now func() time.Time // 测试注入
}

// NewResolver 创建模型解析器
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{
		registry: registry,
		cache:    make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// ResolveEmbedding 解析知识库的向量化模型
func (r *Resolver) ResolveEmbedding(ctx context.Context, kb *model.KnowledgeBase) (*Embedding, error) {
	ref, err := model.ParseModelRef(kb.EmbeddingModel, config.DefaultProvider)
	if err != nil {
		return nil, err
	}
	v, err := r.resolve(ctx, "embedding:"+ref.String(), func() (interface{}, error) {
		return r.registry.NewEmbedder(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Embedding), nil
}

// ResolveReranker 解析知识库的重排模型
// 未配置重排模型时返回 (nil, "", nil)，表示跳过重排
func (r *Resolver) ResolveReranker(ctx context.Context, kb *model.KnowledgeBase) (Reranker, string, error) {
	if kb.RerankModel == "" {
		return nil, "", nil
	}
	ref, err := model.ParseModelRef(kb.RerankModel, config.DefaultProvider)
	if err != nil {
		return nil, "", err
	}
	v, err := r.resolve(ctx, "rerank:"+ref.String(), func() (interface{}, error) {
		return r.registry.NewReranker(ref)
	})
	if err != nil {
		return nil, "", err
	}
	return v.(Reranker), ref.Model, nil
}

// ResolveVision 解析知识库的视觉模型
// 未配置视觉模型时返回 (nil, "", nil)，表示不支持图片摄取
func (r *Resolver) ResolveVision(ctx context.Context, kb *model.KnowledgeBase) (Vision, string, error) {
	if kb.VisionModel == "" {
		return nil, "", nil
	}
	ref, err := model.ParseModelRef(kb.VisionModel, config.DefaultProvider)
	if err != nil {
		return nil, "", err
	}
	v, err := r.resolve(ctx, "vision:"+ref.String(), func() (interface{}, error) {
		return r.registry.NewVision(ctx, ref)
	})
	if err != nil {
		return nil, "", err
	}
	return v.(Vision), ref.Model, nil
}

func (r *Resolver) resolve(_ context.Context, key string, build func() (interface{}, error)) (interface{}, error) {
	r.mu.Lock()
	entry, ok := r.cache[key]
	if ok && r.now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.value, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// 进入 singleflight 后重查，避免重复构造
		r.mu.Lock()
		if entry, ok := r.cache[key]; ok && r.now().Before(entry.expiresAt) {
			r.mu.Unlock()
			return entry.value, nil
		}
		r.mu.Unlock()

		value, err := build()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cacheEntry{value: value, expiresAt: r.now().Add(resolverTTL)}
		r.mu.Unlock()
		return value, nil
	})
	if err != nil {
		// 构造失败时降级复用过期客户端
		if ok {
			log.Printf("Provider resolve failed for %s, reusing stale client: %v", key, err)
			return entry.value, nil
		}
		return nil, err
	}
	return v, nil
}

// Invalidate 清除某个键的缓存，模型配置变更后调用
func (r *Resolver) Invalidate(role string, ref model.ModelRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, role+":"+ref.String())
}
