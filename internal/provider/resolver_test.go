package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
	"github.com/ashwinyue/next-kb/internal/model"
)

func TestResolver_CachesWithinTTL(t *testing.T) {
	r := NewResolver(NewRegistry(&config.Config{}))
	now := time.Now()
	r.now = func() time.Time { return now }

	builds := 0
	build := func() (interface{}, error) {
		builds++
		return "client", nil
	}

	for i := 0; i < 3; i++ {
		v, err := r.resolve(context.Background(), "embedding:openai:text-embedding-3-small", build)
		if err != nil {
			t.Fatalf("resolve() error = %v", err)
		}
		if v != "client" {
			t.Fatalf("resolve() = %v, want client", v)
		}
	}
	if builds != 1 {
		t.Errorf("build called %d times within TTL, want 1", builds)
	}

	// TTL 过期后应重新构造
	now = now.Add(resolverTTL + time.Second)
	if _, err := r.resolve(context.Background(), "embedding:openai:text-embedding-3-small", build); err != nil {
		t.Fatalf("resolve() after expiry error = %v", err)
	}
	if builds != 2 {
		t.Errorf("build called %d times after expiry, want 2", builds)
	}
}

func TestResolver_StaleOnError(t *testing.T) {
	r := NewResolver(NewRegistry(&config.Config{}))
	now := time.Now()
	r.now = func() time.Time { return now }

	ok := func() (interface{}, error) { return "v1", nil }
	fail := func() (interface{}, error) { return nil, errors.New("provider unreachable") }

	if _, err := r.resolve(context.Background(), "rerank:jina:v2", ok); err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	// 缓存过期、重建失败：应降级复用旧客户端
	now = now.Add(resolverTTL + time.Second)
	v, err := r.resolve(context.Background(), "rerank:jina:v2", fail)
	if err != nil {
		t.Fatalf("resolve() with stale fallback error = %v", err)
	}
	if v != "v1" {
		t.Errorf("resolve() = %v, want stale v1", v)
	}

	// 无缓存可降级时必须报错
	if _, err := r.resolve(context.Background(), "rerank:jina:other", fail); err == nil {
		t.Error("resolve() without cache should propagate build error")
	}
}

func TestResolver_UnconfiguredRoles(t *testing.T) {
	r := NewResolver(NewRegistry(&config.Config{}))
	kb := &model.KnowledgeBase{ID: 1, EmbeddingModel: "openai:text-embedding-3-small"}

	reranker, rerankModel, err := r.ResolveReranker(context.Background(), kb)
	if err != nil || reranker != nil || rerankModel != "" {
		t.Errorf("ResolveReranker() without model = (%v, %q, %v), want (nil, \"\", nil)", reranker, rerankModel, err)
	}

	vision, visionModel, err := r.ResolveVision(context.Background(), kb)
	if err != nil || vision != nil || visionModel != "" {
		t.Errorf("ResolveVision() without model = (%v, %q, %v), want (nil, \"\", nil)", vision, visionModel, err)
	}
}

func TestResolver_UnknownProvider(t *testing.T) {
	r := NewResolver(NewRegistry(&config.Config{Providers: map[string]config.ProviderConfig{}}))
	kb := &model.KnowledgeBase{ID: 1, EmbeddingModel: "nosuch:model-x"}

	_, err := r.ResolveEmbedding(context.Background(), kb)
	if err == nil {
		t.Fatal("ResolveEmbedding() with unknown provider should fail")
	}
	if !kberrors.IsKind(err, kberrors.KindConfiguration) {
		t.Errorf("ResolveEmbedding() error kind = %v, want configuration", kberrors.KindOf(err))
	}
}
