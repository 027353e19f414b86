// Package provider 管理模型提供商客户端
// 按知识库配置的模型串（provider:model）解析出向量化、重排与视觉客户端
package provider

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	ollamaembed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
	"github.com/ashwinyue/next-kb/internal/model"
)

// Embedding 绑定了具体模型的向量化客户端
type Embedding struct {
	Embedder embedding.Embedder
	Ref      model.ModelRef
}

// Embed 向量化一批文本
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := e.Embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, kberrors.Wrap(kberrors.KindEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, kberrors.New(kberrors.KindEmbedding,
			"embedder %s returned %d vectors for %d texts", e.Ref.String(), len(vectors), len(texts))
	}
	return vectors, nil
}

// RankedDoc 重排结果中的一条文档
type RankedDoc struct {
	Index int     // 输入文档列表中的下标
	Score float64 // 相关性分数
}

// Reranker 重排序客户端接口
type Reranker interface {
	Rerank(ctx context.Context, rerankModel, query string, docs []string, topN int) ([]RankedDoc, error)
}

// Vision 视觉模型客户端接口，用于图片 OCR
type Vision interface {
	ExtractText(ctx context.Context, visionModel, mimeType string, data []byte) (string, error)
}

// Registry 根据提供商配置构造模型客户端
type Registry struct {
	providers map[string]config.ProviderConfig
}

// NewRegistry 创建提供商注册表
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{providers: cfg.Providers}
}

func (r *Registry) lookup(name string) (config.ProviderConfig, error) {
	pc, ok := r.providers[name]
	if !ok {
		return config.ProviderConfig{}, kberrors.New(kberrors.KindConfiguration,
			"provider %s is not configured", name)
	}
	return pc, nil
}

// NewEmbedder 按模型引用构造向量化客户端
func (r *Registry) NewEmbedder(ctx context.Context, ref model.ModelRef) (*Embedding, error) {
	pc, err := r.lookup(ref.Provider)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(pc.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var embedder embedding.Embedder
	switch pc.Type {
	case "openai":
		embedder, err = openaiembed.NewEmbedder(ctx, &openaiembed.EmbeddingConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   ref.Model,
			Timeout: timeout,
		})
	case "dashscope":
		embedder, err = dashscope.NewEmbedder(ctx, &dashscope.EmbeddingConfig{
			APIKey:  pc.APIKey,
			Model:   ref.Model,
			Timeout: timeout,
		})
	case "ollama":
		embedder, err = ollamaembed.NewEmbedder(ctx, &ollamaembed.EmbeddingConfig{
			BaseURL: pc.BaseURL,
			Model:   ref.Model,
			Timeout: timeout,
		})
	default:
		return nil, kberrors.New(kberrors.KindConfiguration,
			"provider %s has unsupported type %s for embedding", ref.Provider, pc.Type)
	}
	if err != nil {
		return nil, kberrors.Wrap(kberrors.KindConfiguration, err)
	}

	return &Embedding{Embedder: embedder, Ref: ref}, nil
}

// NewReranker 按模型引用构造重排客户端
// openai 与 jina 类型均走 OpenAI 兼容的 /rerank 端点
func (r *Registry) NewReranker(ref model.ModelRef) (Reranker, error) {
	pc, err := r.lookup(ref.Provider)
	if err != nil {
		return nil, err
	}

	switch pc.Type {
	case "openai", "jina", "dashscope":
		if pc.BaseURL == "" {
			return nil, kberrors.New(kberrors.KindConfiguration,
				"provider %s requires base_url for rerank", ref.Provider)
		}
		return NewHTTPReranker(pc.BaseURL, pc.APIKey, time.Duration(pc.Timeout)*time.Second), nil
	default:
		return nil, kberrors.New(kberrors.KindConfiguration,
			"provider %s has unsupported type %s for rerank", ref.Provider, pc.Type)
	}
}

// NewVision 按模型引用构造视觉客户端
func (r *Registry) NewVision(ctx context.Context, ref model.ModelRef) (Vision, error) {
	pc, err := r.lookup(ref.Provider)
	if err != nil {
		return nil, err
	}

	switch pc.Type {
	case "openai", "dashscope":
		return newOpenAIVision(ctx, pc, ref.Model)
	default:
		return nil, kberrors.New(kberrors.KindConfiguration,
			"provider %s has unsupported type %s for vision", ref.Provider, pc.Type)
	}
}
