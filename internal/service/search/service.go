// Package search 提供相似度检索与分块读取
package search

import (
	"context"
	"log"
	"strings"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
	"github.com/ashwinyue/next-kb/internal/model"
	"github.com/ashwinyue/next-kb/internal/provider"
	"github.com/ashwinyue/next-kb/internal/repository"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

// ModelResolver 检索所需的模型解析能力
type ModelResolver interface {
	ResolveEmbedding(ctx context.Context, kb *model.KnowledgeBase) (*provider.Embedding, error)
	ResolveReranker(ctx context.Context, kb *model.KnowledgeBase) (provider.Reranker, string, error)
}

// Result 检索结果中的一条分块
type Result struct {
	FileID     int64   `json:"file_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Chunk 按键读取的分块内容
type Chunk struct {
	FileID     int64  `json:"file_id"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
}

// Service 检索服务
type Service struct {
	repo     repository.KnowledgeRepository
	index    vectorstore.Index
	resolver ModelResolver
	cache    *Cache // 可为 nil，表示不启用缓存

	candidateK int
	topK       int
}

// NewService 创建检索服务
func NewService(repo repository.KnowledgeRepository, index vectorstore.Index, resolver ModelResolver, cache *Cache, cfg *config.Config) *Service {
	s := &Service{
		repo:       repo,
		index:      index,
		resolver:   resolver,
		cache:      cache,
		candidateK: cfg.Search.CandidateK,
		topK:       cfg.Search.TopK,
	}
	if s.candidateK <= 0 {
		s.candidateK = 1000
	}
	if s.topK <= 0 {
		s.topK = 5
	}
	return s
}

// Search 相似度检索
// 先按向量召回 candidateK 条候选，配置了重排模型时再精排；
// 重排失败降级为原始相似度排序。topK <= 0 时用默认值
func (s *Service) Search(ctx context.Context, kbID int64, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, kberrors.New(kberrors.KindValidation, "query is required")
	}
	if topK <= 0 {
		topK = s.topK
	}

	kb, err := s.repo.GetKnowledgeBaseByID(ctx, kbID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, kbID, query, topK); ok {
		return cached, nil
	}

	collection := kb.CollectionName()
	exists, err := s.index.Exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	// 尚无任何文件完成摄取
	if !exists {
		return []Result{}, nil
	}

	embedder, err := s.resolver.ResolveEmbedding(ctx, kb)
	if err != nil {
		return nil, err
	}
	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	candidates, err := s.index.Query(ctx, collection, vectors[0], s.candidateK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	results := s.rank(ctx, kb, query, candidates, topK)

	s.cache.Set(ctx, kbID, query, topK, results)
	return results, nil
}

// rank 对候选重排并截断
func (s *Service) rank(ctx context.Context, kb *model.KnowledgeBase, query string, candidates []vectorstore.ScoredPoint, topK int) []Result {
	reranker, rerankModel, err := s.resolver.ResolveReranker(ctx, kb)
	if err != nil {
		log.Printf("Rerank model resolve failed for kb %d, falling back to vector ranking: %v", kb.ID, err)
		reranker = nil
	}

	if reranker != nil {
		docs := make([]string, len(candidates))
		for i, c := range candidates {
			docs[i] = c.Payload.Text
		}
		ranked, err := reranker.Rerank(ctx, rerankModel, query, docs, topK)
		if err != nil {
			log.Printf("Rerank failed for kb %d, falling back to vector ranking: %v", kb.ID, err)
		} else {
			results := make([]Result, 0, len(ranked))
			for _, r := range ranked {
				if len(results) >= topK {
					break
				}
				c := candidates[r.Index]
				results = append(results, Result{
					FileID:     c.Payload.FileID,
					Filename:   c.Payload.Filename,
					ChunkIndex: c.Payload.ChunkIndex,
					Text:       c.Payload.Text,
					Score:      r.Score,
				})
			}
			return results
		}
	}

	// 原始相似度排序
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			FileID:     c.Payload.FileID,
			Filename:   c.Payload.Filename,
			ChunkIndex: c.Payload.ChunkIndex,
			Text:       c.Payload.Text,
			Score:      c.Score,
		}
	}
	return results
}

// ReadChunks 按 (file, chunkIndex) 键读取分块内容
// 结果顺序与请求一致，缺失的键静默跳过
func (s *Service) ReadChunks(ctx context.Context, kbID int64, refs []vectorstore.ChunkRef) ([]Chunk, error) {
	if len(refs) == 0 {
		return []Chunk{}, nil
	}

	kb, err := s.repo.GetKnowledgeBaseByID(ctx, kbID)
	if err != nil {
		return nil, err
	}

	collection := kb.CollectionName()
	exists, err := s.index.Exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Chunk{}, nil
	}

	points, err := s.index.FetchByRefs(ctx, collection, refs)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(points))
	for i, p := range points {
		chunks[i] = Chunk{
			FileID:     p.Payload.FileID,
			ChunkIndex: p.Payload.ChunkIndex,
			Filename:   p.Payload.Filename,
			Text:       p.Payload.Text,
		}
	}
	return chunks, nil
}
