package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
	"github.com/ashwinyue/next-kb/internal/model"
	"github.com/ashwinyue/next-kb/internal/provider"
	"github.com/ashwinyue/next-kb/internal/testutil"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

type fakeReranker struct {
	ranked []provider.RankedDoc
	err    error
	calls  int
}

func (f *fakeReranker) Rerank(_ context.Context, _, _ string, docs []string, topN int) ([]provider.RankedDoc, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ranked, nil
}

type fakeResolver struct {
	embedder *testutil.FakeEmbedder
	reranker *fakeReranker
}

func (r *fakeResolver) ResolveEmbedding(_ context.Context, kb *model.KnowledgeBase) (*provider.Embedding, error) {
	return &provider.Embedding{Embedder: r.embedder, Ref: model.ModelRef{Provider: "openai", Model: "fake"}}, nil
}

func (r *fakeResolver) ResolveReranker(_ context.Context, kb *model.KnowledgeBase) (provider.Reranker, string, error) {
	if kb.RerankModel == "" || r.reranker == nil {
		return nil, "", nil
	}
	return r.reranker, "fake-rerank", nil
}

// seedIndex 用假向量化器生成的向量填充索引，保证查询与分块可精确匹配
func seedIndex(t *testing.T, index *vectorstore.MemoryIndex, embedder *testutil.FakeEmbedder, texts []string) {
	t.Helper()
	ctx := context.Background()

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		t.Fatalf("failed to embed seed texts: %v", err)
	}
	if err := index.CreateIndex(ctx, "kb_1", len(vectors[0])); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	points := make([]vectorstore.Point, len(texts))
	for i, text := range texts {
		points[i] = vectorstore.Point{
			ID:     fmt.Sprintf("10_%d", i),
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				KBID:       1,
				FileID:     10,
				Filename:   "doc.txt",
				ChunkIndex: i,
				Text:       text,
			},
		}
	}
	if err := index.Upsert(ctx, "kb_1", points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	embedder.Calls = 0
}

func newSearchService(repo *testutil.MockKnowledgeRepository, index *vectorstore.MemoryIndex, resolver *fakeResolver) *Service {
	cfg := &config.Config{}
	cfg.Search.CandidateK = 100
	cfg.Search.TopK = 5
	return NewService(repo, index, resolver, nil, cfg)
}

func kbRepo(kb *model.KnowledgeBase) *testutil.MockKnowledgeRepository {
	return &testutil.MockKnowledgeRepository{
		GetKnowledgeBaseByIDFunc: func(_ context.Context, id int64) (*model.KnowledgeBase, error) {
			copied := *kb
			return &copied, nil
		},
	}
}

func TestSearch(t *testing.T) {
	index := vectorstore.NewMemoryIndex()
	embedder := &testutil.FakeEmbedder{Dimension: 8}
	texts := []string{"alpha content", "beta content", "gamma content"}
	seedIndex(t, index, embedder, texts)

	kb := &model.KnowledgeBase{ID: 1, Name: "docs", EmbeddingModel: "openai:fake"}
	svc := newSearchService(kbRepo(kb), index, &fakeResolver{embedder: embedder})

	// 查询文本与某分块相同时，该分块应排第一（余弦相似度 1）
	results, err := svc.Search(context.Background(), 1, "beta content", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Text != "beta content" {
		t.Errorf("top result = %q, want beta content", results[0].Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by score")
	}
	if results[0].FileID != 10 || results[0].ChunkIndex != 1 {
		t.Errorf("top result ref = (%d, %d), want (10, 1)", results[0].FileID, results[0].ChunkIndex)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := newSearchService(kbRepo(&model.KnowledgeBase{ID: 1}), vectorstore.NewMemoryIndex(), &fakeResolver{embedder: &testutil.FakeEmbedder{}})

	_, err := svc.Search(context.Background(), 1, "   ", 5)
	if err == nil {
		t.Fatal("Search() should reject empty query")
	}
	if !kberrors.IsKind(err, kberrors.KindValidation) {
		t.Errorf("error kind = %v, want validation", kberrors.KindOf(err))
	}
}

func TestSearch_EmptyKnowledgeBase(t *testing.T) {
	// 索引尚未创建（还没有文件完成摄取）
	kb := &model.KnowledgeBase{ID: 1, EmbeddingModel: "openai:fake"}
	svc := newSearchService(kbRepo(kb), vectorstore.NewMemoryIndex(), &fakeResolver{embedder: &testutil.FakeEmbedder{}})

	results, err := svc.Search(context.Background(), 1, "anything", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() on empty kb = %v, want empty", results)
	}
}

func TestSearch_WithRerank(t *testing.T) {
	index := vectorstore.NewMemoryIndex()
	embedder := &testutil.FakeEmbedder{Dimension: 8}
	seedIndex(t, index, embedder, []string{"alpha", "beta", "gamma"})

	kb := &model.KnowledgeBase{ID: 1, EmbeddingModel: "openai:fake", RerankModel: "jina:fake-rerank"}
	// 重排把召回的最后一条提到第一
	reranker := &fakeReranker{ranked: []provider.RankedDoc{
		{Index: 2, Score: 0.99},
		{Index: 0, Score: 0.2},
	}}
	svc := newSearchService(kbRepo(kb), index, &fakeResolver{embedder: embedder, reranker: reranker})

	results, err := svc.Search(context.Background(), 1, "alpha", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if reranker.calls != 1 {
		t.Errorf("reranker called %d times, want 1", reranker.calls)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Score != 0.99 {
		t.Errorf("top score = %v, want rerank score 0.99", results[0].Score)
	}
}

func TestSearch_RerankFailureFallsBack(t *testing.T) {
	index := vectorstore.NewMemoryIndex()
	embedder := &testutil.FakeEmbedder{Dimension: 8}
	seedIndex(t, index, embedder, []string{"alpha", "beta", "gamma"})

	kb := &model.KnowledgeBase{ID: 1, EmbeddingModel: "openai:fake", RerankModel: "jina:fake-rerank"}
	reranker := &fakeReranker{err: errors.New("rerank endpoint down")}
	svc := newSearchService(kbRepo(kb), index, &fakeResolver{embedder: embedder, reranker: reranker})

	// 重排失败不报错，降级为向量相似度排序
	results, err := svc.Search(context.Background(), 1, "beta", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Text != "beta" {
		t.Errorf("fallback top result = %q, want beta", results[0].Text)
	}
}

func TestReadChunks(t *testing.T) {
	index := vectorstore.NewMemoryIndex()
	embedder := &testutil.FakeEmbedder{Dimension: 8}
	seedIndex(t, index, embedder, []string{"alpha", "beta", "gamma"})

	kb := &model.KnowledgeBase{ID: 1, EmbeddingModel: "openai:fake"}
	svc := newSearchService(kbRepo(kb), index, &fakeResolver{embedder: embedder})

	refs := []vectorstore.ChunkRef{
		{FileID: 10, ChunkIndex: 2},
		{FileID: 10, ChunkIndex: 99}, // 不存在
		{FileID: 10, ChunkIndex: 0},
	}
	chunks, err := svc.ReadChunks(context.Background(), 1, refs)
	if err != nil {
		t.Fatalf("ReadChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("ReadChunks() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "gamma" || chunks[1].Text != "alpha" {
		t.Errorf("ReadChunks() order = [%q %q], want [gamma alpha]", chunks[0].Text, chunks[1].Text)
	}
}

func TestReadChunks_EmptyRefs(t *testing.T) {
	svc := newSearchService(kbRepo(&model.KnowledgeBase{ID: 1}), vectorstore.NewMemoryIndex(), &fakeResolver{embedder: &testutil.FakeEmbedder{}})
	chunks, err := svc.ReadChunks(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("ReadChunks() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("ReadChunks() = %v, want empty", chunks)
	}
}
