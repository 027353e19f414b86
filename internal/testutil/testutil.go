// Package testutil 提供各服务单测共用的 mock 与固定数据
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/ashwinyue/next-kb/internal/model"
	"github.com/ashwinyue/next-kb/internal/repository"
)

var _ repository.KnowledgeRepository = (*MockKnowledgeRepository)(nil)

// MockKnowledgeRepository 函数字段式 mock，未设置的方法返回零值
type MockKnowledgeRepository struct {
	CreateKnowledgeBaseFunc  func(ctx context.Context, kb *model.KnowledgeBase) error
	GetKnowledgeBaseByIDFunc func(ctx context.Context, id int64) (*model.KnowledgeBase, error)
	ListKnowledgeBasesFunc   func(ctx context.Context, offset, limit int) ([]*model.KnowledgeBase, int64, error)
	UpdateKnowledgeBaseFunc  func(ctx context.Context, kb *model.KnowledgeBase) error
	DeleteKnowledgeBaseFunc  func(ctx context.Context, id int64) error

	CreateFileFunc        func(ctx context.Context, file *model.KnowledgeBaseFile) error
	GetFileByIDFunc       func(ctx context.Context, id int64) (*model.KnowledgeBaseFile, error)
	ListFilesFunc         func(ctx context.Context, kbID int64, offset, limit int) ([]*model.KnowledgeBaseFile, int64, error)
	ListFilesByStatusFunc func(ctx context.Context, status string) ([]*model.KnowledgeBaseFile, error)
	DeleteFileFunc        func(ctx context.Context, id int64) error

	UpdateFileStatusFunc func(ctx context.Context, id int64, status, errMsg string) error
	TransitionStatusFunc func(ctx context.Context, id int64, from, to string) (bool, error)
	ClaimPendingFunc     func(ctx context.Context, id int64, now time.Time) (bool, error)

	UpdateFileProgressFunc func(ctx context.Context, id int64, chunkCount int) error
	SetTotalChunksFunc     func(ctx context.Context, id int64, total int) error

	ListStaleProcessingFunc func(ctx context.Context, cutoff time.Time) ([]*model.KnowledgeBaseFile, error)
	ResetProcessingFunc     func(ctx context.Context) (int64, error)
}

func (m *MockKnowledgeRepository) CreateKnowledgeBase(ctx context.Context, kb *model.KnowledgeBase) error {
	if m.CreateKnowledgeBaseFunc != nil {
		return m.CreateKnowledgeBaseFunc(ctx, kb)
	}
	return nil
}

func (m *MockKnowledgeRepository) GetKnowledgeBaseByID(ctx context.Context, id int64) (*model.KnowledgeBase, error) {
	if m.GetKnowledgeBaseByIDFunc != nil {
		return m.GetKnowledgeBaseByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockKnowledgeRepository) ListKnowledgeBases(ctx context.Context, offset, limit int) ([]*model.KnowledgeBase, int64, error) {
	if m.ListKnowledgeBasesFunc != nil {
		return m.ListKnowledgeBasesFunc(ctx, offset, limit)
	}
	return nil, 0, nil
}

func (m *MockKnowledgeRepository) UpdateKnowledgeBase(ctx context.Context, kb *model.KnowledgeBase) error {
	if m.UpdateKnowledgeBaseFunc != nil {
		return m.UpdateKnowledgeBaseFunc(ctx, kb)
	}
	return nil
}

func (m *MockKnowledgeRepository) DeleteKnowledgeBase(ctx context.Context, id int64) error {
	if m.DeleteKnowledgeBaseFunc != nil {
		return m.DeleteKnowledgeBaseFunc(ctx, id)
	}
	return nil
}

func (m *MockKnowledgeRepository) CreateFile(ctx context.Context, file *model.KnowledgeBaseFile) error {
	if m.CreateFileFunc != nil {
		return m.CreateFileFunc(ctx, file)
	}
	return nil
}

func (m *MockKnowledgeRepository) GetFileByID(ctx context.Context, id int64) (*model.KnowledgeBaseFile, error) {
	if m.GetFileByIDFunc != nil {
		return m.GetFileByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockKnowledgeRepository) ListFiles(ctx context.Context, kbID int64, offset, limit int) ([]*model.KnowledgeBaseFile, int64, error) {
	if m.ListFilesFunc != nil {
		return m.ListFilesFunc(ctx, kbID, offset, limit)
	}
	return nil, 0, nil
}

func (m *MockKnowledgeRepository) ListFilesByStatus(ctx context.Context, status string) ([]*model.KnowledgeBaseFile, error) {
	if m.ListFilesByStatusFunc != nil {
		return m.ListFilesByStatusFunc(ctx, status)
	}
	return nil, nil
}

func (m *MockKnowledgeRepository) DeleteFile(ctx context.Context, id int64) error {
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, id)
	}
	return nil
}

func (m *MockKnowledgeRepository) UpdateFileStatus(ctx context.Context, id int64, status, errMsg string) error {
	if m.UpdateFileStatusFunc != nil {
		return m.UpdateFileStatusFunc(ctx, id, status, errMsg)
	}
	return nil
}

func (m *MockKnowledgeRepository) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	if m.TransitionStatusFunc != nil {
		return m.TransitionStatusFunc(ctx, id, from, to)
	}
	return true, nil
}

func (m *MockKnowledgeRepository) ClaimPending(ctx context.Context, id int64, now time.Time) (bool, error) {
	if m.ClaimPendingFunc != nil {
		return m.ClaimPendingFunc(ctx, id, now)
	}
	return true, nil
}

func (m *MockKnowledgeRepository) UpdateFileProgress(ctx context.Context, id int64, chunkCount int) error {
	if m.UpdateFileProgressFunc != nil {
		return m.UpdateFileProgressFunc(ctx, id, chunkCount)
	}
	return nil
}

func (m *MockKnowledgeRepository) SetTotalChunks(ctx context.Context, id int64, total int) error {
	if m.SetTotalChunksFunc != nil {
		return m.SetTotalChunksFunc(ctx, id, total)
	}
	return nil
}

func (m *MockKnowledgeRepository) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]*model.KnowledgeBaseFile, error) {
	if m.ListStaleProcessingFunc != nil {
		return m.ListStaleProcessingFunc(ctx, cutoff)
	}
	return nil, nil
}

func (m *MockKnowledgeRepository) ResetProcessing(ctx context.Context) (int64, error) {
	if m.ResetProcessingFunc != nil {
		return m.ResetProcessingFunc(ctx)
	}
	return 0, nil
}

// FakeEmbedder 确定性的假向量化器
// 同一文本总是映射到同一单位向量，便于断言检索结果
type FakeEmbedder struct {
	Dimension int
	Err       error
	Calls     int
}

func (f *FakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	dim := f.Dimension
	if dim <= 0 {
		dim = 4
	}
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, dim)
	}
	return vectors, nil
}

func deterministicVector(text string, dim int) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float64, dim)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float64(int64(seed>>32)) / float64(math.MaxInt32)
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}
