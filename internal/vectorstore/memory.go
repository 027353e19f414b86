package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// MemoryIndex 进程内向量索引
// 用于单元测试与单机开发模式（vector.driver=memory）
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	points    map[string]Point
}

// NewMemoryIndex 创建进程内向量索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		collections: make(map[string]*memoryCollection),
	}
}

func (m *MemoryIndex) CreateIndex(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return kberrors.New(kberrors.KindVectorStorage, "invalid dimension %d for collection %s", dimension, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if col, ok := m.collections[name]; ok {
		if col.dimension != dimension {
			return kberrors.New(kberrors.KindVectorStorage,
				"collection %s exists with dimension %d, requested %d", name, col.dimension, dimension)
		}
		return nil
	}
	m.collections[name] = &memoryCollection{
		dimension: dimension,
		points:    make(map[string]Point),
	}
	return nil
}

func (m *MemoryIndex) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryIndex) Upsert(_ context.Context, name string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[name]
	if !ok {
		return kberrors.New(kberrors.KindVectorStorage, "collection %s does not exist", name)
	}
	for _, p := range points {
		if len(p.Vector) != col.dimension {
			return kberrors.New(kberrors.KindVectorStorage,
				"vector dimension %d does not match collection %s dimension %d", len(p.Vector), name, col.dimension)
		}
		col.points[p.ID] = p
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, name string, vector []float64, topK int) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[name]
	if !ok {
		return nil, kberrors.New(kberrors.KindVectorStorage, "collection %s does not exist", name)
	}
	if topK <= 0 {
		topK = 10
	}

	results := make([]ScoredPoint, 0, len(col.points))
	for _, p := range col.points {
		results = append(results, ScoredPoint{
			ID:      p.ID,
			Score:   cosineSimilarity(vector, p.Vector),
			Payload: p.Payload,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) FetchByRefs(_ context.Context, name string, refs []ChunkRef) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[name]
	if !ok {
		return nil, kberrors.New(kberrors.KindVectorStorage, "collection %s does not exist", name)
	}

	byRef := make(map[ChunkRef]Point, len(col.points))
	for _, p := range col.points {
		byRef[ChunkRef{FileID: p.Payload.FileID, ChunkIndex: p.Payload.ChunkIndex}] = p
	}

	out := make([]Point, 0, len(refs))
	for _, ref := range refs {
		if p, ok := byRef[ref]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryIndex) DeleteByFile(_ context.Context, name string, fileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[name]
	if !ok {
		return nil
	}
	for id, p := range col.points {
		if p.Payload.FileID == fileID {
			delete(col.points, id)
		}
	}
	return nil
}

func (m *MemoryIndex) DeleteIndex(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

// Count 集合内向量点数，仅测试使用
func (m *MemoryIndex) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[name]
	if !ok {
		return 0
	}
	return len(col.points)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Index = (*MemoryIndex)(nil)
