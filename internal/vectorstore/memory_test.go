package vectorstore

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestPoint(fileID int64, chunkIndex int, vector []float64) Point {
	return Point{
		ID:     fmt.Sprintf("%d_%d", fileID, chunkIndex),
		Vector: vector,
		Payload: Payload{
			KBID:       1,
			FileID:     fileID,
			Filename:   "doc.txt",
			ChunkIndex: chunkIndex,
			Text:       fmt.Sprintf("chunk %d", chunkIndex),
			MimeType:   "text/plain",
			CreatedAt:  time.Now(),
		},
	}
}

func TestMemoryIndex_CreateIndex(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	if err := idx.CreateIndex(ctx, "kb_1", 3); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	// 同维度重复创建应幂等成功
	if err := idx.CreateIndex(ctx, "kb_1", 3); err != nil {
		t.Errorf("CreateIndex() same dimension error = %v, want nil", err)
	}

	// 维度不一致应报错
	if err := idx.CreateIndex(ctx, "kb_1", 4); err == nil {
		t.Error("CreateIndex() with mismatched dimension should fail")
	}

	exists, err := idx.Exists(ctx, "kb_1")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true, nil", exists, err)
	}
	exists, _ = idx.Exists(ctx, "kb_2")
	if exists {
		t.Error("Exists() for unknown collection should be false")
	}
}

func TestMemoryIndex_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.CreateIndex(ctx, "kb_1", 3); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	points := []Point{
		newTestPoint(10, 0, []float64{1, 0, 0}),
		newTestPoint(10, 1, []float64{0, 1, 0}),
		newTestPoint(10, 2, []float64{0.9, 0.1, 0}),
	}
	if err := idx.Upsert(ctx, "kb_1", points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := idx.Query(ctx, "kb_1", []float64{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Query() returned %d points, want 2", len(got))
	}
	if got[0].ID != "10_0" {
		t.Errorf("Query() best match = %s, want 10_0", got[0].ID)
	}
	if got[0].Score < got[1].Score {
		t.Error("Query() results not sorted by score")
	}
}

func TestMemoryIndex_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.CreateIndex(ctx, "kb_1", 2); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	p := newTestPoint(10, 0, []float64{1, 0})
	if err := idx.Upsert(ctx, "kb_1", []Point{p}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// 同 ID 再次写入应覆盖而非新增
	p.Payload.Text = "updated"
	if err := idx.Upsert(ctx, "kb_1", []Point{p}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if n := idx.Count("kb_1"); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	got, err := idx.FetchByRefs(ctx, "kb_1", []ChunkRef{{FileID: 10, ChunkIndex: 0}})
	if err != nil {
		t.Fatalf("FetchByRefs() error = %v", err)
	}
	if len(got) != 1 || got[0].Payload.Text != "updated" {
		t.Errorf("FetchByRefs() = %+v, want single updated point", got)
	}
}

func TestMemoryIndex_UpsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.CreateIndex(ctx, "kb_1", 3); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	err := idx.Upsert(ctx, "kb_1", []Point{newTestPoint(10, 0, []float64{1, 0})})
	if err == nil {
		t.Error("Upsert() with wrong dimension should fail")
	}
}

func TestMemoryIndex_FetchByRefs(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.CreateIndex(ctx, "kb_1", 2); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	if err := idx.Upsert(ctx, "kb_1", []Point{
		newTestPoint(10, 0, []float64{1, 0}),
		newTestPoint(10, 1, []float64{0, 1}),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	refs := []ChunkRef{
		{FileID: 10, ChunkIndex: 1},
		{FileID: 10, ChunkIndex: 99}, // 不存在，应跳过
		{FileID: 10, ChunkIndex: 0},
	}
	got, err := idx.FetchByRefs(ctx, "kb_1", refs)
	if err != nil {
		t.Fatalf("FetchByRefs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FetchByRefs() returned %d points, want 2", len(got))
	}
	// 结果顺序应与请求顺序一致
	if got[0].Payload.ChunkIndex != 1 || got[1].Payload.ChunkIndex != 0 {
		t.Errorf("FetchByRefs() order = [%d %d], want [1 0]",
			got[0].Payload.ChunkIndex, got[1].Payload.ChunkIndex)
	}
}

func TestMemoryIndex_DeleteByFile(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.CreateIndex(ctx, "kb_1", 2); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	if err := idx.Upsert(ctx, "kb_1", []Point{
		newTestPoint(10, 0, []float64{1, 0}),
		newTestPoint(10, 1, []float64{0, 1}),
		newTestPoint(20, 0, []float64{1, 1}),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := idx.DeleteByFile(ctx, "kb_1", 10); err != nil {
		t.Fatalf("DeleteByFile() error = %v", err)
	}
	if n := idx.Count("kb_1"); n != 1 {
		t.Errorf("Count() after DeleteByFile = %d, want 1", n)
	}
	// 其他文件的向量保留
	got, _ := idx.FetchByRefs(ctx, "kb_1", []ChunkRef{{FileID: 20, ChunkIndex: 0}})
	if len(got) != 1 {
		t.Error("DeleteByFile() removed points of another file")
	}
}

func TestMemoryIndex_DeleteIndex(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	if err := idx.CreateIndex(ctx, "kb_1", 2); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	if err := idx.DeleteIndex(ctx, "kb_1"); err != nil {
		t.Fatalf("DeleteIndex() error = %v", err)
	}
	exists, _ := idx.Exists(ctx, "kb_1")
	if exists {
		t.Error("Exists() after DeleteIndex should be false")
	}
	// 不存在的索引删除应幂等成功
	if err := idx.DeleteIndex(ctx, "kb_1"); err != nil {
		t.Errorf("DeleteIndex() on missing collection error = %v, want nil", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
