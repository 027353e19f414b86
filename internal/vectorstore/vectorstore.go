// Package vectorstore 提供按知识库划分集合的向量索引
// 每个知识库一个集合，集合名由知识库 ID 确定；
// 维度在首个分块向量化后才确定，因此集合创建是惰性的
package vectorstore

import (
	"context"
	"time"
)

// Payload 向量点携带的负载
type Payload struct {
	KBID       int64     `json:"kb_id"`
	FileID     int64     `json:"file_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	MimeType   string    `json:"mime_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Point 向量点
type Point struct {
	ID      string
	Vector  []float64
	Payload Payload
}

// ScoredPoint 相似度查询结果
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload Payload
}

// ChunkRef 分块的复合键 (file, chunkIndex)
type ChunkRef struct {
	FileID     int64 `json:"file_id"`
	ChunkIndex int   `json:"chunk_index"`
}

// Index 向量索引接口
type Index interface {
	// CreateIndex 创建集合；已存在且维度一致时幂等成功，维度不一致报错
	CreateIndex(ctx context.Context, name string, dimension int) error
	// Exists 集合是否已存在
	Exists(ctx context.Context, name string) (bool, error)
	// Upsert 批量写入向量点，ID 相同则覆盖
	Upsert(ctx context.Context, name string, points []Point) error
	// Query 相似度检索，按分数降序返回最多 topK 条
	Query(ctx context.Context, name string, vector []float64, topK int) ([]ScoredPoint, error)
	// FetchByRefs 按 (file, chunkIndex) 复合键批量点查，缺失的键静默跳过
	FetchByRefs(ctx context.Context, name string, refs []ChunkRef) ([]Point, error)
	// DeleteByFile 删除某文件的全部向量
	DeleteByFile(ctx context.Context, name string, fileID int64) error
	// DeleteIndex 删除整个集合；集合不存在时幂等成功
	DeleteIndex(ctx context.Context, name string) error
}
