package model

import (
	"fmt"
	"time"
)

// 文件摄取状态机：
// pending → processing → {done | failed | paused}
// paused → pending（resume）、failed → pending（retry）为显式用户迁移
const (
	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusPaused     = "paused"
	FileStatusFailed     = "failed"
	FileStatusDone       = "done"
)

// KnowledgeBase 知识库
type KnowledgeBase struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string    `gorm:"size:100" json:"name"`
	EmbeddingModel string    `gorm:"size:100" json:"embedding_model"`
	RerankModel    string    `gorm:"size:100" json:"rerank_model,omitempty"`
	VisionModel    string    `gorm:"size:100" json:"vision_model,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Files []KnowledgeBaseFile `gorm:"foreignKey:KnowledgeBaseID" json:"-"`
}

// CollectionName 返回该知识库的向量集合名，由 ID 确定
func (kb *KnowledgeBase) CollectionName() string {
	return fmt.Sprintf("kb_%d", kb.ID)
}

// KnowledgeBaseFile 知识库文件
// ChunkCount 为已持久化向量的分块数，TotalChunks 首次分块后才非零
// 不变量：TotalChunks 已知时 0 <= ChunkCount <= TotalChunks；
// ProcessingStartedAt 非空当且仅当 Status == processing
type KnowledgeBaseFile struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	KnowledgeBaseID     int64      `gorm:"index" json:"knowledge_base_id"`
	Filename            string     `gorm:"size:255" json:"filename"`
	Filepath            string     `gorm:"size:500" json:"filepath"`
	MimeType            string     `gorm:"size:100" json:"mime_type"`
	FileSize            int64      `gorm:"default:0" json:"file_size"`
	ChunkCount          int        `gorm:"default:0" json:"chunk_count"`
	TotalChunks         int        `gorm:"default:0" json:"total_chunks"`
	Status              string     `gorm:"size:20;index;default:pending" json:"status"`
	Error               string     `gorm:"type:text" json:"error,omitempty"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

func (KnowledgeBaseFile) TableName() string {
	return "knowledge_base_files"
}
