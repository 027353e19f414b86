// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"
	"time"

	"github.com/ashwinyue/next-kb/internal/model"
)

// ========== KnowledgeRepository 接口 ==========

// KnowledgeRepository 知识库元数据访问接口
// 元数据存储是文件状态的唯一权威，也是 Worker 与控制面的同步点
type KnowledgeRepository interface {
	// 知识库操作
	CreateKnowledgeBase(ctx context.Context, kb *model.KnowledgeBase) error
	GetKnowledgeBaseByID(ctx context.Context, id int64) (*model.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context, offset, limit int) ([]*model.KnowledgeBase, int64, error)
	UpdateKnowledgeBase(ctx context.Context, kb *model.KnowledgeBase) error
	// DeleteKnowledgeBase 级联删除知识库及其全部文件，单事务执行
	DeleteKnowledgeBase(ctx context.Context, id int64) error

	// 文件操作
	CreateFile(ctx context.Context, file *model.KnowledgeBaseFile) error
	GetFileByID(ctx context.Context, id int64) (*model.KnowledgeBaseFile, error)
	ListFiles(ctx context.Context, kbID int64, offset, limit int) ([]*model.KnowledgeBaseFile, int64, error)
	ListFilesByStatus(ctx context.Context, status string) ([]*model.KnowledgeBaseFile, error)
	DeleteFile(ctx context.Context, id int64) error

	// 状态迁移
	// UpdateFileStatus 无条件写入状态；processing_started_at 随状态维护
	UpdateFileStatus(ctx context.Context, id int64, status, errMsg string) error
	// TransitionStatus 比较并交换式迁移，当前状态不为 from 时返回 false
	TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error)
	// ClaimPending 将 pending 文件原子地置为 processing 并记录租约起点
	ClaimPending(ctx context.Context, id int64, now time.Time) (bool, error)

	// 进度
	// UpdateFileProgress 仅允许 chunk_count 单调递增，可安全重复调用
	UpdateFileProgress(ctx context.Context, id int64, chunkCount int) error
	SetTotalChunks(ctx context.Context, id int64, total int) error

	// Worker 恢复
	ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]*model.KnowledgeBaseFile, error)
	// ResetProcessing 将所有 processing 文件置为 paused（进程重启恢复）
	ResetProcessing(ctx context.Context) (int64, error)
}

// 确保 knowledgeRepositoryImpl 实现了接口
var _ KnowledgeRepository = (*knowledgeRepositoryImpl)(nil)
