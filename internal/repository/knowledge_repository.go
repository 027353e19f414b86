package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-kb/internal/database"
	"github.com/ashwinyue/next-kb/internal/model"
)

// knowledgeRepositoryImpl 知识库元数据访问的 gorm 实现
type knowledgeRepositoryImpl struct {
	db *database.DB
}

// NewKnowledgeRepository 创建知识库仓库
func NewKnowledgeRepository(db *database.DB) KnowledgeRepository {
	return &knowledgeRepositoryImpl{db: db}
}

// ========== 知识库操作 ==========

func (r *knowledgeRepositoryImpl) CreateKnowledgeBase(ctx context.Context, kb *model.KnowledgeBase) error {
	return r.db.WithContext(ctx).Create(kb).Error
}

func (r *knowledgeRepositoryImpl) GetKnowledgeBaseByID(ctx context.Context, id int64) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&kb).Error
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (r *knowledgeRepositoryImpl) ListKnowledgeBases(ctx context.Context, offset, limit int) ([]*model.KnowledgeBase, int64, error) {
	var kbs []*model.KnowledgeBase
	var total int64

	query := r.db.WithContext(ctx).Model(&model.KnowledgeBase{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&kbs).Error
	return kbs, total, err
}

func (r *knowledgeRepositoryImpl) UpdateKnowledgeBase(ctx context.Context, kb *model.KnowledgeBase) error {
	return r.db.WithContext(ctx).Save(kb).Error
}

// DeleteKnowledgeBase 级联删除：文件行与知识库行在同一事务内提交
// 向量集合的删除由调用方在事务提交后执行（跨存储无事务可用）
func (r *knowledgeRepositoryImpl) DeleteKnowledgeBase(ctx context.Context, id int64) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&model.KnowledgeBaseFile{}, "knowledge_base_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.KnowledgeBase{}, "id = ?", id).Error
	})
}

// ========== 文件操作 ==========

func (r *knowledgeRepositoryImpl) CreateFile(ctx context.Context, file *model.KnowledgeBaseFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *knowledgeRepositoryImpl) GetFileByID(ctx context.Context, id int64) (*model.KnowledgeBaseFile, error) {
	var file model.KnowledgeBaseFile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *knowledgeRepositoryImpl) ListFiles(ctx context.Context, kbID int64, offset, limit int) ([]*model.KnowledgeBaseFile, int64, error) {
	var files []*model.KnowledgeBaseFile
	var total int64

	query := r.db.WithContext(ctx).Model(&model.KnowledgeBaseFile{}).Where("knowledge_base_id = ?", kbID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&files).Error
	return files, total, err
}

func (r *knowledgeRepositoryImpl) ListFilesByStatus(ctx context.Context, status string) ([]*model.KnowledgeBaseFile, error) {
	var files []*model.KnowledgeBaseFile
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&files).Error
	return files, err
}

func (r *knowledgeRepositoryImpl) DeleteFile(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.KnowledgeBaseFile{}, "id = ?", id).Error
}

// ========== 状态迁移 ==========

func (r *knowledgeRepositoryImpl) UpdateFileStatus(ctx context.Context, id int64, status, errMsg string) error {
	updates := map[string]interface{}{
		"status": status,
		"error":  errMsg,
	}
	// processing_started_at 非空当且仅当 status == processing
	if status == model.FileStatusProcessing {
		updates["processing_started_at"] = time.Now()
	} else {
		updates["processing_started_at"] = nil
	}
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeBaseFile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *knowledgeRepositoryImpl) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	updates := map[string]interface{}{
		"status": to,
	}
	if to == model.FileStatusProcessing {
		updates["processing_started_at"] = time.Now()
	} else {
		updates["processing_started_at"] = nil
	}
	if to == model.FileStatusPending {
		updates["error"] = ""
	}
	res := r.db.WithContext(ctx).
		Model(&model.KnowledgeBaseFile{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *knowledgeRepositoryImpl) ClaimPending(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.KnowledgeBaseFile{}).
		Where("id = ? AND status = ?", id, model.FileStatusPending).
		Updates(map[string]interface{}{
			"status":                model.FileStatusProcessing,
			"processing_started_at": now,
			"error":                 "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ========== 进度 ==========

func (r *knowledgeRepositoryImpl) UpdateFileProgress(ctx context.Context, id int64, chunkCount int) error {
	// WHERE chunk_count <= ? 保证单调：重复或乱序调用不会回退进度
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeBaseFile{}).
		Where("id = ? AND chunk_count <= ?", id, chunkCount).
		Update("chunk_count", chunkCount).Error
}

func (r *knowledgeRepositoryImpl) SetTotalChunks(ctx context.Context, id int64, total int) error {
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeBaseFile{}).
		Where("id = ?", id).
		Update("total_chunks", total).Error
}

// ========== Worker 恢复 ==========

func (r *knowledgeRepositoryImpl) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]*model.KnowledgeBaseFile, error) {
	var files []*model.KnowledgeBaseFile
	err := r.db.WithContext(ctx).
		Where("status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?",
			model.FileStatusProcessing, cutoff).
		Find(&files).Error
	return files, err
}

func (r *knowledgeRepositoryImpl) ResetProcessing(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.KnowledgeBaseFile{}).
		Where("status = ?", model.FileStatusProcessing).
		Updates(map[string]interface{}{
			"status":                model.FileStatusPaused,
			"processing_started_at": nil,
			"error":                 fmt.Sprintf("processing interrupted by restart at %s", time.Now().Format(time.RFC3339)),
		})
	return res.RowsAffected, res.Error
}
