// Package knowledge 提供知识库与文件的控制面操作
// 摄取本身由 ingest 包的 Worker 异步执行，这里只负责元数据与状态迁移
package knowledge

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
	"github.com/ashwinyue/next-kb/internal/model"
	"github.com/ashwinyue/next-kb/internal/repository"
	"github.com/ashwinyue/next-kb/internal/service/file"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

// Service 知识库控制面服务
type Service struct {
	repo        repository.KnowledgeRepository
	index       vectorstore.Index
	storage     file.Storage
	maxFileSize int64
}

// NewService 创建知识库服务
func NewService(repo repository.KnowledgeRepository, index vectorstore.Index, storage file.Storage, cfg *config.Config) *Service {
	maxSize := cfg.File.MaxSize
	if maxSize <= 0 {
		maxSize = 100 << 20
	}
	return &Service{
		repo:        repo,
		index:       index,
		storage:     storage,
		maxFileSize: maxSize,
	}
}

// ========== 知识库操作 ==========

// CreateKnowledgeBaseRequest 创建知识库请求
type CreateKnowledgeBaseRequest struct {
	Name           string `json:"name" binding:"required"`
	EmbeddingModel string `json:"embedding_model" binding:"required"`
	RerankModel    string `json:"rerank_model"`
	VisionModel    string `json:"vision_model"`
}

// CreateKnowledgeBase 创建知识库
// 三个模型串都会做格式校验，向量化模型必填且创建后不可修改
func (s *Service) CreateKnowledgeBase(ctx context.Context, req *CreateKnowledgeBaseRequest) (*model.KnowledgeBase, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, kberrors.New(kberrors.KindValidation, "knowledge base name is required")
	}
	if _, err := model.ParseModelRef(req.EmbeddingModel, config.DefaultProvider); err != nil {
		return nil, err
	}
	if req.RerankModel != "" {
		if _, err := model.ParseModelRef(req.RerankModel, config.DefaultProvider); err != nil {
			return nil, err
		}
	}
	if req.VisionModel != "" {
		if _, err := model.ParseModelRef(req.VisionModel, config.DefaultProvider); err != nil {
			return nil, err
		}
	}

	kb := &model.KnowledgeBase{
		Name:           name,
		EmbeddingModel: strings.TrimSpace(req.EmbeddingModel),
		RerankModel:    strings.TrimSpace(req.RerankModel),
		VisionModel:    strings.TrimSpace(req.VisionModel),
	}
	if err := s.repo.CreateKnowledgeBase(ctx, kb); err != nil {
		return nil, fmt.Errorf("failed to create knowledge base: %w", err)
	}
	return kb, nil
}

// GetKnowledgeBase 获取知识库详情
func (s *Service) GetKnowledgeBase(ctx context.Context, id int64) (*model.KnowledgeBase, error) {
	return s.repo.GetKnowledgeBaseByID(ctx, id)
}

// ListKnowledgeBases 分页列出知识库
func (s *Service) ListKnowledgeBases(ctx context.Context, page, pageSize int) ([]*model.KnowledgeBase, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListKnowledgeBases(ctx, (page-1)*pageSize, pageSize)
}

// UpdateKnowledgeBaseRequest 更新知识库请求
// 指针字段为空表示不修改
type UpdateKnowledgeBaseRequest struct {
	Name        *string `json:"name"`
	RerankModel *string `json:"rerank_model"`
	VisionModel *string `json:"vision_model"`
}

// UpdateKnowledgeBase 更新知识库
// 向量化模型与已入库向量绑定，不允许修改；重排/视觉模型可随时更换
func (s *Service) UpdateKnowledgeBase(ctx context.Context, id int64, req *UpdateKnowledgeBaseRequest) (*model.KnowledgeBase, error) {
	kb, err := s.repo.GetKnowledgeBaseByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, kberrors.New(kberrors.KindValidation, "knowledge base name cannot be empty")
		}
		kb.Name = name
	}
	if req.RerankModel != nil {
		ref := strings.TrimSpace(*req.RerankModel)
		if ref != "" {
			if _, err := model.ParseModelRef(ref, config.DefaultProvider); err != nil {
				return nil, err
			}
		}
		kb.RerankModel = ref
	}
	if req.VisionModel != nil {
		ref := strings.TrimSpace(*req.VisionModel)
		if ref != "" {
			if _, err := model.ParseModelRef(ref, config.DefaultProvider); err != nil {
				return nil, err
			}
		}
		kb.VisionModel = ref
	}

	if err := s.repo.UpdateKnowledgeBase(ctx, kb); err != nil {
		return nil, fmt.Errorf("failed to update knowledge base: %w", err)
	}
	return kb, nil
}

// DeleteKnowledgeBase 删除知识库
// 元数据在单事务内级联删除；事务提交后再删向量索引，
// 索引删除失败只记录日志（ID 不复用，残留索引不会被再次引用）
func (s *Service) DeleteKnowledgeBase(ctx context.Context, id int64) error {
	kb, err := s.repo.GetKnowledgeBaseByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteKnowledgeBase(ctx, id); err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}

	if err := s.index.DeleteIndex(ctx, kb.CollectionName()); err != nil {
		log.Printf("Warning: failed to delete vector index %s: %v", kb.CollectionName(), err)
	}
	return nil
}

// ========== 文件操作 ==========

// UploadFileRequest 上传文件请求
type UploadFileRequest struct {
	Filename string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// UploadFile 上传文件并登记为待摄取
// 文件内容先落存储，元数据记录创建为 pending，等待 Worker 领取
func (s *Service) UploadFile(ctx context.Context, kbID int64, req *UploadFileRequest) (*model.KnowledgeBaseFile, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, kberrors.New(kberrors.KindValidation, "filename is required")
	}
	if req.Size > s.maxFileSize {
		return nil, kberrors.New(kberrors.KindValidation,
			"file size %d exceeds limit %d", req.Size, s.maxFileSize)
	}

	kb, err := s.repo.GetKnowledgeBaseByID(ctx, kbID)
	if err != nil {
		return nil, err
	}

	path, err := s.storage.Save(ctx, &file.SaveRequest{
		KnowledgeBaseID: kb.ID,
		FileName:        req.Filename,
		ContentType:     req.MimeType,
		Size:            req.Size,
		Reader:          req.Reader,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	f := &model.KnowledgeBaseFile{
		KnowledgeBaseID: kb.ID,
		Filename:        req.Filename,
		Filepath:        path,
		MimeType:        req.MimeType,
		FileSize:        req.Size,
		Status:          model.FileStatusPending,
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		if derr := s.storage.Delete(ctx, path); derr != nil {
			log.Printf("Warning: failed to clean up stored file %s: %v", path, derr)
		}
		return nil, fmt.Errorf("failed to register file: %w", err)
	}
	return f, nil
}

// RegisterFileRequest 登记已有文件请求
type RegisterFileRequest struct {
	Filename string `json:"filename" binding:"required"`
	Filepath string `json:"filepath" binding:"required"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// RegisterFile 登记存储中已存在的文件为待摄取
// 用于外部系统先写入对象存储再补登记的场景
func (s *Service) RegisterFile(ctx context.Context, kbID int64, req *RegisterFileRequest) (*model.KnowledgeBaseFile, error) {
	if strings.TrimSpace(req.Filename) == "" || strings.TrimSpace(req.Filepath) == "" {
		return nil, kberrors.New(kberrors.KindValidation, "filename and filepath are required")
	}

	kb, err := s.repo.GetKnowledgeBaseByID(ctx, kbID)
	if err != nil {
		return nil, err
	}

	f := &model.KnowledgeBaseFile{
		KnowledgeBaseID: kb.ID,
		Filename:        req.Filename,
		Filepath:        req.Filepath,
		MimeType:        req.MimeType,
		FileSize:        req.FileSize,
		Status:          model.FileStatusPending,
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to register file: %w", err)
	}
	return f, nil
}

// GetFile 获取文件详情
func (s *Service) GetFile(ctx context.Context, id int64) (*model.KnowledgeBaseFile, error) {
	return s.repo.GetFileByID(ctx, id)
}

// ListFiles 分页列出知识库下的文件
func (s *Service) ListFiles(ctx context.Context, kbID int64, page, pageSize int) ([]*model.KnowledgeBaseFile, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if _, err := s.repo.GetKnowledgeBaseByID(ctx, kbID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListFiles(ctx, kbID, (page-1)*pageSize, pageSize)
}

// DeleteFile 删除文件
// 顺序：向量 → 元数据 → 存储内容；正在摄取的文件需先暂停
func (s *Service) DeleteFile(ctx context.Context, id int64) error {
	f, err := s.repo.GetFileByID(ctx, id)
	if err != nil {
		return err
	}
	if f.Status == model.FileStatusProcessing {
		return kberrors.New(kberrors.KindValidation,
			"file %d is being ingested, pause it before deleting", id)
	}

	kb, err := s.repo.GetKnowledgeBaseByID(ctx, f.KnowledgeBaseID)
	if err != nil {
		return err
	}

	if err := s.index.DeleteByFile(ctx, kb.CollectionName(), f.ID); err != nil {
		return fmt.Errorf("failed to delete vectors of file %d: %w", id, err)
	}
	if err := s.repo.DeleteFile(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if err := s.storage.Delete(ctx, f.Filepath); err != nil {
		log.Printf("Warning: failed to delete stored file %s: %v", f.Filepath, err)
	}
	return nil
}

// ========== 文件状态迁移 ==========

// RetryFile 重试失败的文件：failed → pending
// 已持久化的分块保留，摄取会从断点继续
func (s *Service) RetryFile(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.FileStatusFailed, model.FileStatusPending, "retry")
}

// PauseFile 暂停摄取中的文件：processing → paused
// Worker 在批间检查状态，当前批完成后停止
func (s *Service) PauseFile(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.FileStatusProcessing, model.FileStatusPaused, "pause")
}

// ResumeFile 恢复暂停的文件：paused → pending
func (s *Service) ResumeFile(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.FileStatusPaused, model.FileStatusPending, "resume")
}

func (s *Service) transition(ctx context.Context, id int64, from, to, action string) error {
	ok, err := s.repo.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to %s file %d: %w", action, id, err)
	}
	if !ok {
		f, err := s.repo.GetFileByID(ctx, id)
		if err != nil {
			return err
		}
		return kberrors.New(kberrors.KindValidation,
			"cannot %s file %d: status is %s, want %s", action, id, f.Status, from)
	}
	return nil
}
