// Package ingest 实现文件摄取管道
// 解析 → 分块 → 向量化 → 入库，按批推进并持久化进度，
// 失败或暂停后可从已完成的分块断点续作
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ashwinyue/next-kb/internal/chunker"
	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/kberrors"
	"github.com/ashwinyue/next-kb/internal/model"
	"github.com/ashwinyue/next-kb/internal/parser"
	"github.com/ashwinyue/next-kb/internal/provider"
	"github.com/ashwinyue/next-kb/internal/repository"
	"github.com/ashwinyue/next-kb/internal/service/file"
	"github.com/ashwinyue/next-kb/internal/vectorstore"
)

// ModelResolver 摄取所需的模型解析能力
type ModelResolver interface {
	ResolveEmbedding(ctx context.Context, kb *model.KnowledgeBase) (*provider.Embedding, error)
	ResolveVision(ctx context.Context, kb *model.KnowledgeBase) (provider.Vision, string, error)
}

// Engine 单文件摄取引擎
// 调用方负责先通过 ClaimPending 把文件置为 processing
type Engine struct {
	repo     repository.KnowledgeRepository
	index    vectorstore.Index
	storage  file.Storage
	resolver ModelResolver

	batchSize  int
	batchDelay time.Duration
	chunkSize  int
	overlap    int

	sleep func(ctx context.Context, d time.Duration) error // 测试注入
}

// NewEngine 创建摄取引擎
func NewEngine(repo repository.KnowledgeRepository, index vectorstore.Index, storage file.Storage, resolver ModelResolver, cfg *config.Config) *Engine {
	e := &Engine{
		repo:       repo,
		index:      index,
		storage:    storage,
		resolver:   resolver,
		batchSize:  cfg.Ingest.BatchSize,
		batchDelay: time.Duration(cfg.Ingest.BatchDelayMs) * time.Millisecond,
		chunkSize:  cfg.Ingest.ChunkSize,
		overlap:    cfg.Ingest.ChunkOverlap,
		sleep:      sleepCtx,
	}
	if e.batchSize <= 0 {
		e.batchSize = 100
	}
	if e.chunkSize <= 0 {
		e.chunkSize = chunker.DefaultChunkSize
	}
	if e.overlap < 0 {
		e.overlap = chunker.DefaultChunkOverlap
	}
	return e
}

// Process 摄取一个 processing 状态的文件
// 成功置 done；失败置 failed 并记录阶段化错误；
// 批间检测到状态被外部改为 paused 时静默停止
func (e *Engine) Process(ctx context.Context, fileID int64) error {
	f, err := e.repo.GetFileByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load file %d: %w", fileID, err)
	}
	kb, err := e.repo.GetKnowledgeBaseByID(ctx, f.KnowledgeBaseID)
	if err != nil {
		return e.fail(ctx, f, kberrors.Wrap(kberrors.KindTransientStore, err))
	}

	text, err := e.parse(ctx, kb, f)
	if err != nil {
		return e.fail(ctx, f, err)
	}

	chunks := chunker.Chunk(text, e.chunkSize, e.overlap)
	total := len(chunks)
	if err := e.repo.SetTotalChunks(ctx, f.ID, total); err != nil {
		return e.fail(ctx, f, kberrors.Wrap(kberrors.KindTransientStore, err))
	}

	// 空文件或此前已全部入库：直接完成
	if f.ChunkCount >= total {
		if f.ChunkCount > total {
			log.Printf("File %d has %d persisted chunks but only %d total, marking done", f.ID, f.ChunkCount, total)
		}
		return e.finish(ctx, f)
	}

	embedder, err := e.resolver.ResolveEmbedding(ctx, kb)
	if err != nil {
		return e.fail(ctx, f, err)
	}

	collection := kb.CollectionName()
	indexReady, err := e.index.Exists(ctx, collection)
	if err != nil {
		return e.fail(ctx, f, err)
	}

	// 从断点续作：跳过已持久化的分块
	remaining := chunks[f.ChunkCount:]
	done := f.ChunkCount

	for start := 0; start < len(remaining); start += e.batchSize {
		// 批间协作式暂停检查
		current, err := e.repo.GetFileByID(ctx, f.ID)
		if err != nil {
			return e.fail(ctx, f, kberrors.Wrap(kberrors.KindTransientStore, err))
		}
		if current.Status != model.FileStatusProcessing {
			log.Printf("File %d status changed to %s, stopping ingestion at chunk %d/%d", f.ID, current.Status, done, total)
			return nil
		}
		if ctx.Err() != nil {
			return e.interrupt(ctx, f)
		}

		end := start + e.batchSize
		if end > len(remaining) {
			end = len(remaining)
		}
		batch := remaining[start:end]

		vectors, err := embedder.Embed(ctx, batch)
		if err != nil {
			return e.fail(ctx, f, err)
		}

		// 维度在首批向量化后才可知，索引惰性创建
		if !indexReady {
			if err := e.index.CreateIndex(ctx, collection, len(vectors[0])); err != nil {
				return e.fail(ctx, f, err)
			}
			indexReady = true
		}

		points := make([]vectorstore.Point, len(batch))
		now := time.Now()
		for i, textChunk := range batch {
			chunkIndex := done + i
			points[i] = vectorstore.Point{
				ID:     fmt.Sprintf("%d_%d", f.ID, chunkIndex),
				Vector: vectors[i],
				Payload: vectorstore.Payload{
					KBID:       kb.ID,
					FileID:     f.ID,
					Filename:   f.Filename,
					ChunkIndex: chunkIndex,
					Text:       textChunk,
					MimeType:   f.MimeType,
					CreatedAt:  now,
				},
			}
		}
		if err := e.index.Upsert(ctx, collection, points); err != nil {
			return e.fail(ctx, f, err)
		}

		done += len(batch)
		if err := e.repo.UpdateFileProgress(ctx, f.ID, done); err != nil {
			return e.fail(ctx, f, kberrors.Wrap(kberrors.KindTransientStore, err))
		}

		if end < len(remaining) && e.batchDelay > 0 {
			if err := e.sleep(ctx, e.batchDelay); err != nil {
				return e.interrupt(ctx, f)
			}
		}
	}

	return e.finish(ctx, f)
}

// parse 读取并解析文件内容
func (e *Engine) parse(ctx context.Context, kb *model.KnowledgeBase, f *model.KnowledgeBaseFile) (string, error) {
	rc, err := e.storage.Get(ctx, f.Filepath)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	defer rc.Close()

	var opts parser.Options
	if kb.VisionModel != "" {
		vision, visionModel, err := e.resolver.ResolveVision(ctx, kb)
		if err != nil {
			return "", err
		}
		opts.Vision = vision
		opts.VisionModel = visionModel
	}

	return parser.Parse(ctx, f.Filename, f.MimeType, rc, opts)
}

func (e *Engine) finish(ctx context.Context, f *model.KnowledgeBaseFile) error {
	if err := e.repo.UpdateFileStatus(ctx, f.ID, model.FileStatusDone, ""); err != nil {
		return fmt.Errorf("failed to mark file %d done: %w", f.ID, err)
	}
	log.Printf("File %d (%s) ingested", f.ID, f.Filename)
	return nil
}

// fail 记录阶段化错误并把文件置为 failed
func (e *Engine) fail(ctx context.Context, f *model.KnowledgeBaseFile, cause error) error {
	msg := fmt.Sprintf("%s: %v", kberrors.KindOf(cause), cause)
	if err := e.repo.UpdateFileStatus(ctx, f.ID, model.FileStatusFailed, msg); err != nil {
		log.Printf("Warning: failed to mark file %d failed: %v", f.ID, err)
	}
	return fmt.Errorf("ingestion of file %d failed: %w", f.ID, cause)
}

// interrupt 进程停机时把文件放回 paused，待重启后恢复
func (e *Engine) interrupt(ctx context.Context, f *model.KnowledgeBaseFile) error {
	// 用独立上下文写状态，原 ctx 可能已取消
	detached, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := e.repo.TransitionStatus(detached, f.ID, model.FileStatusProcessing, model.FileStatusPaused); err != nil {
		log.Printf("Warning: failed to pause file %d on shutdown: %v", f.ID, err)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
