package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ashwinyue/next-kb/internal/config"
	"github.com/ashwinyue/next-kb/internal/model"
	"github.com/ashwinyue/next-kb/internal/repository"
)

// Worker 摄取后台循环
// 轮询领取 pending 文件逐个摄取，并回收超时的 processing 租约
type Worker struct {
	repo   repository.KnowledgeRepository
	engine *Engine

	pollInterval      time.Duration
	errorBackoff      time.Duration
	processingTimeout time.Duration

	now func() time.Time // 测试注入
}

// NewWorker 创建摄取 Worker
func NewWorker(repo repository.KnowledgeRepository, engine *Engine, cfg *config.Config) *Worker {
	w := &Worker{
		repo:              repo,
		engine:            engine,
		pollInterval:      time.Duration(cfg.Ingest.PollInterval) * time.Second,
		errorBackoff:      time.Duration(cfg.Ingest.ErrorBackoff) * time.Second,
		processingTimeout: time.Duration(cfg.Ingest.ProcessingTimeout) * time.Second,
		now:               time.Now,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 3 * time.Second
	}
	if w.errorBackoff <= 0 {
		w.errorBackoff = 10 * time.Second
	}
	if w.processingTimeout <= 0 {
		w.processingTimeout = 5 * time.Minute
	}
	return w
}

// Start 运行 Worker 直到 ctx 取消
// 启动时先把遗留的 processing 文件复位为 paused，
// 这些文件是上次进程异常退出时的在制品
func (w *Worker) Start(ctx context.Context) {
	if n, err := w.repo.ResetProcessing(ctx); err != nil {
		log.Printf("Warning: failed to reset in-flight files: %v", err)
	} else if n > 0 {
		log.Printf("Reset %d in-flight files to paused after restart", n)
	}

	log.Printf("Ingest worker started, poll interval %s", w.pollInterval)
	for {
		interval := w.pollInterval
		if err := w.RunOnce(ctx); err != nil {
			log.Printf("Ingest cycle failed: %v", err)
			interval = w.errorBackoff
		}

		select {
		case <-ctx.Done():
			log.Printf("Ingest worker stopped")
			return
		case <-time.After(interval):
		}
	}
}

// RunOnce 执行一轮：回收超时租约，然后领取并摄取 pending 文件
func (w *Worker) RunOnce(ctx context.Context) error {
	if err := w.reapStale(ctx); err != nil {
		return err
	}

	pending, err := w.repo.ListFilesByStatus(ctx, model.FileStatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending files: %w", err)
	}

	for _, f := range pending {
		if ctx.Err() != nil {
			return nil
		}

		// CAS 领取：其他实例或并发循环先到手则跳过
		claimed, err := w.repo.ClaimPending(ctx, f.ID, w.now())
		if err != nil {
			log.Printf("Failed to claim file %d: %v", f.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		if err := w.engine.Process(ctx, f.ID); err != nil {
			log.Printf("Ingestion of file %d failed: %v", f.ID, err)
		}
	}
	return nil
}

// reapStale 将超过租约时限的 processing 文件判定为失败
// 覆盖引擎卡死或进程失联导致的状态滞留
func (w *Worker) reapStale(ctx context.Context) error {
	cutoff := w.now().Add(-w.processingTimeout)
	stale, err := w.repo.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale files: %w", err)
	}

	for _, f := range stale {
		msg := fmt.Sprintf("timeout: ingestion exceeded %s", w.processingTimeout)
		if err := w.repo.UpdateFileStatus(ctx, f.ID, model.FileStatusFailed, msg); err != nil {
			log.Printf("Warning: failed to reap stale file %d: %v", f.ID, err)
			continue
		}
		log.Printf("File %d ingestion timed out, marked failed", f.ID)
	}
	return nil
}
