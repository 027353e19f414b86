// Package kberrors 定义知识库管道的错误分类
// 分类仅用于可观测性和 HTTP 状态映射，不改变控制流
package kberrors

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindConfiguration  Kind = "configuration"   // 知识库或模型配置缺失/非法
	KindParse          Kind = "parse"           // 文档解析失败
	KindChunking       Kind = "chunking"        // 分块失败
	KindEmbedding      Kind = "embedding"       // 向量化失败
	KindVectorStorage  Kind = "vector_storage"  // 向量索引读写失败
	KindVision         Kind = "vision"          // 视觉 OCR 失败
	KindTimeout        Kind = "timeout"         // 处理租约超时
	KindTransientStore Kind = "transient_store" // 可重试的存储故障
	KindValidation     Kind = "validation"      // 非法的请求输入或状态迁移
	KindUnknown        Kind = "unknown"
)

// Error 携带类别的错误
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建指定类别的错误
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap 为已有错误附加类别；nil 返回 nil
// 已携带类别的错误保持原类别不变
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var ke *Error
	if errors.As(err, &ke) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf 提取错误类别，未分类返回 KindUnknown
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindUnknown
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
