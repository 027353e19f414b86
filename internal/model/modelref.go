package model

import (
	"strings"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// ModelRef 类型化的 (provider, model) 引用
// 存储格式为 "provider:model"；兼容历史展示格式 "Label | model"，
// 其 Label 小写后作为 provider id
type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ParseModelRef 解析模型引用串
// 无 provider 前缀时回退到 fallbackProvider
func ParseModelRef(s, fallbackProvider string) (ModelRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModelRef{}, kberrors.New(kberrors.KindConfiguration, "empty model reference")
	}

	// 历史格式 "Label | model"
	if label, rest, ok := strings.Cut(s, "|"); ok {
		provider := strings.ToLower(strings.TrimSpace(label))
		model := strings.TrimSpace(rest)
		if provider == "" || model == "" {
			return ModelRef{}, kberrors.New(kberrors.KindConfiguration, "malformed model reference %q", s)
		}
		return ModelRef{Provider: provider, Model: model}, nil
	}

	if provider, rest, ok := strings.Cut(s, ":"); ok {
		provider = strings.TrimSpace(provider)
		model := strings.TrimSpace(rest)
		if provider == "" || model == "" {
			return ModelRef{}, kberrors.New(kberrors.KindConfiguration, "malformed model reference %q", s)
		}
		return ModelRef{Provider: strings.ToLower(provider), Model: model}, nil
	}

	if fallbackProvider == "" {
		return ModelRef{}, kberrors.New(kberrors.KindConfiguration, "model reference %q has no provider and no fallback is configured", s)
	}
	return ModelRef{Provider: fallbackProvider, Model: s}, nil
}

// String 返回规范化的 "provider:model" 形式
func (r ModelRef) String() string {
	return r.Provider + ":" + r.Model
}
