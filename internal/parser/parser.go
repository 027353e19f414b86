// Package parser 将上传文件解析为纯文本
// 支持 docx/pdf/html/txt/md/csv/epub 及图片（需知识库配置视觉模型）
package parser

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// ImageExtractor 图片文字提取能力，由视觉模型客户端实现
type ImageExtractor interface {
	ExtractText(ctx context.Context, visionModel, mimeType string, data []byte) (string, error)
}

// Options 解析选项
type Options struct {
	// Vision 图片解析所需的视觉客户端，未配置时图片类型不可摄取
	Vision      ImageExtractor
	VisionModel string
}

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Parse 解析文件内容为纯文本
// 按扩展名分派解析器；解析失败与不支持的类型均返回 parse 类错误
func Parse(ctx context.Context, filename, mimeType string, r io.Reader, opts Options) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	if imgMime, ok := imageExtensions[ext]; ok || strings.HasPrefix(mimeType, "image/") {
		if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
			mimeType = imgMime
		}
		return parseImage(ctx, mimeType, r, opts)
	}

	switch ext {
	case ".txt", ".md":
		return parseText(r)
	case ".csv":
		return parseCSV(r)
	case ".epub":
		return parseEPUB(ctx, r)
	case ".pdf":
		p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
		if err != nil {
			return "", kberrors.Wrap(kberrors.KindParse, err)
		}
		return parseWith(ctx, p, r)
	case ".docx":
		p, err := docx.NewDocxParser(ctx, &docx.Config{
			ToSections:      false,
			IncludeComments: false,
			IncludeHeaders:  true,
			IncludeFooters:  false,
			IncludeTables:   true,
		})
		if err != nil {
			return "", kberrors.Wrap(kberrors.KindParse, err)
		}
		return parseWith(ctx, p, r)
	case ".html", ".htm":
		// 使用 body 选择器提取正文内容
		bodySelector := "body"
		p, err := html.NewParser(ctx, &html.Config{Selector: &bodySelector})
		if err != nil {
			return "", kberrors.Wrap(kberrors.KindParse, err)
		}
		return parseWith(ctx, p, r)
	default:
		return "", kberrors.New(kberrors.KindParse, "unsupported file type: %s", ext)
	}
}

// parseWith 运行 eino 解析器并拼接产出的文档内容
func parseWith(ctx context.Context, p einoparser.Parser, r io.Reader) (string, error) {
	docs, err := p.Parse(ctx, r)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	return joinDocuments(docs), nil
}

func joinDocuments(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if text := strings.TrimSpace(d.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func parseImage(ctx context.Context, mimeType string, r io.Reader, opts Options) (string, error) {
	if opts.Vision == nil {
		return "", kberrors.New(kberrors.KindParse,
			"image ingestion requires a vision model on the knowledge base")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	text, err := opts.Vision.ExtractText(ctx, opts.VisionModel, mimeType, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
