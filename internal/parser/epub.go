package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/html"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// parseEPUB 解析 EPUB 电子书
// EPUB 本质是 zip 包内的 XHTML 章节，逐章用 HTML 解析器提取正文，
// 按包内顺序拼接（多数制作工具的包内顺序即阅读顺序）
func parseEPUB(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}

	bodySelector := "body"
	htmlParser, err := html.NewParser(ctx, &html.Config{Selector: &bodySelector})
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}

	var chapters []string
	for _, f := range zr.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".xhtml" && ext != ".html" && ext != ".htm" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", kberrors.Wrap(kberrors.KindParse, err)
		}
		docs, err := htmlParser.Parse(ctx, rc)
		rc.Close()
		if err != nil {
			return "", kberrors.Wrap(kberrors.KindParse, err)
		}

		if text := joinDocuments(docs); text != "" {
			chapters = append(chapters, text)
		}
	}

	if len(chapters) == 0 {
		return "", kberrors.New(kberrors.KindParse, "epub contains no readable chapters")
	}
	return strings.Join(chapters, "\n\n"), nil
}
