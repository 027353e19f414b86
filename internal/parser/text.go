package parser

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseText 读取纯文本，非 UTF-8 内容尝试按常见编码解码
func parseText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	return decodeText(data)
}

// decodeText 将字节序列解码为 UTF-8 文本
// 解码顺序：UTF-8（含 BOM）→ UTF-16（按 BOM）→ GB18030 → Latin-1 兜底
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	if len(data) >= 2 {
		if (data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF) {
			decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
			if decoded, _, err := transform.Bytes(decoder, data); err == nil && utf8.Valid(decoded) {
				return string(decoded), nil
			}
		}
	}

	if decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data); err == nil && utf8.Valid(decoded) {
		return string(decoded), nil
	}

	// Latin-1 对任意字节序列都可解码，作为最后兜底
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	return string(decoded), nil
}
