package parser

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/ashwinyue/next-kb/internal/kberrors"
)

// parseCSV 把表格按行转为文本
// 首行视为表头，数据行输出为 "表头: 值" 键值对，便于向量检索
func parseCSV(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return "", err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // 允许行字段数不一致

	records, err := reader.ReadAll()
	if err != nil {
		return "", kberrors.Wrap(kberrors.KindParse, err)
	}
	if len(records) == 0 {
		return "", nil
	}

	header := records[0]
	var b strings.Builder
	for _, row := range records[1:] {
		pairs := make([]string, 0, len(row))
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				pairs = append(pairs, strings.TrimSpace(header[i])+": "+cell)
			} else {
				pairs = append(pairs, cell)
			}
		}
		if len(pairs) > 0 {
			b.WriteString(strings.Join(pairs, ", "))
			b.WriteByte('\n')
		}
	}

	// 无数据行时退回表头本身
	if b.Len() == 0 {
		return strings.Join(header, ", "), nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
