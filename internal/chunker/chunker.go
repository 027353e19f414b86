// Package chunker 将解析后的文档文本切分为带重叠的分块
// 纯函数，给定相同输入输出确定
package chunker

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// Chunk 按 rune 窗口切分文本
// 每个分块最长 size 个 rune，相邻分块共享 overlap 个 rune 的衔接区；
// 即第 i+1 块以第 i 块末尾 overlap 个 rune 开头。
// 不变量：首块加上后续各块去掉前 overlap 个 rune 后的拼接恢复原文。
// 空文本返回 nil。
func Chunk(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Reassemble 去除重叠后拼接分块，是 Chunk 的逆运算
// 主要供一致性校验使用
func Reassemble(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	if overlap < 0 {
		overlap = 0
	}
	out := []rune(chunks[0])
	for _, c := range chunks[1:] {
		runes := []rune(c)
		if len(runes) <= overlap {
			continue
		}
		out = append(out, runes[overlap:]...)
	}
	return string(out)
}
