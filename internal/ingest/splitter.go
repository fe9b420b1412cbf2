// Package ingest 把知识文章切分、向量化后写入knowledge_chunks表。
// 只有入库流程会写知识库，问答流程只读。
package ingest

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// Piece 切分后的文本片段
type Piece struct {
	Index int
	Text  string
}

// Splitter 按字符窗口切分文本，相邻片段保留重叠部分
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter 创建切分器
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split 切分文本。窗口末尾优先回退到最近的空白处，避免截断单词。
func (s *Splitter) Split(text string) []Piece {
	runes := []rune(normalize(text))
	if len(runes) == 0 {
		return nil
	}

	var pieces []Piece
	start := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes, start+s.size/2, end); cut > 0 {
			end = cut
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, Piece{Index: len(pieces), Text: piece})
		}
		if end == len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// lastSpace 在[lo,hi)内查找最后一个空白位置
func lastSpace(runes []rune, lo, hi int) int {
	for i := hi - 1; i >= lo && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// normalize 合并行内空白，保留段落分隔
func normalize(s string) string {
	paragraphs := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n")
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
