package rag

import (
	"fmt"
	"strings"
)

// Assemble 将排序后的知识块拼接为带编号的证据文本，块内容原样保留。
// 每段格式：
//
//	Source {n}: {title}
//	{content}
//	URL: {url}
func Assemble(chunks []ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Source %d: %s\n%s\nURL: %s", i+1, c.Title, c.Content, c.URLString())
	}
	return b.String()
}
