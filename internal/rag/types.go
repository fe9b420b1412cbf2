// Package rag 实现客服门户的检索增强问答流程：
// 问题向量化 → 按租户拉取候选知识块 → 余弦相似度排序 → 拼接证据 → 基于证据生成回答。
//
// 每次调用都是独立的顺序流水线，不共享可变状态；知识库对本包只读。
package rag

import (
	"strings"
	"time"
)

// 固定的对外回复
const (
	MessageEmptyQuestion = "Ask a question to get started."
	MessageUnavailable   = "AI is unavailable. Please request human support."
	MessageNoEvidence    = "I couldn't find relevant sources. Please rephrase your question or contact an agent."
	MessageNoAnswer      = "No answer generated."
	MessageNoSources     = "No sources found."
)

const (
	DefaultTopK           = 6
	DefaultCandidateLimit = 200
)

// EmbeddingVector 文本向量，维度由embedding模型决定，生成后不再修改
type EmbeddingVector []float32

// Query 单次提问，不持久化
type Query struct {
	Text     string
	TenantID *string
}

// KnowledgeChunk 知识块（由知识库管理方拥有，这里只持有只读副本）
type KnowledgeChunk struct {
	ID        string
	Title     string
	URL       *string
	Content   string
	Embedding EmbeddingVector
	TenantID  *string
}

// URLString 返回URL，缺失时为空串
func (c KnowledgeChunk) URLString() string {
	if c.URL == nil {
		return ""
	}
	return *c.URL
}

// ScoredChunk 带相似度的知识块
type ScoredChunk struct {
	KnowledgeChunk
	Similarity float64
}

// Source 返回给调用方的引用来源
type Source struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        *string `json:"url"`
	Excerpt    string  `json:"excerpt"`
	Similarity float64 `json:"similarity"`
}

// State 流水线状态
type State string

const (
	StateEmbedding     State = "embedding"
	StateRetrieving    State = "retrieving"
	StateRanking       State = "ranking"
	StateNoEvidence    State = "no_evidence"
	StateHasEvidence   State = "has_evidence"
	StateGenerating    State = "generating"
	StateDone          State = "done"
	StateDegraded      State = "degraded"
	StateEmptyQuestion State = "empty_question"
)

// Result 问答结果，每次调用新建
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	State   State    `json:"-"`
}

// Reply 渲染对外回复：回答 + 来源列表
func (r *Result) Reply() string {
	var b strings.Builder
	b.WriteString(r.Answer)
	b.WriteString("\n\nSources:\n")
	if len(r.Sources) == 0 {
		b.WriteString(MessageNoSources)
		return b.String()
	}
	for i, s := range r.Sources {
		if i > 0 {
			b.WriteString("\n")
		}
		url := ""
		if s.URL != nil {
			url = *s.URL
		}
		b.WriteString("- " + s.Title + " (" + url + ")")
	}
	return b.String()
}

// Outcome 一次调用的终态信息，供观察者（指标、事件）使用
type Outcome struct {
	Question   string
	TenantID   *string
	State      State
	FailedAt   State
	Sources    []Source
	Candidates int
	Err        error
	Duration   time.Duration
}

func sourcesFrom(chunks []ScoredChunk) []Source {
	sources := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, Source{
			ID:         c.ID,
			Title:      c.Title,
			URL:        c.URL,
			Excerpt:    c.Content,
			Similarity: c.Similarity,
		})
	}
	return sources
}
