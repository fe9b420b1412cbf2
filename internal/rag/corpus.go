package rag

import "context"

// CorpusReader 按租户读取候选知识块。
// tenantID为nil时表示全局范围；返回条数不超过后端配置的上限。
type CorpusReader interface {
	FetchCandidates(ctx context.Context, tenantID *string) ([]KnowledgeChunk, error)
}

// CorpusReaderFunc 函数适配器
type CorpusReaderFunc func(ctx context.Context, tenantID *string) ([]KnowledgeChunk, error)

func (f CorpusReaderFunc) FetchCandidates(ctx context.Context, tenantID *string) ([]KnowledgeChunk, error) {
	return f(ctx, tenantID)
}
