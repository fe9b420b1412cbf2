package rag

import (
	"math"
	"sort"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 任一向量为空、长度不一致或范数为0时返回0。
func CosineSimilarity(a, b EmbeddingVector) float64 {
	sim, _ := cosine(a, b)
	return sim
}

// cosine 返回相似度以及两个向量是否可比较
func cosine(a, b EmbeddingVector) (float64, bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// 浮点误差可能略超出[-1,1]
	return math.Max(-1, math.Min(1, sim)), true
}

// Rank 对候选块打分并按相似度降序返回前k个。
// 向量缺失或维度不匹配的块记0分并排在最后；相同分数保持候选原有顺序。
// k<=0时使用DefaultTopK。
func Rank(query EmbeddingVector, candidates []KnowledgeChunk, k int) []ScoredChunk {
	if k <= 0 {
		k = DefaultTopK
	}

	scored := make([]ScoredChunk, len(candidates))
	valid := make([]bool, len(candidates))
	for i, c := range candidates {
		sim, ok := cosine(query, c.Embedding)
		scored[i] = ScoredChunk{KnowledgeChunk: c, Similarity: sim}
		valid[i] = ok
	}

	idx := make([]int, len(scored))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		if valid[a] != valid[b] {
			return valid[a]
		}
		return scored[a].Similarity > scored[b].Similarity
	})

	if len(idx) > k {
		idx = idx[:k]
	}
	ranked := make([]ScoredChunk, len(idx))
	for i, src := range idx {
		ranked[i] = scored[src]
	}
	return ranked
}
