package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/support-portal/internal/corpus"
	"github.com/aihub/support-portal/internal/models"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// chunkNamespace 生成确定性chunk id的命名空间，重复入库同一文章会覆盖旧块
var chunkNamespace = uuid.MustParse("6f1c2a8e-4b8d-4f0e-9a51-3c2d7e5b9a10")

// Article 待入库的知识文章
type Article struct {
	Title    string  `yaml:"title" json:"title"`
	URL      *string `yaml:"url" json:"url"`
	Content  string  `yaml:"content" json:"content"`
	TenantID *string `yaml:"tenant" json:"tenant_id"`
}

// Stats 入库统计
type Stats struct {
	Articles int
	Chunks   int
	Skipped  int
}

// Ingester 切分、向量化并写入文章
type Ingester struct {
	embedder rag.Embedder
	splitter *Splitter
	writer   ChunkWriter
	codec    corpus.EmbeddingCodec
	logger   *zap.Logger
}

// NewIngester 创建入库器
func NewIngester(embedder rag.Embedder, splitter *Splitter, writer ChunkWriter, logger *zap.Logger) *Ingester {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		embedder: embedder,
		splitter: splitter,
		writer:   writer,
		codec:    corpus.JSONCodec{},
		logger:   logger,
	}
}

// ChunkID 由租户、文章标识和片段序号生成确定性id
func ChunkID(a Article, index int) string {
	tenant := ""
	if a.TenantID != nil {
		tenant = *a.TenantID
	}
	key := a.Title
	if a.URL != nil && *a.URL != "" {
		key = *a.URL
	}
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s|%s|%d", tenant, key, index))).String()
}

// Ingest 处理一批文章。标题或正文为空的文章跳过；向量化或写入失败立即返回。
func (in *Ingester) Ingest(ctx context.Context, articles []Article) (Stats, error) {
	var stats Stats
	for _, a := range articles {
		if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
			stats.Skipped++
			in.logger.Warn("跳过缺少标题或正文的文章", zap.String("title", a.Title))
			continue
		}

		rows, err := in.buildChunks(ctx, a)
		if err != nil {
			return stats, err
		}
		if err := in.writer.WriteChunks(ctx, rows); err != nil {
			return stats, err
		}

		stats.Articles++
		stats.Chunks += len(rows)
		in.logger.Info("文章入库完成", zap.String("title", a.Title), zap.Int("chunks", len(rows)))
	}
	return stats, nil
}

func (in *Ingester) buildChunks(ctx context.Context, a Article) ([]models.KnowledgeChunk, error) {
	pieces := in.splitter.Split(a.Content)
	rows := make([]models.KnowledgeChunk, 0, len(pieces))
	for _, p := range pieces {
		vec, err := in.embedder.Embed(ctx, a.Title+"\n"+p.Text)
		if err != nil {
			return nil, fmt.Errorf("embed %q part %d: %w", a.Title, p.Index, err)
		}
		encoded, err := in.codec.Encode(vec)
		if err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
		embedding, _ := encoded.(string)

		rows = append(rows, models.KnowledgeChunk{
			ID:        ChunkID(a, p.Index),
			Title:     a.Title,
			URL:       a.URL,
			Content:   p.Text,
			Embedding: embedding,
			TenantID:  a.TenantID,
		})
	}
	return rows, nil
}
