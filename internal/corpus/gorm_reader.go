package corpus

import (
	"context"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"gorm.io/gorm"
)

// GormReader 基于gorm读取knowledge_chunks表
type GormReader struct {
	db    *gorm.DB
	table string
	limit int
	codec EmbeddingCodec
}

// NewGormReader 创建gorm读取器
func NewGormReader(db *gorm.DB, table string, limit int, codec EmbeddingCodec) *GormReader {
	if table == "" {
		table = "knowledge_chunks"
	}
	if limit <= 0 {
		limit = rag.DefaultCandidateLimit
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	return &GormReader{db: db, table: table, limit: limit, codec: codec}
}

type chunkRecord struct {
	ID        *string `gorm:"column:id"`
	Title     *string `gorm:"column:title"`
	URL       *string `gorm:"column:url"`
	Content   *string `gorm:"column:content"`
	Embedding *string `gorm:"column:embedding"`
	TenantID  *string `gorm:"column:tenant_id"`
}

func (r chunkRecord) row() Row {
	return Row{
		FieldID:        r.ID,
		FieldTitle:     r.Title,
		FieldURL:       r.URL,
		FieldContent:   r.Content,
		FieldEmbedding: r.Embedding,
		FieldTenantID:  r.TenantID,
	}
}

func (g *GormReader) FetchCandidates(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
	query := g.db.WithContext(ctx).
		Table(g.table).
		Select(Columns)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	var records []chunkRecord
	if err := query.Order("id").Limit(g.limit).Find(&records).Error; err != nil {
		return nil, apperrors.NewStorageError("postgres", "fetch candidates", err)
	}

	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = rec.row()
	}
	return MapRows("postgres", rows, g.codec)
}
