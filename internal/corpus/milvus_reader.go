package corpus

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus连接配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	UseTLS     bool
}

// milvusQuerier client.Client中读取器用到的部分
type milvusQuerier interface {
	Query(ctx context.Context, collectionName string, partitionNames []string, expr string, outputFields []string, opts ...client.SearchQueryOptionFunc) (client.ResultSet, error)
}

// MilvusReader 从Milvus集合按租户标量过滤读取候选块，向量原样返回
type MilvusReader struct {
	client     milvusQuerier
	collection string
	limit      int
	codec      EmbeddingCodec
}

// NewMilvusClient 创建Milvus客户端
func NewMilvusClient(ctx context.Context, opts MilvusOptions) (client.Client, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	c, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("milvus", "connect", err)
	}
	return c, nil
}

// NewMilvusReader 创建Milvus读取器
func NewMilvusReader(c milvusQuerier, collection string, limit int) *MilvusReader {
	if collection == "" {
		collection = "kb_chunks"
	}
	if limit <= 0 {
		limit = rag.DefaultCandidateLimit
	}
	return &MilvusReader{client: c, collection: collection, limit: limit, codec: NativeCodec{}}
}

// tenantExpr 构造标量过滤表达式，全局范围返回空串
func tenantExpr(tenantID *string) string {
	if tenantID == nil {
		return ""
	}
	return fmt.Sprintf("%s == %s", FieldTenantID, strconv.Quote(*tenantID))
}

func (m *MilvusReader) FetchCandidates(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
	rs, err := m.client.Query(ctx, m.collection, nil, tenantExpr(tenantID), Columns, client.WithLimit(int64(m.limit)))
	if err != nil {
		return nil, apperrors.NewStorageError("milvus", "query", err)
	}

	rows, err := columnsToRows(rs)
	if err != nil {
		return nil, apperrors.NewStorageError("milvus", "read columns", err)
	}
	if len(rows) > m.limit {
		rows = rows[:m.limit]
	}
	return MapRows("milvus", rows, m.codec)
}

// columnsToRows 将列式结果转换为行
func columnsToRows(rs client.ResultSet) ([]Row, error) {
	n := 0
	for _, col := range rs {
		if col.Len() > n {
			n = col.Len()
		}
	}

	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{}
	}
	for _, col := range rs {
		for i := 0; i < col.Len(); i++ {
			v, err := col.Get(i)
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", col.Name(), i, err)
			}
			if _, ok := col.(*entity.ColumnFloatVector); ok {
				if vec, ok := v.([]float32); ok && len(vec) == 0 {
					v = nil
				}
			}
			rows[i][col.Name()] = v
		}
	}
	return rows, nil
}
