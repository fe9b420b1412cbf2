package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchOptions ES连接配置
type ElasticsearchOptions struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Index     string
}

// ElasticsearchReader 从ES索引按tenant_id过滤读取候选块，_source中的向量为数值数组
type ElasticsearchReader struct {
	client *elasticsearch.Client
	index  string
	limit  int
	codec  EmbeddingCodec
}

// NewElasticsearchReader 创建ES读取器
func NewElasticsearchReader(opts ElasticsearchOptions, limit int) (*ElasticsearchReader, error) {
	c, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("elasticsearch", "connect", err)
	}

	if opts.Index == "" {
		opts.Index = "knowledge_chunks"
	}
	if limit <= 0 {
		limit = rag.DefaultCandidateLimit
	}
	return &ElasticsearchReader{client: c, index: opts.Index, limit: limit, codec: NativeCodec{}}, nil
}

func (e *ElasticsearchReader) searchBody(tenantID *string) map[string]interface{} {
	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if tenantID != nil {
		query = map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{FieldTenantID: *tenantID}},
				},
			},
		}
	}
	return map[string]interface{}{
		"size":    e.limit,
		"query":   query,
		"sort":    []interface{}{"_doc"},
		"_source": Columns,
	}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticsearchReader) FetchCandidates(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
	payload, err := json.Marshal(e.searchBody(tenantID))
	if err != nil {
		return nil, apperrors.NewStorageError("elasticsearch", "encode query", err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(payload),
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, apperrors.NewStorageError("elasticsearch", "search", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, apperrors.NewStorageError("elasticsearch", "search", fmt.Errorf("search error: %s", resp.String()))
	}

	var result esSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewStorageError("elasticsearch", "decode response", err)
	}

	rows := make([]Row, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		row := Row(hit.Source)
		if row == nil {
			row = Row{}
		}
		if _, ok := row[FieldID]; !ok && hit.ID != "" {
			row[FieldID] = hit.ID
		}
		rows = append(rows, row)
	}
	return MapRows("elasticsearch", rows, e.codec)
}
