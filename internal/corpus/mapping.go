package corpus

import (
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
)

// 知识块存储字段名，各后端保持一致
const (
	FieldID        = "id"
	FieldTitle     = "title"
	FieldURL       = "url"
	FieldContent   = "content"
	FieldEmbedding = "embedding"
	FieldTenantID  = "tenant_id"
)

// Columns 读取时选择的字段
var Columns = []string{FieldID, FieldTitle, FieldURL, FieldContent, FieldEmbedding, FieldTenantID}

// Row 存储层返回的原始行
type Row map[string]interface{}

// MapRow 将原始行映射为KnowledgeChunk。
// id/title/content缺失时返回StorageError；向量缺失不是错误，向量无法解码是错误。
func MapRow(backend string, row Row, codec EmbeddingCodec) (rag.KnowledgeChunk, error) {
	var chunk rag.KnowledgeChunk

	id, ok := stringField(row, FieldID)
	if !ok || id == "" {
		return chunk, missingField(backend, FieldID)
	}
	title, ok := stringField(row, FieldTitle)
	if !ok {
		return chunk, missingField(backend, FieldTitle)
	}
	content, ok := stringField(row, FieldContent)
	if !ok {
		return chunk, missingField(backend, FieldContent)
	}

	embedding, err := codec.Decode(row[FieldEmbedding])
	if err != nil {
		return chunk, apperrors.NewStorageError(backend, "decode embedding", fmt.Errorf("chunk %s: %w", id, err))
	}

	chunk = rag.KnowledgeChunk{
		ID:        id,
		Title:     title,
		Content:   content,
		Embedding: embedding,
		URL:       optionalString(row, FieldURL),
		TenantID:  optionalString(row, FieldTenantID),
	}
	return chunk, nil
}

// MapRows 批量映射，遇到第一个错误即返回
func MapRows(backend string, rows []Row, codec EmbeddingCodec) ([]rag.KnowledgeChunk, error) {
	chunks := make([]rag.KnowledgeChunk, 0, len(rows))
	for _, row := range rows {
		chunk, err := MapRow(backend, row, codec)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func missingField(backend, field string) error {
	return apperrors.NewStorageError(backend, "map row", errors.New("missing required field "+field))
}

func stringField(row Row, key string) (string, bool) {
	raw, ok := row[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case []byte:
		return string(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func optionalString(row Row, key string) *string {
	s, ok := stringField(row, key)
	if !ok || s == "" {
		return nil
	}
	return &s
}
