package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
)

// Placeholder 参数占位符风格
type Placeholder int

const (
	// PlaceholderQuestion sqlite3/mysql 使用 ?
	PlaceholderQuestion Placeholder = iota
	// PlaceholderDollar postgres 使用 $1
	PlaceholderDollar
)

// PlaceholderFor 根据驱动名选择占位符
func PlaceholderFor(driver string) Placeholder {
	switch driver {
	case "postgres", "pgx":
		return PlaceholderDollar
	default:
		return PlaceholderQuestion
	}
}

func (p Placeholder) bind(n int) string {
	if p == PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLReader database/sql直连读取器，适用于sqlite3本地库和lib/pq
type SQLReader struct {
	db          *sql.DB
	driver      string
	table       string
	limit       int
	codec       EmbeddingCodec
	placeholder Placeholder
}

// NewSQLReader 创建SQL读取器
func NewSQLReader(db *sql.DB, driver, table string, limit int, codec EmbeddingCodec) *SQLReader {
	if table == "" {
		table = "knowledge_chunks"
	}
	if limit <= 0 {
		limit = rag.DefaultCandidateLimit
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	return &SQLReader{
		db:          db,
		driver:      driver,
		table:       table,
		limit:       limit,
		codec:       codec,
		placeholder: PlaceholderFor(driver),
	}
}

func (s *SQLReader) buildQuery(tenantID *string) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, 2)

	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(Columns, ", "), s.table)
	if tenantID != nil {
		args = append(args, *tenantID)
		fmt.Fprintf(&b, " WHERE tenant_id = %s", s.placeholder.bind(len(args)))
	}
	args = append(args, s.limit)
	fmt.Fprintf(&b, " ORDER BY id LIMIT %s", s.placeholder.bind(len(args)))
	return b.String(), args
}

func (s *SQLReader) FetchCandidates(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
	query, args := s.buildQuery(tenantID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError(s.driver, "fetch candidates", err)
	}
	defer rows.Close()

	var raw []Row
	for rows.Next() {
		var id, title, url, content, embedding, tenant sql.NullString
		if err := rows.Scan(&id, &title, &url, &content, &embedding, &tenant); err != nil {
			return nil, apperrors.NewStorageError(s.driver, "scan row", err)
		}
		raw = append(raw, Row{
			FieldID:        nullable(id),
			FieldTitle:     nullable(title),
			FieldURL:       nullable(url),
			FieldContent:   nullable(content),
			FieldEmbedding: nullable(embedding),
			FieldTenantID:  nullable(tenant),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(s.driver, "iterate rows", err)
	}

	return MapRows(s.driver, raw, s.codec)
}

func nullable(v sql.NullString) interface{} {
	if !v.Valid {
		return nil
	}
	return v.String
}
