package ingest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aihub/support-portal/internal/corpus"
	"github.com/aihub/support-portal/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChunkWriter 写入知识块
type ChunkWriter interface {
	WriteChunks(ctx context.Context, chunks []models.KnowledgeChunk) error
}

// GormWriter 通过gorm写入，id冲突时覆盖
type GormWriter struct {
	db *gorm.DB
}

func NewGormWriter(db *gorm.DB) *GormWriter {
	return &GormWriter{db: db}
}

func (w *GormWriter) WriteChunks(ctx context.Context, chunks []models.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := w.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: corpus.FieldID}},
			DoUpdates: clause.AssignmentColumns([]string{corpus.FieldTitle, corpus.FieldURL, corpus.FieldContent, corpus.FieldEmbedding, corpus.FieldTenantID}),
		}).
		Create(&chunks).Error
	if err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

// SQLWriter 通过database/sql写入，sqlite3与postgres均支持ON CONFLICT
type SQLWriter struct {
	db          *sql.DB
	table       string
	placeholder corpus.Placeholder
}

func NewSQLWriter(db *sql.DB, driver, table string) *SQLWriter {
	if table == "" {
		table = "knowledge_chunks"
	}
	return &SQLWriter{db: db, table: table, placeholder: corpus.PlaceholderFor(driver)}
}

func (w *SQLWriter) upsertStatement() string {
	bind := func(n int) string {
		if w.placeholder == corpus.PlaceholderDollar {
			return fmt.Sprintf("$%d", n)
		}
		return "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (id, title, url, content, embedding, tenant_id) VALUES (%s, %s, %s, %s, %s, %s) "+
			"ON CONFLICT (id) DO UPDATE SET title = excluded.title, url = excluded.url, content = excluded.content, "+
			"embedding = excluded.embedding, tenant_id = excluded.tenant_id",
		w.table, bind(1), bind(2), bind(3), bind(4), bind(5), bind(6))
}

func (w *SQLWriter) WriteChunks(ctx context.Context, chunks []models.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, w.upsertStatement())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Title, c.URL, c.Content, c.Embedding, c.TenantID); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}
