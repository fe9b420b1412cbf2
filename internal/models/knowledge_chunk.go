package models

import (
	"time"
)

// KnowledgeChunk 知识块表，由入库流程写入，问答流程只读
type KnowledgeChunk struct {
	ID        string    `gorm:"primaryKey;column:id;size:64" json:"id"`
	Title     string    `gorm:"column:title;type:text;not null" json:"title"`
	URL       *string   `gorm:"column:url;type:text" json:"url"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	Embedding string    `gorm:"column:embedding;type:text" json:"-"`
	TenantID  *string   `gorm:"column:tenant_id;size:64;index" json:"tenant_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
