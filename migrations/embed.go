// Package migrations 内嵌knowledge_chunks表结构迁移，postgres与sqlite3共用
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
