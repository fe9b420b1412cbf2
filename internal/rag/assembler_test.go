package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestAssemble(t *testing.T) {
	chunks := []ScoredChunk{
		{KnowledgeChunk: KnowledgeChunk{ID: "1", Title: "Refund policy", Content: "Refunds within 30 days.", URL: strPtr("https://help.example.com/refunds")}},
		{KnowledgeChunk: KnowledgeChunk{ID: "2", Title: "Shipping", Content: "Ships in 2 days."}},
	}

	want := "Source 1: Refund policy\nRefunds within 30 days.\nURL: https://help.example.com/refunds" +
		"\n\n" +
		"Source 2: Shipping\nShips in 2 days.\nURL: "
	assert.Equal(t, want, Assemble(chunks))
}

func TestAssemble_Empty(t *testing.T) {
	assert.Equal(t, "", Assemble(nil))
	assert.Equal(t, "", Assemble([]ScoredChunk{}))
}

func TestAssemble_KeepsContentVerbatim(t *testing.T) {
	content := "line one\n\n  indented %s %d\n"
	chunks := []ScoredChunk{{KnowledgeChunk: KnowledgeChunk{Title: "T", Content: content}}}
	assert.Equal(t, "Source 1: T\n"+content+"\nURL: ", Assemble(chunks))
}

func TestResultReply(t *testing.T) {
	res := &Result{
		Answer: "Refunds are accepted within 30 days.",
		Sources: []Source{
			{ID: "1", Title: "Refund policy", URL: strPtr("https://help.example.com/refunds")},
			{ID: "2", Title: "Returns"},
		},
	}
	assert.Equal(t,
		"Refunds are accepted within 30 days.\n\nSources:\n- Refund policy (https://help.example.com/refunds)\n- Returns ()",
		res.Reply())

	empty := &Result{Answer: MessageNoEvidence, Sources: []Source{}}
	assert.Equal(t, MessageNoEvidence+"\n\nSources:\n"+MessageNoSources, empty.Reply())
}
