package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
tenant: biz-1
articles:
  - title: Refund policy
    url: https://help.example.com/refunds
    content: |
      Refunds are issued within five business days.
  - title: Global FAQ
    tenant: biz-2
    content: Contact support any time.
`

func TestLoadArticles(t *testing.T) {
	articles, err := LoadArticles(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "Refund policy", articles[0].Title)
	assert.Equal(t, "https://help.example.com/refunds", *articles[0].URL)
	assert.Equal(t, "biz-1", *articles[0].TenantID)
	assert.Contains(t, articles[0].Content, "five business days")

	assert.Nil(t, articles[1].URL)
	assert.Equal(t, "biz-2", *articles[1].TenantID)
}

func TestLoadArticles_Errors(t *testing.T) {
	articles, err := LoadArticles(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, articles)

	_, err = LoadArticles(strings.NewReader("articles:\n  - titel: typo\n"))
	assert.Error(t, err)

	_, err = LoadArticles(strings.NewReader("articles: [\n"))
	assert.Error(t, err)
}

func TestLoadArticlesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	articles, err := LoadArticlesFile(path)
	require.NoError(t, err)
	assert.Len(t, articles, 2)

	_, err = LoadArticlesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
