package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aihub/support-portal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDocuments_Article(t *testing.T) {
	docs := NewDocuments()

	a, err := docs.Article("guides/refund-policy.md", strings.NewReader("# Refund policy\n\nRefunds take five days.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Refund policy", a.Title)
	assert.Equal(t, "Refunds take five days.", a.Content)

	a, err = docs.Article("faq/shipping_times.txt", strings.NewReader("Orders ship within 24h."))
	require.NoError(t, err)
	assert.Equal(t, "shipping times", a.Title)
	assert.Equal(t, "Orders ship within 24h.", a.Content)

	_, err = docs.Article("logo.png", strings.NewReader(""))
	assert.Error(t, err)

	_, err = docs.Article("broken.pdf", strings.NewReader("not a pdf"))
	assert.Error(t, err)
}

func TestDocuments_Formats(t *testing.T) {
	docs := NewDocuments()
	assert.Equal(t, []string{".docx", ".markdown", ".md", ".pdf", ".txt", ".xlsx"}, docs.Formats())
	assert.True(t, docs.Supports("A/B/Manual.PDF"))
	assert.False(t, docs.Supports("manual.doc"))

	textOnly := NewDocuments(TextParser{})
	assert.False(t, textOnly.Supports("manual.pdf"))
}

func TestSetDocumentLicense_Empty(t *testing.T) {
	assert.NoError(t, SetDocumentLicense("  "))
}

func TestDirSource(t *testing.T) {
	fsys := fstest.MapFS{
		"billing/refunds.md":   {Data: []byte("# Refunds\nFive business days.")},
		"billing/invoices.txt": {Data: []byte("Invoices are emailed monthly.")},
		"broken.pdf":           {Data: []byte("garbage")},
		"logo.png":             {Data: []byte{0x89}},
		".drafts/secret.md":    {Data: []byte("# Draft")},
	}
	core, logs := observer.New(zap.WarnLevel)
	tenant := "biz-1"
	src := NewFSSource(fsys, nil, SourceOptions{Tenant: &tenant, URLBase: "https://help.example.com/kb/", Logger: zap.New(core)})

	articles, err := src.Articles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)

	// WalkDir按字典序
	assert.Equal(t, "invoices", articles[0].Title)
	assert.Equal(t, "https://help.example.com/kb/billing/invoices.txt", *articles[0].URL)
	assert.Equal(t, "Refunds", articles[1].Title)
	assert.Equal(t, "Five business days.", articles[1].Content)
	for _, a := range articles {
		assert.Equal(t, "biz-1", *a.TenantID)
	}
	assert.Equal(t, 1, logs.FilterField(zap.String("file", "broken.pdf")).Len())
}

type memoryStore struct {
	objects map[string]string
	listErr error
}

func (m memoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m memoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestObjectSource(t *testing.T) {
	store := memoryStore{objects: map[string]string{
		"kb/":              "",
		"kb/returns.md":    "# Returns\nReturn within 30 days.",
		"kb/warranty.txt":  "Two year warranty.",
		"kb/cover.jpg":     "jpeg",
		"other/ignored.md": "# Ignored",
	}}
	src := NewObjectSource(store, "kb/", nil, SourceOptions{URLBase: "https://help.example.com"})

	articles, err := src.Articles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Returns", articles[0].Title)
	assert.Equal(t, "https://help.example.com/returns.md", *articles[0].URL)
	assert.Nil(t, articles[0].TenantID)
	assert.Equal(t, "warranty", articles[1].Title)

	_, err = NewObjectSource(memoryStore{listErr: errors.New("denied")}, "", nil, SourceOptions{}).Articles(context.Background())
	assert.ErrorContains(t, err, "denied")
}

func TestNewMinioStore_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore(config.ObjectStorageConfig{Bucket: "knowledge"})
	assert.Error(t, err)
}
