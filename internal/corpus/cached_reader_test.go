package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aihub/support-portal/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCacheStore 模拟缓存存储
type MockCacheStore struct {
	mock.Mock
}

func (m *MockCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

type countingReader struct {
	calls  int
	chunks []rag.KnowledgeChunk
	err    error
}

func (c *countingReader) FetchCandidates(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
	c.calls++
	return c.chunks, c.err
}

func TestCachedReader_MissThenStore(t *testing.T) {
	store := new(MockCacheStore)
	inner := &countingReader{chunks: []rag.KnowledgeChunk{{ID: "1", Title: "T", Content: "C", Embedding: rag.EmbeddingVector{1, 2}}}}
	tenant := "t1"

	store.On("Get", mock.Anything, "rag:candidates:tenant:t1").Return(nil, ErrCacheMiss)
	store.On("Set", mock.Anything, "rag:candidates:tenant:t1", mock.Anything, time.Minute).Return(nil)

	reader := NewCachedReader(inner, store, time.Minute, "", nil)
	chunks, err := reader.FetchCandidates(context.Background(), &tenant)
	require.NoError(t, err)
	assert.Equal(t, inner.chunks, chunks)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 0.0, reader.HitRate())
	store.AssertExpectations(t)
}

func TestCachedReader_Hit(t *testing.T) {
	url := "https://x/1"
	payload, err := json.Marshal(toCache([]rag.KnowledgeChunk{{ID: "1", Title: "T", URL: &url, Content: "C", Embedding: rag.EmbeddingVector{0.5}}}))
	require.NoError(t, err)

	store := new(MockCacheStore)
	store.On("Get", mock.Anything, "kb:global").Return(payload, nil)
	inner := &countingReader{}

	reader := NewCachedReader(inner, store, 0, "kb", nil)
	chunks, err := reader.FetchCandidates(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "https://x/1", chunks[0].URLString())
	assert.Equal(t, rag.EmbeddingVector{0.5}, chunks[0].Embedding)
	assert.Equal(t, 0, inner.calls)
	assert.Equal(t, 1.0, reader.HitRate())
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedReader_CacheFaultsFallBack(t *testing.T) {
	store := new(MockCacheStore)
	store.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))
	store.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"))
	inner := &countingReader{chunks: []rag.KnowledgeChunk{{ID: "1", Title: "T", Content: "C"}}}

	chunks, err := NewCachedReader(inner, store, time.Minute, "", nil).FetchCandidates(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestCachedReader_CorruptEntryAndInnerError(t *testing.T) {
	store := new(MockCacheStore)
	store.On("Get", mock.Anything, mock.Anything).Return([]byte("{broken"), nil)
	inner := &countingReader{err: errors.New("storage down")}

	_, err := NewCachedReader(inner, store, time.Minute, "", nil).FetchCandidates(context.Background(), nil)
	assert.EqualError(t, err, "storage down")
	assert.Equal(t, 1, inner.calls)
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
