package corpus

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMilvus struct {
	collection string
	expr       string
	fields     []string
	result     client.ResultSet
	err        error
}

func (f *fakeMilvus) Query(ctx context.Context, collectionName string, partitionNames []string, expr string, outputFields []string, opts ...client.SearchQueryOptionFunc) (client.ResultSet, error) {
	f.collection = collectionName
	f.expr = expr
	f.fields = outputFields
	return f.result, f.err
}

func TestTenantExpr(t *testing.T) {
	tenant := `biz "1"`
	assert.Equal(t, "", tenantExpr(nil))
	assert.Equal(t, `tenant_id == "biz \"1\""`, tenantExpr(&tenant))
}

func TestMilvusReader_FetchCandidates(t *testing.T) {
	fake := &fakeMilvus{
		result: client.ResultSet{
			entity.NewColumnVarChar(FieldID, []string{"m1", "m2"}),
			entity.NewColumnVarChar(FieldTitle, []string{"Login", "Billing"}),
			entity.NewColumnVarChar(FieldURL, []string{"https://x/login", ""}),
			entity.NewColumnVarChar(FieldContent, []string{"Use SSO.", "Monthly invoices."}),
			entity.NewColumnVarChar(FieldTenantID, []string{"t1", "t1"}),
			entity.NewColumnFloatVector(FieldEmbedding, 2, [][]float32{{1, 0}, {0, 1}}),
		},
	}
	tenant := "t1"

	reader := NewMilvusReader(fake, "", 200)
	chunks, err := reader.FetchCandidates(context.Background(), &tenant)
	require.NoError(t, err)

	assert.Equal(t, "kb_chunks", fake.collection)
	assert.Equal(t, `tenant_id == "t1"`, fake.expr)
	assert.Equal(t, Columns, fake.fields)

	require.Len(t, chunks, 2)
	assert.Equal(t, "m1", chunks[0].ID)
	assert.Equal(t, rag.EmbeddingVector{1, 0}, chunks[0].Embedding)
	assert.Equal(t, "https://x/login", chunks[0].URLString())
	assert.Nil(t, chunks[1].URL)
	assert.Equal(t, "t1", *chunks[1].TenantID)
}

func TestMilvusReader_QueryFailure(t *testing.T) {
	reader := NewMilvusReader(&fakeMilvus{err: errors.New("collection not loaded")}, "kb", 10)
	_, err := reader.FetchCandidates(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsStorageError(err))
}

func TestMilvusReader_MissingTitleColumn(t *testing.T) {
	fake := &fakeMilvus{
		result: client.ResultSet{
			entity.NewColumnVarChar(FieldID, []string{"m1"}),
			entity.NewColumnVarChar(FieldContent, []string{"body"}),
		},
	}
	_, err := NewMilvusReader(fake, "kb", 10).FetchCandidates(context.Background(), nil)
	assert.True(t, apperrors.IsStorageError(err))
}
