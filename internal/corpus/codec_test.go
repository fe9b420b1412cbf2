package corpus

import (
	"encoding/json"
	"testing"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec{}

	vec, err := codec.Decode("[0.5, -1, 2]")
	require.NoError(t, err)
	assert.Equal(t, rag.EmbeddingVector{0.5, -1, 2}, vec)

	vec, err = codec.Decode([]byte("[1]"))
	require.NoError(t, err)
	assert.Equal(t, rag.EmbeddingVector{1}, vec)

	for _, empty := range []interface{}{nil, "", "  ", "null", (*string)(nil)} {
		vec, err := codec.Decode(empty)
		assert.NoError(t, err)
		assert.Nil(t, vec)
	}

	_, err = codec.Decode("[1, oops]")
	assert.Error(t, err)
	_, err = codec.Decode(42)
	assert.Error(t, err)

	encoded, err := codec.Encode(rag.EmbeddingVector{0.25, 1})
	require.NoError(t, err)
	assert.Equal(t, "[0.25,1]", encoded)
}

func TestNativeCodec(t *testing.T) {
	codec := NativeCodec{}

	vec, err := codec.Decode([]float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, rag.EmbeddingVector{1, 2}, vec)

	vec, err = codec.Decode([]float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, rag.EmbeddingVector{0.5}, vec)

	vec, err = codec.Decode([]interface{}{1.5, json.Number("2"), 3})
	require.NoError(t, err)
	assert.Equal(t, rag.EmbeddingVector{1.5, 2, 3}, vec)

	vec, err = codec.Decode(nil)
	require.NoError(t, err)
	assert.Nil(t, vec)

	_, err = codec.Decode([]interface{}{"x"})
	assert.Error(t, err)
	_, err = codec.Decode("[1,2]")
	assert.Error(t, err)
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = CodecByName("Native")
	require.NoError(t, err)
	assert.Equal(t, "native", c.Name())

	_, err = CodecByName("protobuf")
	assert.Error(t, err)
}

func TestMapRow(t *testing.T) {
	url := "https://help.example.com/a"
	chunk, err := MapRow("test", Row{
		FieldID:        int64(7),
		FieldTitle:     "A",
		FieldURL:       &url,
		FieldContent:   "body",
		FieldEmbedding: "[1,0]",
		FieldTenantID:  "",
	}, JSONCodec{})
	require.NoError(t, err)
	assert.Equal(t, "7", chunk.ID)
	assert.Equal(t, "A", chunk.Title)
	assert.Equal(t, &url, chunk.URL)
	assert.Equal(t, rag.EmbeddingVector{1, 0}, chunk.Embedding)
	assert.Nil(t, chunk.TenantID)
}

func TestMapRow_MissingEmbeddingIsAllowed(t *testing.T) {
	chunk, err := MapRow("test", Row{FieldID: "x", FieldTitle: "T", FieldContent: ""}, JSONCodec{})
	require.NoError(t, err)
	assert.Nil(t, chunk.Embedding)
	assert.Nil(t, chunk.URL)
}

func TestMapRow_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"missing id", Row{FieldTitle: "T", FieldContent: "C"}},
		{"empty id", Row{FieldID: "", FieldTitle: "T", FieldContent: "C"}},
		{"missing title", Row{FieldID: "1", FieldContent: "C"}},
		{"null content", Row{FieldID: "1", FieldTitle: "T", FieldContent: (*string)(nil)}},
		{"bad embedding", Row{FieldID: "1", FieldTitle: "T", FieldContent: "C", FieldEmbedding: "{not json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MapRow("test", tt.row, JSONCodec{})
			require.Error(t, err)
			assert.True(t, apperrors.IsStorageError(err))
		})
	}
}

func TestMapRows_StopsAtFirstError(t *testing.T) {
	chunks, err := MapRows("test", []Row{
		{FieldID: "1", FieldTitle: "T", FieldContent: "C"},
		{FieldID: "2", FieldContent: "C"},
	}, JSONCodec{})
	assert.Nil(t, chunks)
	assert.True(t, apperrors.IsStorageError(err))
}
