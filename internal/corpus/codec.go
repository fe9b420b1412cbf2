// Package corpus 提供知识库候选块的存储读取实现。
// 各后端在存储边界把原始行统一映射为rag.KnowledgeChunk，向量存储格式通过EmbeddingCodec切换。
package corpus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aihub/support-portal/internal/rag"
)

// EmbeddingCodec 向量存储格式编解码
type EmbeddingCodec interface {
	Name() string
	// Decode 解码存储中的原始值；nil或空值返回nil向量且不报错
	Decode(raw interface{}) (rag.EmbeddingVector, error)
	Encode(vec rag.EmbeddingVector) (interface{}, error)
}

// JSONCodec 向量以JSON文本存储，如 "[0.1,0.2]"
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Decode(raw interface{}) (rag.EmbeddingVector, error) {
	var text string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		text = v
	case *string:
		if v == nil {
			return nil, nil
		}
		text = *v
	case []byte:
		text = string(v)
	default:
		return nil, fmt.Errorf("json codec: unsupported type %T", raw)
	}

	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return nil, nil
	}

	var vec rag.EmbeddingVector
	if err := json.Unmarshal([]byte(text), &vec); err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	return vec, nil
}

func (JSONCodec) Encode(vec rag.EmbeddingVector) (interface{}, error) {
	if len(vec) == 0 {
		return "", nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// NativeCodec 向量已是数值数组（Milvus、Elasticsearch _source等）
type NativeCodec struct{}

func (NativeCodec) Name() string { return "native" }

func (NativeCodec) Decode(raw interface{}) (rag.EmbeddingVector, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case rag.EmbeddingVector:
		return v, nil
	case []float32:
		return rag.EmbeddingVector(v), nil
	case []float64:
		vec := make(rag.EmbeddingVector, len(v))
		for i, f := range v {
			vec[i] = float32(f)
		}
		return vec, nil
	case []interface{}:
		vec := make(rag.EmbeddingVector, len(v))
		for i, item := range v {
			f, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("native codec: element %d: %w", i, err)
			}
			vec[i] = f
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("native codec: unsupported type %T", raw)
	}
}

func (NativeCodec) Encode(vec rag.EmbeddingVector) (interface{}, error) {
	return []float32(vec), nil
}

func toFloat(v interface{}) (float32, error) {
	switch n := v.(type) {
	case float64:
		return float32(n), nil
	case float32:
		return n, nil
	case int:
		return float32(n), nil
	case int64:
		return float32(n), nil
	case json.Number:
		f, err := n.Float64()
		return float32(f), err
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// CodecByName 根据配置名返回编解码器
func CodecByName(name string) (EmbeddingCodec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "native":
		return NativeCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding codec %q", name)
	}
}
