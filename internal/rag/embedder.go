package rag

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/support-portal/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingVector, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 未配置模型服务时的占位实现，总是返回ProviderError
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) (EmbeddingVector, error) {
	return nil, apperrors.NewProviderError("noop", "embedding", errors.New("embedding provider not configured"))
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
	"text-embedding-v3":      1024,
	"text-embedding-v2":      1536,
}

// DashScopeBaseURL 通义千问OpenAI兼容模式地址
const DashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// OpenAIOptions OpenAI兼容服务配置
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func newOpenAIClient(opts OpenAIOptions) *openai.Client {
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器，未配置API Key时返回NoopEmbedder
func NewOpenAIEmbedder(opts OpenAIOptions) Embedder {
	if strings.TrimSpace(opts.APIKey) == "" {
		return &NoopEmbedder{}
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}

	dims, ok := embeddingDimensions[opts.Model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     newOpenAIClient(opts),
		model:      opts.Model,
		dimensions: dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (EmbeddingVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("text is empty")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, apperrors.NewProviderError("openai", "embedding", err).WithDetails(providerDetails("openai", e.model, err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperrors.NewProviderError("openai", "embedding", errors.New("embedding response empty"))
	}

	embedding := resp.Data[0].Embedding
	result := make(EmbeddingVector, len(embedding))
	copy(result, embedding)
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}

// providerDetails 提取OpenAI错误中的状态码，便于区分未授权与限流
func providerDetails(provider, model string, err error) map[string]interface{} {
	details := map[string]interface{}{
		"provider": provider,
		"model":    model,
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		details["status_code"] = apiErr.HTTPStatusCode
		details["type"] = apiErr.Type
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		details["status_code"] = reqErr.HTTPStatusCode
	}
	return details
}
