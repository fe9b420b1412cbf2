package rag

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaOptions 自托管模型配置
type OllamaOptions struct {
	ServerURL      string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	Temperature    float64
}

// OllamaEmbedder 通过Ollama生成向量
type OllamaEmbedder struct {
	llm        *ollama.LLM
	dimensions int
}

// NewOllamaEmbedder 创建Ollama向量生成器
func NewOllamaEmbedder(opts OllamaOptions) (*OllamaEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithModel(opts.EmbeddingModel),
		ollama.WithServerURL(opts.ServerURL),
	)
	if err != nil {
		return nil, apperrors.NewProviderError("ollama", "init", err)
	}
	return &OllamaEmbedder{llm: llm, dimensions: opts.Dimensions}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (EmbeddingVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("text is empty")
	}

	vectors, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, apperrors.NewProviderError("ollama", "embedding", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, apperrors.NewProviderError("ollama", "embedding", errors.New("embedding response empty"))
	}
	return EmbeddingVector(vectors[0]), nil
}

func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OllamaEmbedder) Ready() bool {
	return e.llm != nil
}

// OllamaGenerator 通过Ollama生成回答
type OllamaGenerator struct {
	llm         *ollama.LLM
	temperature float64
}

// NewOllamaGenerator 创建Ollama生成器
func NewOllamaGenerator(opts OllamaOptions) (*OllamaGenerator, error) {
	llm, err := ollama.New(
		ollama.WithModel(opts.ChatModel),
		ollama.WithServerURL(opts.ServerURL),
	)
	if err != nil {
		return nil, apperrors.NewProviderError("ollama", "init", err)
	}
	return &OllamaGenerator{llm: llm, temperature: opts.Temperature}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, question, evidence string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, UserMessage(question, evidence)),
	}

	resp, err := g.llm.GenerateContent(ctx, messages, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", apperrors.NewProviderError("ollama", "generation", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return MessageNoAnswer, nil
	}
	return normalizeAnswer(resp.Choices[0].Content), nil
}

func (g *OllamaGenerator) Ready() bool {
	return g.llm != nil
}
