package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/aihub/support-portal/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// SystemPrompt 生成阶段的固定系统指令
const SystemPrompt = "You are an AI support assistant. Answer only with the provided sources. Cite sources by title and URL. Refuse unsupported questions."

// Generator 基于证据生成回答
type Generator interface {
	Generate(ctx context.Context, question, evidence string) (string, error)
	Ready() bool
}

// UserMessage 构造发送给模型的用户消息
func UserMessage(question, evidence string) string {
	return fmt.Sprintf("Question: %s\n\nSources:\n%s", question, evidence)
}

// normalizeAnswer 模型返回空内容时使用固定回复
func normalizeAnswer(content string) string {
	if content == "" {
		return MessageNoAnswer
	}
	return content
}

// NoopGenerator 未配置模型服务时的占位实现
type NoopGenerator struct{}

func (n *NoopGenerator) Generate(ctx context.Context, question, evidence string) (string, error) {
	return "", apperrors.NewProviderError("noop", "generation", errors.New("chat provider not configured"))
}

func (n *NoopGenerator) Ready() bool {
	return false
}

// OpenAIGenerator 使用Chat Completions生成回答
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIGenerator 创建生成器，未配置API Key时返回NoopGenerator
func NewOpenAIGenerator(opts OpenAIOptions, temperature float32) Generator {
	if strings.TrimSpace(opts.APIKey) == "" {
		return &NoopGenerator{}
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		client:      newOpenAIClient(opts),
		model:       opts.Model,
		temperature: temperature,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, question, evidence string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserMessage(question, evidence)},
		},
	})
	if err != nil {
		return "", apperrors.NewProviderError("openai", "generation", err).WithDetails(providerDetails("openai", g.model, err))
	}

	if len(resp.Choices) == 0 {
		return MessageNoAnswer, nil
	}
	return normalizeAnswer(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.client != nil
}
