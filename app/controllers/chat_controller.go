package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"go.uber.org/zap"
)

// ChatMessage 对话中的一条消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天请求，只有最后一条消息作为问题
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages"`
	BusinessID *string       `json:"businessId"`
}

// ChatResponse 聊天响应，sources总是数组
type ChatResponse struct {
	Reply   string       `json:"reply"`
	Sources []rag.Source `json:"sources"`
}

// ChatErrorResponse 请求无效或降级时的响应，不带sources
type ChatErrorResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// Question 取最后一条消息的内容
func (r ChatRequest) Question() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// Tenant 空businessId视为全局
func (r ChatRequest) Tenant() *string {
	if r.BusinessID == nil || strings.TrimSpace(*r.BusinessID) == "" {
		return nil
	}
	id := strings.TrimSpace(*r.BusinessID)
	return &id
}

// ChatController 客服问答接口
type ChatController struct {
	BaseController
	Engine  *rag.Engine
	Logger  *zap.Logger
	Timeout time.Duration
}

// Chat POST /api/chat
func (c *ChatController) Chat() {
	start := time.Now()
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var req ChatRequest
	body, err := c.requestBody()
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		appErr := c.translate(err)
		c.recordError(appErr, start)
		c.JSON(http.StatusBadRequest, ChatErrorResponse{Reply: rag.MessageEmptyQuestion, Error: appErr.Message})
		return
	}

	question := strings.TrimSpace(req.Question())
	if question == "" {
		c.recordError(apperrors.NewValidationError("question is empty"), start)
		c.JSON(http.StatusBadRequest, ChatErrorResponse{Reply: rag.MessageEmptyQuestion})
		return
	}

	ctx := c.Ctx.Request.Context()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	result, err := c.Engine.Run(ctx, question, req.Tenant())
	if err != nil {
		c.recordError(apperrors.GetAppError(err), start)
		log.Warn("问答降级",
			zap.Stringp("business_id", req.Tenant()),
			zap.String("client_ip", c.getClientIP()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ChatErrorResponse{Reply: result.Answer, Error: err.Error()})
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []rag.Source{}
	}
	c.JSON(http.StatusOK, ChatResponse{Reply: result.Reply(), Sources: sources})
}
