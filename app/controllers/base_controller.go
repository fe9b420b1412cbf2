package controllers

import (
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/beego/beego/v2/server/web"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// BaseController provides helpers for consistent JSON responses.
// 导出字段在路由注册时设置，beego为每个请求复制一份。
type BaseController struct {
	web.Controller
	Errors     *apperrors.ErrorMonitor
	Translator *apperrors.ErrorTranslator
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// recordError 记录错误指标
func (c *BaseController) recordError(appErr *apperrors.AppError, start time.Time) {
	if c.Errors == nil || appErr == nil {
		return
	}
	c.Errors.RecordError(appErr, c.Ctx.Input.URL(), time.Since(start))
}

// translate 转换为AppError
func (c *BaseController) translate(err error) *apperrors.AppError {
	if c.Translator == nil {
		return apperrors.GetAppError(err)
	}
	return c.Translator.Translate(err)
}

// requestBody 优先使用beego复制的请求体
func (c *BaseController) requestBody() ([]byte, error) {
	if len(c.Ctx.Input.RequestBody) > 0 {
		return c.Ctx.Input.RequestBody, nil
	}
	if c.Ctx.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(c.Ctx.Request.Body, maxBodyBytes))
}

// getClientIP 获取客户端真实IP地址
func (c *BaseController) getClientIP() string {
	if xff := c.Ctx.Input.Header("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xRealIP := c.Ctx.Input.Header("X-Real-IP"); xRealIP != "" {
		return xRealIP
	}
	return c.Ctx.Input.IP()
}
