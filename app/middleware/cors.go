package middleware

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
)

// NewCORSFilter 聊天组件嵌入在客户站点，按来源白名单返回CORS头。
// 白名单包含"*"时允许任意来源。
func NewCORSFilter(allowedOrigins []string) web.FilterFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(ctx *context.Context) {
		origin := ctx.Input.Header("Origin")
		if origin == "" {
			return
		}
		if _, ok := allowed[origin]; !ok && !allowAll {
			return
		}

		ctx.Output.Header("Access-Control-Allow-Origin", origin)
		ctx.Output.Header("Vary", "Origin")
		ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		ctx.Output.Header("Access-Control-Max-Age", "3600")

		if ctx.Input.Method() == "OPTIONS" {
			ctx.Output.SetStatus(204)
			ctx.Output.Body([]byte(""))
		}
	}
}
