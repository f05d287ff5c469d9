package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

// Respond 按错误类型写出 {code, msg, detail} 并中止处理链
// detail 以商城码开头，错误带 Detail 时以空格追加（如 "INSUFFICIENT_STOCK available=2"）
// 5xx 只返回通用信息
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	code := string(CodeOf(err))
	e, ok := As(err)
	if !ok || status >= http.StatusInternalServerError {
		logging.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		response.ErrorWithStatus(c, status, "internal server error", code)
		c.Abort()
		return
	}
	detail := code
	if e.Detail != "" {
		detail += " " + e.Detail
	}
	response.ErrorWithStatus(c, status, e.Message, detail)
	c.Abort()
}

// BadRequest 绑定或参数错误
func BadRequest(c *gin.Context, message string) {
	response.ErrorWithStatus(c, http.StatusBadRequest, message, string(CodeInvalidInput))
	c.Abort()
}
