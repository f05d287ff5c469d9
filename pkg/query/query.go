// Package query 查询参数解析：分页绑定与日期区间
package query

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/pagination"
	"github.com/wyfcoding/pkg/utils"
)

// Page 从 ?page=&page_size= 绑定分页，非法值回落到默认值
func Page(c *gin.Context) *pagination.Request {
	var req pagination.Request
	_ = c.ShouldBindQuery(&req)
	req.Validate()
	return &req
}

// LowerBound 解析闭区间下界，接受 YYYY-MM-DD 或 RFC3339
func LowerBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return utils.ParseDate(s)
}

// UpperBound 解析开区间上界，纯日期取次日零点
func UpperBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := utils.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.AddDate(0, 0, 1), nil
}
