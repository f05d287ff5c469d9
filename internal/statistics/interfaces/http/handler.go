package http

import (
	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/storefront/internal/statistics/application"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/query"
)

// StatisticsHandler 统计 HTTP 处理器，全部路由仅管理员可用
type StatisticsHandler struct {
	reconcile *application.ReconcileService
	query     *application.StatisticsQueryService
}

// NewStatisticsHandler 创建 HTTP 处理器
func NewStatisticsHandler(reconcile *application.ReconcileService, query *application.StatisticsQueryService) *StatisticsHandler {
	return &StatisticsHandler{reconcile: reconcile, query: query}
}

// RegisterRoutes 注册路由
func (h *StatisticsHandler) RegisterRoutes(admin *gin.RouterGroup) {
	g := admin.Group("/statistics")
	g.GET("/dashboard", h.Dashboard)
	g.GET("/sales", h.SalesByDate)
	g.GET("/products/:id", h.ProductStatistics)
	g.POST("/reconcile", h.Reconcile)
}

func (h *StatisticsHandler) Dashboard(c *gin.Context) {
	d, err := h.query.Dashboard(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, d)
}

// SalesByDate ?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD，两端均包含
func (h *StatisticsHandler) SalesByDate(c *gin.Context) {
	rawFrom, rawTo := c.Query("start_date"), c.Query("end_date")
	if rawFrom == "" || rawTo == "" {
		apperr.BadRequest(c, "start_date and end_date are required")
		return
	}
	from, err := query.LowerBound(rawFrom)
	if err != nil {
		apperr.BadRequest(c, "start_date must be YYYY-MM-DD or RFC3339")
		return
	}
	to, err := query.UpperBound(rawTo)
	if err != nil {
		apperr.BadRequest(c, "end_date must be YYYY-MM-DD or RFC3339")
		return
	}

	report, err := h.query.SalesByDate(c.Request.Context(), from, to)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, report)
}

func (h *StatisticsHandler) ProductStatistics(c *gin.Context) {
	report, err := h.query.ProductStatistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, report)
}

func (h *StatisticsHandler) Reconcile(c *gin.Context) {
	report, err := h.reconcile.ReconcileAllStatistics(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, report)
}
