package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/storefront/internal/purchase/application"
	"github.com/wyfcoding/storefront/internal/purchase/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/middleware"
	"github.com/wyfcoding/storefront/pkg/query"
)

// PurchaseHandler 购买 HTTP 处理器
type PurchaseHandler struct {
	coordinator *application.PurchaseCoordinator
	query       *application.PurchaseQueryService
}

// NewPurchaseHandler 创建 HTTP 处理器
func NewPurchaseHandler(coordinator *application.PurchaseCoordinator, query *application.PurchaseQueryService) *PurchaseHandler {
	return &PurchaseHandler{coordinator: coordinator, query: query}
}

// RegisterRoutes 注册路由
// buyer 组需挂载 RequireAuth 与 RequireBuyer，authed 组只需 RequireAuth
func (h *PurchaseHandler) RegisterRoutes(buyer, authed, admin *gin.RouterGroup) {
	buyer.POST("/purchases", h.ExecutePurchase)
	buyer.GET("/me/purchases", h.MyPurchases)
	buyer.GET("/me/purchases/summary", h.MySummary)

	authed.GET("/purchases/:id", h.GetPurchase)

	admin.GET("/purchases", h.ListPurchases)
	admin.GET("/purchases/filter", h.FilterPurchases)
}

// ExecutePurchaseRequest 购买请求，quantity 缺省为 1
type ExecutePurchaseRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

func (h *PurchaseHandler) ExecutePurchase(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("authentication required"))
		return
	}
	var req ExecutePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}

	purchase, err := h.coordinator.ExecutePurchase(c.Request.Context(), application.ExecutePurchaseCommand{
		BuyerID:   claims.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "created", purchase)
}

func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("authentication required"))
		return
	}
	purchase, err := h.query.GetPurchase(c.Request.Context(), c.Param("id"), application.Viewer{
		UserID:  claims.UserID,
		IsAdmin: claims.Role == auth.RoleAdmin,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, purchase)
}

func (h *PurchaseHandler) MyPurchases(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("authentication required"))
		return
	}
	result, err := h.query.ListBuyerPurchases(c.Request.Context(), claims.UserID, query.Page(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}

func (h *PurchaseHandler) MySummary(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("authentication required"))
		return
	}
	summary, err := h.query.BuyerSpendingSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, summary)
}

func (h *PurchaseHandler) ListPurchases(c *gin.Context) {
	result, err := h.query.ListAllPurchases(c.Request.Context(), query.Page(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}

// FilterPurchases ?start_date=&end_date=&buyer_id=&product_id=，end_date 为纯日期时包含当天
func (h *PurchaseHandler) FilterPurchases(c *gin.Context) {
	filter := domain.PurchaseFilter{
		BuyerID:   c.Query("buyer_id"),
		ProductID: c.Query("product_id"),
	}
	if v := c.Query("start_date"); v != "" {
		from, err := query.LowerBound(v)
		if err != nil {
			apperr.BadRequest(c, "start_date must be YYYY-MM-DD or RFC3339")
			return
		}
		filter.From = &from
	}
	if v := c.Query("end_date"); v != "" {
		to, err := query.UpperBound(v)
		if err != nil {
			apperr.BadRequest(c, "end_date must be YYYY-MM-DD or RFC3339")
			return
		}
		filter.To = &to
	}

	result, err := h.query.FilterPurchases(c.Request.Context(), filter, query.Page(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}
