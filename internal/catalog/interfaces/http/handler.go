package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/storefront/internal/catalog/application"
	"github.com/wyfcoding/storefront/internal/catalog/domain"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/query"
)

// CatalogHandler 商品与分类 HTTP 处理器
type CatalogHandler struct {
	cmd       *application.CatalogCommandService
	query     *application.CatalogQueryService
	csv       *application.ProductCSVService
	maxUpload int64
}

// NewCatalogHandler 创建 HTTP 处理器
func NewCatalogHandler(
	cmd *application.CatalogCommandService,
	query *application.CatalogQueryService,
	csv *application.ProductCSVService,
	maxUploadMB int,
) *CatalogHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 8
	}
	return &CatalogHandler{cmd: cmd, query: query, csv: csv, maxUpload: int64(maxUploadMB) << 20}
}

// RegisterRoutes 注册路由，admin 组需已挂载管理员鉴权
func (h *CatalogHandler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/products", h.ListProducts)
	public.GET("/products/:id", h.GetProduct)
	public.GET("/products/:id/price-history", h.PriceHistory)
	public.GET("/categories", h.ListCategories)
	public.GET("/categories/:id", h.GetCategory)
	public.GET("/categories/:id/products", h.ProductsByCategory)

	admin.POST("/products", h.CreateProduct)
	admin.PUT("/products/:id", h.UpdateProduct)
	admin.PUT("/products/:id/price", h.UpdatePrice)
	admin.DELETE("/products/:id", h.DeleteProduct)
	admin.GET("/products/export", h.ExportProducts)
	admin.POST("/products/import", h.ImportProducts)
	admin.POST("/categories", h.CreateCategory)
	admin.PUT("/categories/:id", h.UpdateCategory)
	admin.DELETE("/categories/:id", h.DeleteCategory)
}

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	StockQuantity int              `json:"stock_quantity"`
	CategoryIDs   []string         `json:"category_ids"`
}

// UpdateProductRequest 部分更新请求
type UpdateProductRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	CategoryIDs   []string         `json:"category_ids"`
}

// UpdatePriceRequest 改价请求
type UpdatePriceRequest struct {
	Price *decimal.Decimal `json:"price" binding:"required"`
}

// CategoryRequest 分类请求
type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// parseFilter 从查询参数构造过滤条件
func parseFilter(c *gin.Context) (domain.ProductFilter, error) {
	f := domain.ProductFilter{
		Search:     c.Query("search"),
		CategoryID: c.Query("category_id"),
	}
	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("invalid %s", p.key)
		}
		*p.dst = &v
	}
	if raw := c.Query("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("invalid in_stock")
		}
		f.InStock = v
	}
	return f, nil
}

// ListProducts 商品列表
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	result, err := h.query.ListProducts(c.Request.Context(), filter, query.Page(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}

// GetProduct 商品详情
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.query.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, p)
}

// PriceHistory 价格历史
func (h *CatalogHandler) PriceHistory(c *gin.Context) {
	entries, err := h.query.PriceHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, entries)
}

// CreateProduct 创建商品
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	p, err := h.cmd.CreateProduct(c.Request.Context(), application.CreateProductCommand{
		Name:          req.Name,
		Description:   req.Description,
		Price:         *req.Price,
		StockQuantity: req.StockQuantity,
		CategoryIDs:   req.CategoryIDs,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "created", p)
}

// UpdateProduct 部分更新商品
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	p, err := h.cmd.UpdateProduct(c.Request.Context(), application.UpdateProductCommand{
		ID:            c.Param("id"),
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		CategoryIDs:   req.CategoryIDs,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, p)
}

// UpdatePrice 修改价格
func (h *CatalogHandler) UpdatePrice(c *gin.Context) {
	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	p, err := h.cmd.UpdateProductPrice(c.Request.Context(), c.Param("id"), *req.Price)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, p)
}

// DeleteProduct 删除商品
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	if err := h.cmd.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportProducts 导出 CSV
func (h *CatalogHandler) ExportProducts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	var buf bytes.Buffer
	if _, err := h.csv.ExportProducts(c.Request.Context(), filter, &buf); err != nil {
		apperr.Respond(c, err)
		return
	}
	filename := fmt.Sprintf("products-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ImportProducts 导入 CSV，支持 multipart 字段 file 或 text/csv 请求体
func (h *CatalogHandler) ImportProducts(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var src io.Reader = c.Request.Body
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			apperr.BadRequest(c, "cannot open uploaded file")
			return
		}
		defer f.Close()
		src = f
	}

	report, err := h.csv.ImportProducts(c.Request.Context(), src)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, report)
}

// ListCategories 分类列表
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	cats, err := h.query.ListCategories(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, cats)
}

// GetCategory 分类详情
func (h *CatalogHandler) GetCategory(c *gin.Context) {
	cat, err := h.query.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, cat)
}

// ProductsByCategory 分类下商品
func (h *CatalogHandler) ProductsByCategory(c *gin.Context) {
	result, err := h.query.ProductsByCategory(c.Request.Context(), c.Param("id"), query.Page(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}

// CreateCategory 创建分类
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	if req.Name == nil {
		apperr.BadRequest(c, "name is required")
		return
	}
	desc := ""
	if req.Description != nil {
		desc = *req.Description
	}
	cat, err := h.cmd.CreateCategory(c.Request.Context(), *req.Name, desc)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "created", cat)
}

// UpdateCategory 更新分类
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	cat, err := h.cmd.UpdateCategory(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, cat)
}

// DeleteCategory 删除分类
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	if err := h.cmd.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
