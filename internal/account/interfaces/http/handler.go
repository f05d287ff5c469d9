package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/storefront/internal/account/application"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/middleware"
	"github.com/wyfcoding/storefront/pkg/query"
)

// AccountHandler 账户 HTTP 处理器
type AccountHandler struct {
	register *application.RegistrationService
	cmd      *application.AccountCommandService
	query    *application.AccountQueryService
}

// NewAccountHandler 创建 HTTP 处理器
func NewAccountHandler(
	register *application.RegistrationService,
	cmd *application.AccountCommandService,
	query *application.AccountQueryService,
) *AccountHandler {
	return &AccountHandler{register: register, cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
// authed 组需挂载 RequireAuth，admin 组需挂载 RequireAuth 与 RequireAdmin；
// throttle 作用于注册与登录接口
func (h *AccountHandler) RegisterRoutes(public, authed, admin *gin.RouterGroup, throttle ...gin.HandlerFunc) {
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, throttle...), handler)
	}
	public.POST("/register/initiate", guarded(h.InitiateRegistration)...)
	public.POST("/register/complete", guarded(h.CompleteRegistration)...)
	public.POST("/register/resend", guarded(h.ResendVerification)...)
	public.POST("/buyers/login", guarded(h.LoginBuyer)...)
	public.POST("/admins/login", guarded(h.LoginAdmin)...)

	authed.GET("/buyers/:id", h.GetBuyer)
	authed.PUT("/buyers/:id", h.UpdateBuyer)
	authed.DELETE("/buyers/:id", h.DeleteBuyer)

	admin.GET("/buyers", h.ListBuyers)
	admin.GET("/admins", h.ListAdmins)
	admin.POST("/admins", h.CreateAdmin)
	admin.GET("/admins/:id", h.GetAdmin)
	admin.PUT("/admins/:id", h.UpdateAdmin)
	admin.DELETE("/admins/:id", h.DeleteAdmin)
}

// InitiateRegistrationRequest 注册请求
type InitiateRegistrationRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CompleteRegistrationRequest 验证码确认
type CompleteRegistrationRequest struct {
	Token string `json:"token" binding:"required"`
}

// ResendRequest 重发验证码
type ResendRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateBuyerRequest 买家更新请求
type UpdateBuyerRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UpdateAdminRequest 管理员更新请求
type UpdateAdminRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func (h *AccountHandler) InitiateRegistration(c *gin.Context) {
	var req InitiateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	err := h.register.InitiateRegistration(c.Request.Context(), application.InitiateRegistrationCommand{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, gin.H{"message": "verification code sent"})
}

func (h *AccountHandler) CompleteRegistration(c *gin.Context) {
	var req CompleteRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	buyer, err := h.register.CompleteRegistration(c.Request.Context(), req.Token)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "created", buyer)
}

func (h *AccountHandler) ResendVerification(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	if err := h.register.ResendVerification(c.Request.Context(), req.Email); err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, gin.H{"message": "verification code sent"})
}

func (h *AccountHandler) LoginBuyer(c *gin.Context) {
	h.login(c, h.cmd.LoginBuyer)
}

func (h *AccountHandler) LoginAdmin(c *gin.Context) {
	h.login(c, h.cmd.LoginAdmin)
}

func (h *AccountHandler) login(c *gin.Context, fn func(ctx context.Context, username, password string) (*application.LoginResult, error)) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	result, err := fn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}

// selfOrAdmin 买家只能操作自己的账户
func selfOrAdmin(c *gin.Context, buyerID string) bool {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthenticated("authentication required"))
		return false
	}
	if claims.Role == auth.RoleAdmin || (claims.Role == auth.RoleBuyer && claims.UserID == buyerID) {
		return true
	}
	apperr.Respond(c, apperr.Unauthorized("cannot access another buyer's account"))
	return false
}

func (h *AccountHandler) GetBuyer(c *gin.Context) {
	id := c.Param("id")
	if !selfOrAdmin(c, id) {
		return
	}
	buyer, err := h.query.GetBuyer(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, buyer)
}

func (h *AccountHandler) UpdateBuyer(c *gin.Context) {
	id := c.Param("id")
	if !selfOrAdmin(c, id) {
		return
	}
	var req UpdateBuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	buyer, err := h.cmd.UpdateBuyer(c.Request.Context(), application.UpdateBuyerCommand{
		ID:       id,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, buyer)
}

func (h *AccountHandler) DeleteBuyer(c *gin.Context) {
	id := c.Param("id")
	if !selfOrAdmin(c, id) {
		return
	}
	if err := h.cmd.DeleteBuyer(c.Request.Context(), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) ListBuyers(c *gin.Context) {
	result, err := h.query.ListBuyers(c.Request.Context(), query.Page(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AccountHandler) ListAdmins(c *gin.Context) {
	admins, err := h.query.ListAdmins(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, admins)
}

func (h *AccountHandler) CreateAdmin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	admin, err := h.cmd.CreateAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "created", admin)
}

func (h *AccountHandler) GetAdmin(c *gin.Context) {
	admin, err := h.query.GetAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, admin)
}

func (h *AccountHandler) UpdateAdmin(c *gin.Context) {
	var req UpdateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.BadRequest(c, err.Error())
		return
	}
	admin, err := h.cmd.UpdateAdmin(c.Request.Context(), application.UpdateAdminCommand{
		ID:       c.Param("id"),
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	response.Success(c, admin)
}

func (h *AccountHandler) DeleteAdmin(c *gin.Context) {
	if err := h.cmd.DeleteAdmin(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
