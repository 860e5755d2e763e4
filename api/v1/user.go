package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/service"
	"city.newnan/mcbot/pkg/mccontrol"
)

// UserController 面板账号API
type UserController struct {
	UserService *service.UserService
	Config      *config.Config
}

// NewUserController 创建用户控制器
func NewUserController(cfg *config.Config) *UserController {
	return &UserController{
		UserService: service.NewUserService(cfg),
		Config:      cfg,
	}
}

// userErrorStatus 将用户服务的错误映射为HTTP状态码
func userErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrBadCredentials), errors.Is(err, service.ErrUserDisabled):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInsufficientLevel):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, mccontrol.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (c *UserController) fail(ctx *gin.Context, prefix string, err error) {
	status := userErrorStatus(err)
	ctx.JSON(status, model.ErrorResponse(status, prefix+": "+err.Error()))
}

// setToken 同时通过Cookie和响应体下发Token
func (c *UserController) setToken(ctx *gin.Context, token string, maxAge int) {
	ctx.SetCookie("token", token, maxAge, "/", "", c.Config.JWTCookieSecure, c.Config.JWTCookieHTTPOnly)
}

func pathID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的用户ID"))
		return 0, false
	}
	return uint(id), true
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建面板账号，第一个注册的账号成为服主
// @Tags 用户管理
// @Accept json
// @Produce json
// @Param user body model.UserRegister true "用户注册信息"
// @Success 200 {object} model.Response{data=map[string]interface{}} "注册成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 409 {object} model.Response "用户名或邮箱已存在"
// @Router /api/v1/user/register [post]
func (c *UserController) Register(ctx *gin.Context) {
	var req model.UserRegister
	if !bindJSON(ctx, &req) {
		return
	}
	user, token, err := c.UserService.Register(req)
	if err != nil {
		c.fail(ctx, "注册失败", err)
		return
	}
	c.setToken(ctx, token, int(c.Config.JWTExpireTime.Seconds()))
	ctx.JSON(http.StatusOK, model.SuccessResponse(gin.H{"user": user.ToUserResponse(), "token": token}))
}

// Login 用户登录
// @Summary 用户登录
// @Tags 用户管理
// @Accept json
// @Produce json
// @Param login body model.UserLogin true "登录信息"
// @Success 200 {object} model.Response{data=map[string]interface{}} "登录成功"
// @Failure 401 {object} model.Response "认证失败"
// @Router /api/v1/user/login [post]
func (c *UserController) Login(ctx *gin.Context) {
	var req model.UserLogin
	if !bindJSON(ctx, &req) {
		return
	}
	user, token, err := c.UserService.Login(req)
	if err != nil {
		c.fail(ctx, "登录失败", err)
		return
	}
	c.setToken(ctx, token, int(c.Config.JWTExpireTime.Seconds()))
	ctx.JSON(http.StatusOK, model.SuccessResponse(gin.H{"user": user.ToUserResponse(), "token": token}))
}

// Logout 清除Cookie中的Token
// @Summary 用户登出
// @Tags 用户管理
// @Success 200 {object} model.Response "登出成功"
// @Router /api/v1/user/logout [post]
func (c *UserController) Logout(ctx *gin.Context) {
	c.setToken(ctx, "", -1)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// GetProfile 获取当前用户信息
// @Summary 获取当前用户信息
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=model.UserResponse} "获取成功"
// @Router /api/v1/user/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	user, err := c.UserService.GetUserByID(middleware.GetCurrentUserID(ctx))
	if err != nil {
		c.fail(ctx, "获取用户信息失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// ChangePassword 修改当前用户密码
// @Summary 修改密码
// @Tags 用户管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param password body model.PasswordChange true "旧密码与新密码"
// @Success 200 {object} model.Response "修改成功"
// @Failure 401 {object} model.Response "旧密码错误"
// @Router /api/v1/user/password [put]
func (c *UserController) ChangePassword(ctx *gin.Context) {
	var req model.PasswordChange
	if !bindJSON(ctx, &req) {
		return
	}
	if err := c.UserService.ChangePassword(middleware.GetCurrentUserID(ctx), req); err != nil {
		c.fail(ctx, "修改密码失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// RefreshToken 按数据库中的最新角色重新签发Token
// @Summary 刷新Token
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=map[string]string} "刷新成功"
// @Failure 401 {object} model.Response "账号已禁用"
// @Router /api/v1/user/refresh-token [get]
func (c *UserController) RefreshToken(ctx *gin.Context) {
	token, err := c.UserService.Refresh(middleware.GetCurrentUserID(ctx))
	if err != nil {
		c.fail(ctx, "刷新Token失败", err)
		return
	}
	c.setToken(ctx, token, int(c.Config.JWTExpireTime.Seconds()))
	ctx.JSON(http.StatusOK, model.SuccessResponse(gin.H{"token": token}))
}

// ListUsers 获取用户列表
// @Summary 获取用户列表
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Param query query string false "匹配用户名、邮箱或玩家名"
// @Success 200 {object} model.PagedResponse{items=[]model.UserResponse} "获取成功"
// @Router /api/v1/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	page := bindPage(ctx)
	users, total, err := c.UserService.ListUsers(page.Number, page.Size, ctx.Query("query"))
	if err != nil {
		c.fail(ctx, "获取用户列表失败", err)
		return
	}
	items := make([]model.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, users[i].ToUserResponse())
	}
	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, page, items))
}

// AssignRole 调整用户角色
// @Summary 调整用户角色
// @Description 只能授予比自己低的角色，服主不受限制
// @Tags 用户管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param role body model.RoleAssign true "目标角色"
// @Success 200 {object} model.Response{data=model.UserResponse} "修改成功"
// @Failure 403 {object} model.Response "等级不足"
// @Router /api/v1/users/{id}/role [put]
func (c *UserController) AssignRole(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	var req model.RoleAssign
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := c.UserService.AssignRole(middleware.GetCurrentRoleName(ctx), id, req.Role)
	if err != nil {
		c.fail(ctx, "修改角色失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// DisableUser 禁用用户
// @Summary 禁用用户
// @Tags 用户管理
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} model.Response "禁用成功"
// @Router /api/v1/users/{id}/disable [put]
func (c *UserController) DisableUser(ctx *gin.Context) {
	c.setDisabled(ctx, true)
}

// EnableUser 启用用户
// @Summary 启用用户
// @Tags 用户管理
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} model.Response "启用成功"
// @Router /api/v1/users/{id}/enable [put]
func (c *UserController) EnableUser(ctx *gin.Context) {
	c.setDisabled(ctx, false)
}

func (c *UserController) setDisabled(ctx *gin.Context, disabled bool) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	if id == middleware.GetCurrentUserID(ctx) {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "不能修改自己的账号状态"))
		return
	}
	if err := c.UserService.SetDisabled(middleware.GetCurrentRoleName(ctx), id, disabled); err != nil {
		c.fail(ctx, "修改账号状态失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}
