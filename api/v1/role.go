package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/service"
)

// RoleController 内置角色与权限API，角色本身不可增删
type RoleController struct {
	RoleService *service.RoleService
}

// NewRoleController 创建角色控制器
func NewRoleController() *RoleController {
	return &RoleController{
		RoleService: service.NewRoleService(),
	}
}

func (c *RoleController) fail(ctx *gin.Context, prefix string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrRoleNotFound) {
		status = http.StatusNotFound
	}
	ctx.JSON(status, model.ErrorResponse(status, prefix+": "+err.Error()))
}

// ListRoles 获取角色列表
// @Summary 获取角色列表
// @Description 按权限等级从低到高返回内置角色
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=[]model.Role} "获取成功"
// @Router /api/v1/roles [get]
func (c *RoleController) ListRoles(ctx *gin.Context) {
	roles, err := c.RoleService.ListRoles()
	if err != nil {
		c.fail(ctx, "获取角色列表失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(roles))
}

// GetRolePermissions 获取角色权限
// @Summary 获取角色权限
// @Description 包含从低等级角色继承的权限
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "角色名"
// @Success 200 {object} model.Response{data=[][]string} "获取成功"
// @Failure 404 {object} model.Response "角色不存在"
// @Router /api/v1/roles/{name}/permissions [get]
func (c *RoleController) GetRolePermissions(ctx *gin.Context) {
	permissions, err := c.RoleService.GetRolePermissions(ctx.Param("name"))
	if err != nil {
		c.fail(ctx, "获取角色权限失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(permissions))
}

// AddRolePermission 为角色追加权限
// @Summary 添加角色权限
// @Tags 角色管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "角色名"
// @Param permission body model.PermissionRequest true "路径与方法"
// @Success 200 {object} model.Response{data=map[string]bool} "added 为 false 表示已存在"
// @Router /api/v1/roles/{name}/permissions [post]
func (c *RoleController) AddRolePermission(ctx *gin.Context) {
	var req model.PermissionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	added, err := c.RoleService.AddRolePermission(ctx.Param("name"), req.Path, req.Method)
	if err != nil {
		c.fail(ctx, "添加权限失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(gin.H{"added": added}))
}

// RemoveRolePermission 移除角色权限
// @Summary 移除角色权限
// @Tags 角色管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "角色名"
// @Param permission body model.PermissionRequest true "路径与方法"
// @Success 200 {object} model.Response{data=map[string]bool} "removed 为 false 表示不存在"
// @Router /api/v1/roles/{name}/permissions [delete]
func (c *RoleController) RemoveRolePermission(ctx *gin.Context) {
	var req model.PermissionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	removed, err := c.RoleService.RemoveRolePermission(ctx.Param("name"), req.Path, req.Method)
	if err != nil {
		c.fail(ctx, "移除权限失败", err)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(gin.H{"removed": removed}))
}
