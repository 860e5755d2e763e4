package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/service"
)

// AuditController 审计日志相关API控制器
type AuditController struct {
	AuditService *service.AuditService
}

// NewAuditController 创建审计控制器
func NewAuditController() *AuditController {
	return &AuditController{
		AuditService: service.NewAuditService(),
	}
}

// ListCommands 获取命令审计日志
// @Summary 获取命令审计日志
// @Tags 审计
// @Produce json
// @Security ApiKeyAuth
// @Param actor query string false "执行人"
// @Param action query string false "动作"
// @Param target query string false "目标玩家"
// @Param success query bool false "是否成功"
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Success 200 {object} model.PagedResponse{items=[]model.AuditLog} "获取成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/audit [get]
func (c *AuditController) ListCommands(ctx *gin.Context) {
	page := bindPage(ctx)

	var filter model.AuditFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的查询参数: "+err.Error()))
		return
	}

	logs, total, err := c.AuditService.ListCommands(page.Number, page.Size, filter)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取审计日志失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, page, logs))
}

// ListEvents 获取服务器事件
// @Summary 获取服务器事件
// @Tags 审计
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Success 200 {object} model.PagedResponse{items=[]model.ServerEvent} "获取成功"
// @Router /api/v1/server/events [get]
func (c *AuditController) ListEvents(ctx *gin.Context) {
	page := bindPage(ctx)

	events, total, err := c.AuditService.ListEvents(page.Number, page.Size)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取服务器事件失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, page, events))
}
