package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/service"
	"city.newnan/mcbot/pkg/mccontrol"
)

// ServerController 服务器状态与生命周期相关API控制器
type ServerController struct {
	Server *service.ServerService
}

// NewServerController 创建服务器控制器
func NewServerController(server *service.ServerService) *ServerController {
	return &ServerController{Server: server}
}

// respondLifecycle 输出生命周期操作的结果
func respondLifecycle(ctx *gin.Context, err error, message string) {
	var cmdErr *mccontrol.CommandError
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, model.NewResponse(http.StatusOK, message, nil))
	case errors.Is(err, service.ErrLifecycleUnavailable):
		ctx.JSON(http.StatusNotImplemented, model.ErrorResponse(http.StatusNotImplemented, err.Error()))
	case errors.Is(err, mccontrol.ErrNoPod):
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, err.Error()))
	case errors.As(err, &cmdErr):
		status := statusForKind(cmdErr.Kind)
		ctx.JSON(status, model.ErrorResponse(status, err.Error()))
	default:
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, err.Error()))
	}
}

// GetStatus 获取服务器状态
// @Summary 获取服务器状态
// @Description 通过 Server List Ping 查询在线状态、人数与版本，启用Kubernetes时附带Pod信息
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=mccontrol.ServerStatus} "获取成功"
// @Failure 500 {object} model.Response "服务器内部错误"
// @Router /api/v1/server/status [get]
func (c *ServerController) GetStatus(ctx *gin.Context) {
	status, err := c.Server.Status()
	if status == nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取服务器状态失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(status))
}

// StartServer 启动服务器
// @Summary 启动服务器
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "已提交启动"
// @Failure 501 {object} model.Response "未启用Kubernetes"
// @Router /api/v1/server/start [post]
func (c *ServerController) StartServer(ctx *gin.Context) {
	err := c.Server.Start(ctx.Request.Context(), currentActor(ctx))
	respondLifecycle(ctx, err, "服务器正在启动")
}

// StopServer 停止服务器
// @Summary 停止服务器
// @Description 先保存世界并发送 stop，再把副本数设为 0
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "已提交停止"
// @Failure 501 {object} model.Response "未启用Kubernetes"
// @Router /api/v1/server/stop [post]
func (c *ServerController) StopServer(ctx *gin.Context) {
	err := c.Server.Stop(ctx.Request.Context(), currentActor(ctx))
	respondLifecycle(ctx, err, "服务器正在停止")
}

// RestartServer 重启服务器
// @Summary 重启服务器
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "已提交重启"
// @Failure 404 {object} model.Response "没有运行中的Pod"
// @Failure 501 {object} model.Response "未启用Kubernetes"
// @Router /api/v1/server/restart [post]
func (c *ServerController) RestartServer(ctx *gin.Context) {
	err := c.Server.Restart(ctx.Request.Context(), currentActor(ctx))
	respondLifecycle(ctx, err, "服务器正在重启")
}

// GetLogs 获取服务器日志
// @Summary 获取服务器日志
// @Tags 服务器管理
// @Produce json
// @Security ApiKeyAuth
// @Param tail query int false "最近的行数" default(100)
// @Success 200 {object} model.Response{data=[]string} "获取成功"
// @Failure 501 {object} model.Response "未启用Kubernetes"
// @Router /api/v1/server/logs [get]
func (c *ServerController) GetLogs(ctx *gin.Context) {
	tail, _ := strconv.ParseInt(ctx.DefaultQuery("tail", "100"), 10, 64)
	lines, err := c.Server.Logs(ctx.Request.Context(), tail)
	if err != nil {
		respondLifecycle(ctx, err, "")
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(lines))
}
