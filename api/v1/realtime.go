package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/service"
	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/internal/websocket"
	"city.newnan/mcbot/pkg/mccontrol"
)

// RealtimeController 控制台WebSocket、事件流与公告
type RealtimeController struct {
	Rcon *service.RconService
}

// NewRealtimeController 创建实时通信控制器
func NewRealtimeController(rconService *service.RconService) *RealtimeController {
	return &RealtimeController{Rcon: rconService}
}

// HandleWebSocket 控制台WebSocket
// @Summary 控制台WebSocket
// @Description 有控制台权限的用户可以发送 {"type":"command"}，其他人执行的命令会以 console 消息推送
// @Tags 实时
// @Security ApiKeyAuth
// @Param token query string false "浏览器无法设置请求头时通过查询参数传递Token"
// @Router /api/v1/ws [get]
func (c *RealtimeController) HandleWebSocket(ctx *gin.Context) {
	websocket.HandleWebSocket(ctx)
}

// HandleSSE 服务器事件流
// @Summary 服务器事件流
// @Description 订阅 rcon、server、bans 主题，支持 Last-Event-ID 补发
// @Tags 实时
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param topics query string false "逗号分隔的主题，默认为当前角色可见的全部主题"
// @Router /api/v1/sse [get]
func (c *RealtimeController) HandleSSE(ctx *gin.Context) {
	sse.HandleSSE(ctx)
}

// Announce 发布公告
// @Summary 发布公告
// @Description 推送到所有控制台连接，in_game 为 true 时同时在游戏内 say
// @Tags 实时
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param announcement body model.AnnounceRequest true "公告内容"
// @Success 200 {object} model.Response{data=map[string]interface{}} "发布成功"
// @Router /api/v1/realtime/announce [post]
func (c *RealtimeController) Announce(ctx *gin.Context) {
	var req model.AnnounceRequest
	if !bindJSON(ctx, &req) {
		return
	}
	message := mccontrol.SanitizeText(req.Message)
	if message == "" {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "公告内容不能为空"))
		return
	}

	delivered := websocket.GlobalManager.Announce(middleware.GetCurrentUsername(ctx), message)
	data := gin.H{"delivered": delivered}
	if req.InGame && c.Rcon != nil {
		result := c.Rcon.Run(ctx.Request.Context(), currentActor(ctx), "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
			return d.Say(ctx.Request.Context(), message)
		})
		data["in_game"] = result
		if !result.Success {
			respondResult(ctx, result, data)
			return
		}
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(data))
}

// GetRealtimeStats 获取实时连接统计
// @Summary 实时连接统计
// @Tags 实时
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=map[string]interface{}} "获取成功"
// @Router /api/v1/realtime/stats [get]
func (c *RealtimeController) GetRealtimeStats(ctx *gin.Context) {
	topics := make(map[string]int)
	for _, topic := range []string{sse.TopicRcon, sse.TopicServer, sse.TopicBans} {
		topics[topic] = sse.GlobalBroker.GetTopicClientCount(topic)
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(gin.H{
		"websocket_total": websocket.GlobalManager.GetClientCount(),
		"operators":       websocket.GlobalManager.Operators(),
		"sse_total":       sse.GlobalBroker.GetClientCount(),
		"sse_topics":      topics,
		"timestamp":       time.Now().Format(time.RFC3339),
	}))
}
