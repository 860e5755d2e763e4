package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/service"
	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

// RconController 玩家、白名单、世界与原始命令相关API控制器
type RconController struct {
	Rcon       *service.RconService
	Moderation *service.ModerationService
}

// NewRconController 创建RCON控制器
func NewRconController(rconService *service.RconService, moderation *service.ModerationService) *RconController {
	return &RconController{
		Rcon:       rconService,
		Moderation: moderation,
	}
}

// currentActor 从JWT上下文中取出当前用户
func currentActor(ctx *gin.Context) service.Actor {
	return service.Actor{
		Username: middleware.GetCurrentUsername(ctx),
		Role:     middleware.GetCurrentRoleName(ctx),
		Source:   service.SourceAPI,
	}
}

// statusForKind 把RCON错误类型映射为HTTP状态码
func statusForKind(kind rcon.ErrorKind) int {
	switch kind {
	case rcon.KindInvalidArgument:
		return http.StatusBadRequest
	case rcon.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case rcon.KindTimeout:
		return http.StatusGatewayTimeout
	case rcon.KindConnectionRefused, rcon.KindConnectTimeout, rcon.KindConnectionLost, rcon.KindAuthFailed:
		return http.StatusServiceUnavailable
	case rcon.KindCanceled:
		return 499
	default:
		return http.StatusBadGateway
	}
}

// respondResult 输出命令结果，失败时按错误类型选择状态码，data 总会带上
func respondResult(ctx *gin.Context, result mccontrol.CommandResult, data interface{}) {
	if result.Success {
		ctx.JSON(http.StatusOK, model.SuccessResponse(data))
		return
	}
	status := statusForKind(result.ErrorKind)
	ctx.JSON(status, model.NewResponse(status, result.Err().Error(), data))
}

// bindJSON 绑定请求体，失败时直接返回 400
func bindJSON(ctx *gin.Context, obj interface{}) bool {
	if err := ctx.ShouldBindJSON(obj); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return false
	}
	return true
}

// bindPage 读取分页参数，非法值回落到默认值
func bindPage(ctx *gin.Context) model.Page {
	var page model.Page
	_ = ctx.ShouldBindQuery(&page)
	return page.Normalize()
}

// run 执行一个需要审计的动作并输出结果
func (c *RconController) run(ctx *gin.Context, target string, action func(d *mccontrol.Dispatcher) mccontrol.CommandResult) {
	result := c.Rcon.Run(ctx.Request.Context(), currentActor(ctx), target, action)
	respondResult(ctx, result, result)
}

// ListPlayers 获取在线玩家
// @Summary 获取在线玩家
// @Description 执行 list 命令并解析在线玩家
// @Tags 玩家管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=mccontrol.PlayersResult} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Failure 403 {object} model.Response "权限不足"
// @Failure 503 {object} model.Response "服务器不可达"
// @Router /api/v1/players [get]
func (c *RconController) ListPlayers(ctx *gin.Context) {
	result := c.Rcon.Dispatcher().ListPlayers(ctx.Request.Context())
	respondResult(ctx, result.CommandResult, result)
}

// KickPlayer 踢出玩家
// @Summary 踢出玩家
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.PlayerActionRequest true "玩家与原因"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 503 {object} model.Response "服务器不可达"
// @Router /api/v1/players/kick [post]
func (c *RconController) KickPlayer(ctx *gin.Context) {
	var req model.PlayerActionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.KickPlayer(ctx.Request.Context(), req.Player, req.Reason)
	})
}

// SendMessage 广播消息或私聊玩家
// @Summary 发送消息
// @Description player 为空时广播给所有玩家
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.MessageRequest true "消息"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "发送成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/players/message [post]
func (c *RconController) SendMessage(ctx *gin.Context) {
	var req model.MessageRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		if req.Player == "" {
			return d.Say(ctx.Request.Context(), req.Message)
		}
		return d.Tell(ctx.Request.Context(), req.Player, req.Message)
	})
}

// BanPlayer 封禁玩家或IP
// @Summary 封禁玩家
// @Description duration 形如 12h、7d、2w、1m，为空表示永久；ip 为 true 时封禁IP
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.BanRequest true "封禁参数"
// @Success 200 {object} model.Response{data=model.BanRecord} "封禁成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 503 {object} model.Response "服务器不可达"
// @Router /api/v1/players/ban [post]
func (c *RconController) BanPlayer(ctx *gin.Context) {
	var req model.BanRequest
	if !bindJSON(ctx, &req) {
		return
	}
	record, result, err := c.Moderation.Ban(ctx.Request.Context(), currentActor(ctx), req)
	if err != nil && result.ErrorKind == rcon.KindNone {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "保存封禁记录失败: "+err.Error()))
		return
	}
	if err != nil {
		respondResult(ctx, result, result)
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(record))
}

// PardonPlayer 解除封禁
// @Summary 解除封禁
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.PardonRequest true "解封参数"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "解封成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/players/pardon [post]
func (c *RconController) PardonPlayer(ctx *gin.Context) {
	var req model.PardonRequest
	if !bindJSON(ctx, &req) {
		return
	}
	result, err := c.Moderation.Pardon(ctx.Request.Context(), currentActor(ctx), req.Player, req.IP)
	if err != nil && result.Success {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "更新封禁记录失败: "+err.Error()))
		return
	}
	respondResult(ctx, result, result)
}

// ListBans 获取封禁记录
// @Summary 获取封禁记录
// @Tags 玩家管理
// @Produce json
// @Security ApiKeyAuth
// @Param active query bool false "只看生效中的封禁" default(true)
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(20)
// @Success 200 {object} model.PagedResponse{items=[]model.BanRecord} "获取成功"
// @Router /api/v1/bans [get]
func (c *RconController) ListBans(ctx *gin.Context) {
	page := bindPage(ctx)
	activeOnly, _ := strconv.ParseBool(ctx.DefaultQuery("active", "true"))

	records, total, err := c.Moderation.ListBans(activeOnly, page.Number, page.Size)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "获取封禁记录失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.NewPagedResponse(total, page, records))
}

// OpPlayer 授予管理员权限
// @Summary 授予OP
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.PlayerActionRequest true "玩家"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/players/op [post]
func (c *RconController) OpPlayer(ctx *gin.Context) {
	var req model.PlayerActionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.Op(ctx.Request.Context(), req.Player)
	})
}

// DeopPlayer 撤销管理员权限
// @Summary 撤销OP
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.PlayerActionRequest true "玩家"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/players/deop [post]
func (c *RconController) DeopPlayer(ctx *gin.Context) {
	var req model.PlayerActionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.Deop(ctx.Request.Context(), req.Player)
	})
}

// SetGamemode 设置游戏模式
// @Summary 设置游戏模式
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.GamemodeRequest true "玩家与模式"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/players/gamemode [post]
func (c *RconController) SetGamemode(ctx *gin.Context) {
	var req model.GamemodeRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.SetGamemode(ctx.Request.Context(), req.Player, req.Mode)
	})
}

// Teleport 传送玩家
// @Summary 传送玩家
// @Description target 可以是玩家名或 "x y z" 坐标
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.TeleportRequest true "玩家与目标"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/players/teleport [post]
func (c *RconController) Teleport(ctx *gin.Context) {
	var req model.TeleportRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.Teleport(ctx.Request.Context(), req.Player, req.Target)
	})
}

// GiveItem 给予物品
// @Summary 给予物品
// @Tags 玩家管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.GiveRequest true "玩家、物品与数量"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/players/give [post]
func (c *RconController) GiveItem(ctx *gin.Context) {
	var req model.GiveRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.Give(ctx.Request.Context(), req.Player, req.Item, req.Count)
	})
}

// ListWhitelist 获取白名单
// @Summary 获取白名单
// @Tags 白名单
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=mccontrol.WhitelistResult} "获取成功"
// @Router /api/v1/whitelist [get]
func (c *RconController) ListWhitelist(ctx *gin.Context) {
	result := c.Rcon.Dispatcher().WhitelistList(ctx.Request.Context())
	respondResult(ctx, result.CommandResult, result)
}

// WhitelistAdd 加入白名单
// @Summary 加入白名单
// @Tags 白名单
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.PlayerActionRequest true "玩家"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/whitelist/add [post]
func (c *RconController) WhitelistAdd(ctx *gin.Context) {
	var req model.PlayerActionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.WhitelistAdd(ctx.Request.Context(), req.Player)
	})
}

// WhitelistRemove 移出白名单
// @Summary 移出白名单
// @Tags 白名单
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.PlayerActionRequest true "玩家"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/whitelist/remove [post]
func (c *RconController) WhitelistRemove(ctx *gin.Context) {
	var req model.PlayerActionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.WhitelistRemove(ctx.Request.Context(), req.Player)
	})
}

// WhitelistToggle 开关或重载白名单，op 取 on、off、reload
// @Summary 开关白名单
// @Tags 白名单
// @Produce json
// @Security ApiKeyAuth
// @Param op path string true "on、off 或 reload"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Failure 404 {object} model.Response "未知操作"
// @Router /api/v1/whitelist/{op} [post]
func (c *RconController) WhitelistToggle(ctx *gin.Context) {
	op := ctx.Param("op")
	var action func(d *mccontrol.Dispatcher) mccontrol.CommandResult
	switch op {
	case "on":
		action = func(d *mccontrol.Dispatcher) mccontrol.CommandResult { return d.WhitelistOn(ctx.Request.Context()) }
	case "off":
		action = func(d *mccontrol.Dispatcher) mccontrol.CommandResult { return d.WhitelistOff(ctx.Request.Context()) }
	case "reload":
		action = func(d *mccontrol.Dispatcher) mccontrol.CommandResult { return d.WhitelistReload(ctx.Request.Context()) }
	default:
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, "未知的白名单操作: "+op))
		return
	}
	c.run(ctx, "", action)
}

// SetTime 设置时间
// @Summary 设置时间
// @Description value 可以是 day、night、noon、midnight 或 tick 数
// @Tags 世界管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.WorldRequest true "时间"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/world/time [post]
func (c *RconController) SetTime(ctx *gin.Context) {
	var req model.WorldRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.SetTime(ctx.Request.Context(), req.Value)
	})
}

// SetWeather 设置天气
// @Summary 设置天气
// @Tags 世界管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.WorldRequest true "天气与持续秒数"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/world/weather [post]
func (c *RconController) SetWeather(ctx *gin.Context) {
	var req model.WorldRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.SetWeather(ctx.Request.Context(), req.Value, req.Duration)
	})
}

// SetDifficulty 设置难度
// @Summary 设置难度
// @Tags 世界管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.WorldRequest true "难度"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/world/difficulty [post]
func (c *RconController) SetDifficulty(ctx *gin.Context) {
	var req model.WorldRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c.run(ctx, "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.SetDifficulty(ctx.Request.Context(), req.Value)
	})
}

// SaveWorld 保存世界
// @Summary 保存世界
// @Tags 世界管理
// @Produce json
// @Security ApiKeyAuth
// @Param flush query bool false "是否立即刷盘"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Router /api/v1/world/save [post]
func (c *RconController) SaveWorld(ctx *gin.Context) {
	flush, _ := strconv.ParseBool(ctx.DefaultQuery("flush", "false"))
	c.run(ctx, "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.SaveAll(ctx.Request.Context(), flush)
	})
}

// GetSeed 获取世界种子
// @Summary 获取世界种子
// @Tags 世界管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=map[string]string} "获取成功"
// @Router /api/v1/world/seed [get]
func (c *RconController) GetSeed(ctx *gin.Context) {
	result := c.Rcon.Dispatcher().Seed(ctx.Request.Context())
	respondResult(ctx, result, gin.H{"seed": mccontrol.ParseSeed(result.Output), "output": result.Output})
}

// ExecuteCommand 执行原始命令
// @Summary 执行原始命令
// @Description 危险命令（stop、op、ban-ip 等）需要 confirm=true
// @Tags RCON
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body model.CommandRequest true "命令"
// @Success 200 {object} model.Response{data=mccontrol.CommandResult} "执行成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 409 {object} model.Response "危险命令需要确认"
// @Failure 413 {object} model.Response "命令过长"
// @Failure 504 {object} model.Response "服务器响应超时"
// @Router /api/v1/rcon/execute [post]
func (c *RconController) ExecuteCommand(ctx *gin.Context) {
	var req model.CommandRequest
	if !bindJSON(ctx, &req) {
		return
	}
	result, err := c.Rcon.Execute(ctx.Request.Context(), currentActor(ctx), req.Command, req.Confirm)
	if errors.Is(err, service.ErrConfirmationRequired) {
		ctx.JSON(http.StatusConflict, model.NewResponse(http.StatusConflict, "该命令可能影响服务器运行，请确认后重新提交", result))
		return
	}
	respondResult(ctx, result, result)
}

// GetSession 获取RCON会话状态
// @Summary 获取RCON会话状态
// @Tags RCON
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=mccontrol.SessionInfo} "获取成功"
// @Failure 404 {object} model.Response "未使用RCON会话"
// @Router /api/v1/rcon/session [get]
func (c *RconController) GetSession(ctx *gin.Context) {
	info, ok := c.Rcon.Session()
	if !ok {
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, "未使用RCON会话"))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(info))
}
