package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "city.newnan/mcbot/api/v1"
	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/service"
)

// Services 路由依赖的业务服务
type Services struct {
	Rcon       *service.RconService
	Moderation *service.ModerationService
	Server     *service.ServerService
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, services Services) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 创建路由引擎
	r := gin.New()

	// 使用中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// 配置跨域
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 默认路由
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "欢迎使用 mcbot Minecraft 管理 API",
		})
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 创建控制器实例
	userController := v1.NewUserController(cfg)
	roleController := v1.NewRoleController()
	realtimeController := v1.NewRealtimeController(services.Rcon)
	rconController := v1.NewRconController(services.Rcon, services.Moderation)
	serverController := v1.NewServerController(services.Server)
	auditController := v1.NewAuditController()

	// API v1 路由组
	api := r.Group("/api/v1")
	{
		// 公开路由
		api.POST("/user/register", userController.Register)
		api.POST("/user/login", userController.Login)
		api.POST("/user/logout", userController.Logout)

		// 需要认证的路由
		auth := api.Group("")
		auth.Use(middleware.JWTAuth(cfg))
		{
			// 用户相关
			auth.GET("/user/profile", userController.GetProfile)
			auth.PUT("/user/password", userController.ChangePassword)
			auth.GET("/user/refresh-token", userController.RefreshToken)

			// 实时通信
			auth.GET("/ws", realtimeController.HandleWebSocket)
			auth.GET("/sse", realtimeController.HandleSSE)
			auth.GET("/realtime/stats", realtimeController.GetRealtimeStats)

			// 需要权限验证的路由
			authorized := auth.Group("")
			authorized.Use(middleware.Authorize())
			{
				// 用户管理
				authorized.GET("/users", userController.ListUsers)
				authorized.PUT("/users/:id/disable", userController.DisableUser)
				authorized.PUT("/users/:id/enable", userController.EnableUser)
				authorized.PUT("/users/:id/role", userController.AssignRole)

				// 角色管理
				authorized.GET("/roles", roleController.ListRoles)
				authorized.GET("/roles/:name/permissions", roleController.GetRolePermissions)
				authorized.POST("/roles/:name/permissions", roleController.AddRolePermission)
				authorized.DELETE("/roles/:name/permissions", roleController.RemoveRolePermission)

				// 玩家管理
				authorized.GET("/players", rconController.ListPlayers)
				authorized.POST("/players/kick", rconController.KickPlayer)
				authorized.POST("/players/message", rconController.SendMessage)
				authorized.POST("/players/ban", rconController.BanPlayer)
				authorized.POST("/players/pardon", rconController.PardonPlayer)
				authorized.POST("/players/op", rconController.OpPlayer)
				authorized.POST("/players/deop", rconController.DeopPlayer)
				authorized.POST("/players/gamemode", rconController.SetGamemode)
				authorized.POST("/players/teleport", rconController.Teleport)
				authorized.POST("/players/give", rconController.GiveItem)
				authorized.GET("/bans", rconController.ListBans)

				// 白名单
				authorized.GET("/whitelist", rconController.ListWhitelist)
				authorized.POST("/whitelist/add", rconController.WhitelistAdd)
				authorized.POST("/whitelist/remove", rconController.WhitelistRemove)
				authorized.POST("/whitelist/:op", rconController.WhitelistToggle)

				// 世界管理
				authorized.POST("/world/time", rconController.SetTime)
				authorized.POST("/world/weather", rconController.SetWeather)
				authorized.POST("/world/difficulty", rconController.SetDifficulty)
				authorized.POST("/world/save", rconController.SaveWorld)
				authorized.GET("/world/seed", rconController.GetSeed)

				// 原始命令与会话
				authorized.POST("/rcon/execute", rconController.ExecuteCommand)
				authorized.GET("/rcon/session", rconController.GetSession)

				// 服务器管理
				authorized.GET("/server/status", serverController.GetStatus)
				authorized.POST("/server/start", serverController.StartServer)
				authorized.POST("/server/stop", serverController.StopServer)
				authorized.POST("/server/restart", serverController.RestartServer)
				authorized.GET("/server/logs", serverController.GetLogs)
				authorized.GET("/server/events", auditController.ListEvents)

				// 审计
				authorized.GET("/audit", auditController.ListCommands)

				// 公告
				authorized.POST("/realtime/announce", realtimeController.Announce)
			}
		}
	}

	return r
}
