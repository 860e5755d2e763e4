package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/router"
	"city.newnan/mcbot/internal/service"
	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/internal/websocket"
	"city.newnan/mcbot/pkg/mccontrol"
)

// @title           mcbot API
// @version         1.0
// @description     通过 RCON 管理 Minecraft 服务器的 API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API 支持
// @contact.url    http://www.newnan.city/support
// @contact.email  support@newnan.city

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer 认证, 例如: "Bearer {token}"

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("无效的日志级别，使用 info")
	}
	log.Debugf("当前配置: %+v", cfg.Redacted())

	if cfg.RconPassword == "" {
		log.Warn("未设置 RCON_PASSWORD，RCON认证将会失败")
	}

	// 初始化数据库
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer db.CloseDB()

	// 数据库模型自动迁移
	if err := db.AutoMigrate(); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 初始化Casbin
	if err := middleware.InitCasbin(cfg.CasbinModelPath); err != nil {
		log.Fatalf("初始化Casbin失败: %v", err)
	}

	// 设置初始角色和权限
	roleService := service.NewRoleService()
	if err := roleService.SetupInitialRoles(); err != nil {
		log.Errorf("设置初始角色和权限失败: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// RCON会话，空闲超时后断开，下次命令时自动重连
	pool := mccontrol.NewPool(cfg.RconIdleTimeout)
	defer pool.CloseAll()
	pool.StartIdleReaper(ctx, time.Minute)
	session := pool.Get(cfg.RconConfig())

	openCtx, cancelOpen := context.WithTimeout(ctx, cfg.RconTimeout*2)
	if err := session.Open(openCtx); err != nil {
		log.WithError(err).WithField("endpoint", session.Endpoint()).Warn("RCON初次连接失败，将在执行命令时重试")
	}
	cancelOpen()

	// Kubernetes控制器（可选）
	var controller *mccontrol.ServerController
	if cfg.K8sEnabled {
		clientset, err := mccontrol.NewKubernetesClient(cfg.K8sConfig())
		if err != nil {
			log.Fatalf("创建Kubernetes客户端失败: %v", err)
		}
		controller = mccontrol.NewServerController(clientset, cfg.K8sConfig(), cfg.MinecraftPort)
		defer controller.Close()
	}

	// 业务服务
	auditService := service.NewAuditService()
	rconService := service.NewRconService(session, auditService, sse.GlobalBroker)
	moderationService := service.NewModerationService(rconService, sse.GlobalBroker)
	serverService := service.NewServerService(controller, rconService, auditService, sse.GlobalBroker, cfg.MinecraftHost, cfg.MinecraftPort)

	moderationService.StartExpiryLoop(ctx, cfg.BanCheckInterval)
	serverService.StartMonitoring(ctx, cfg.StatusCheckInterval)
	if cfg.LogEventsEnabled {
		serverService.WatchLogEvents(ctx)
	}

	// 启动WebSocket管理器，控制台命令走同一个RCON会话
	websocket.GlobalManager.SetConsole(rconService, cfg.ConsoleAllowedRole, cfg.ConsoleRateLimit, cfg.ConsoleRateBurst)
	websocket.GlobalManager.Start()

	// 启动SSE代理
	sse.GlobalBroker.Start()

	// 初始化路由
	r := router.SetupRouter(cfg, router.Services{
		Rcon:       rconService,
		Moderation: moderationService,
		Server:     serverService,
	})

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: r,
	}

	// 启动服务器（非阻塞）
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("监听失败: %v", err)
		}
	}()

	log.WithFields(log.Fields{
		"listen": srv.Addr,
		"rcon":   session.Endpoint(),
		"k8s":    cfg.K8sEnabled,
	}).Info("服务器开始运行")

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("正在关闭服务器...")
	stop()

	// 设置关闭超时
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("服务器被强制关闭:", err)
	}

	log.Info("服务器优雅退出")
}
