package service

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/pkg/mccontrol"
)

// ErrLifecycleUnavailable 未启用Kubernetes时无法启停服务器
var ErrLifecycleUnavailable = errors.New("未启用Kubernetes，无法管理服务器生命周期")

// ServerService 服务器状态查询与生命周期管理
type ServerService struct {
	controller *mccontrol.ServerController // 未启用Kubernetes时为 nil
	rcon       *RconService
	audit      *AuditService
	publisher  Publisher

	status func() (*mccontrol.ServerStatus, error)

	mu         sync.Mutex
	lastOnline *bool
}

// NewServerService 创建服务器服务
// controller 为 nil 时通过 host:port 直接 Ping 服务器
func NewServerService(controller *mccontrol.ServerController, rconService *RconService, audit *AuditService, publisher Publisher, host string, port int) *ServerService {
	s := &ServerService{
		controller: controller,
		rcon:       rconService,
		audit:      audit,
		publisher:  publisher,
	}
	if controller != nil {
		s.status = controller.CheckServerStatus
	} else {
		s.status = func() (*mccontrol.ServerStatus, error) { return mccontrol.Ping(host, port) }
	}
	return s
}

// LifecycleEnabled 是否可以启停服务器
func (s *ServerService) LifecycleEnabled() bool {
	return s.controller != nil
}

// Status 查询服务器状态
func (s *ServerService) Status() (*mccontrol.ServerStatus, error) {
	return s.status()
}

// Start 启动服务器
func (s *ServerService) Start(ctx context.Context, actor Actor) error {
	if s.controller == nil {
		return ErrLifecycleUnavailable
	}
	err := s.controller.Start(ctx)
	s.recordEvent(actor, "start", err)
	return err
}

// Stop 保存世界后停止服务器
func (s *ServerService) Stop(ctx context.Context, actor Actor) error {
	if s.controller == nil {
		return ErrLifecycleUnavailable
	}
	err := s.controller.Stop(ctx, s.rcon.Dispatcher())
	s.recordEvent(actor, "stop", err)
	return err
}

// Restart 重建服务器Pod
func (s *ServerService) Restart(ctx context.Context, actor Actor) error {
	if s.controller == nil {
		return ErrLifecycleUnavailable
	}
	if res := s.rcon.Dispatcher().SaveAll(ctx, true); !res.Success {
		log.WithField("error_kind", res.ErrorKind).Warn("重启前保存世界失败")
	}
	err := s.controller.Restart(ctx)
	s.recordEvent(actor, "restart", err)
	return err
}

// Logs 获取最近的服务器日志
func (s *ServerService) Logs(ctx context.Context, tail int64) ([]string, error) {
	if s.controller == nil {
		return nil, ErrLifecycleUnavailable
	}
	opts := mccontrol.LogOptions{}
	if tail > 0 {
		opts.TailLines = &tail
	}
	return s.controller.FetchLogs(ctx, opts)
}

// WatchLogEvents 在后台跟踪服务器日志，识别出的玩家和服务器事件会被记录并推送
func (s *ServerService) WatchLogEvents(ctx context.Context) {
	if s.controller == nil {
		return
	}
	go func() {
		if err := s.controller.WatchLogEvents(ctx, s.handleLogEvent); err != nil {
			log.Errorf("服务器日志事件跟踪已停止: %v", err)
		}
	}()
}

// handleLogEvent 聊天和错误只推送，其余事件同时写入 server_events
func (s *ServerService) handleLogEvent(event mccontrol.LogEvent) {
	if event.Type == mccontrol.LogEventWarning {
		return
	}
	if s.publisher != nil {
		s.publisher.PublishEvent(sse.TopicServer, string(event.Type), event)
	}
	if event.Type == mccontrol.LogEventChat || event.Type == mccontrol.LogEventError || s.audit == nil {
		return
	}

	detail := event.Message
	if r := []rune(detail); len(r) > 512 {
		detail = string(r[:512])
	}
	s.audit.RecordEvent(&model.ServerEvent{
		CreatedAt: event.Time,
		Actor:     SystemActor.Username,
		Event:     string(event.Type),
		Player:    event.Player,
		Success:   true,
		Detail:    detail,
	})
	log.WithFields(log.Fields{"event": event.Type, "player": event.Player}).Debug("服务器日志事件")
}

// StartMonitoring 定期检查服务器状态，在线状态变化时记录事件并推送
func (s *ServerService) StartMonitoring(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.checkOnce()
			}
		}
	}()
}

// checkOnce 检查一次状态，返回在线状态是否发生了变化
func (s *ServerService) checkOnce() bool {
	status, err := s.status()
	if status == nil {
		log.Warnf("查询服务器状态失败: %v", err)
		return false
	}

	s.mu.Lock()
	changed := s.lastOnline == nil || *s.lastOnline != status.Online
	online := status.Online
	s.lastOnline = &online
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.PublishEvent(sse.TopicServer, "status", status)
	}
	if !changed {
		return false
	}

	event := "offline"
	if online {
		event = "online"
	}
	if s.audit != nil {
		s.audit.RecordEvent(&model.ServerEvent{Actor: SystemActor.Username, Event: event, Success: true, Detail: status.LastError})
	}
	log.WithField("online", online).Info("服务器在线状态变化")
	return true
}

func (s *ServerService) recordEvent(actor Actor, event string, err error) {
	entry := &model.ServerEvent{Actor: actor.Username, Event: event, Success: err == nil}
	if err != nil {
		entry.Detail = err.Error()
	}
	if s.audit != nil {
		s.audit.RecordEvent(entry)
	}
	if s.publisher != nil {
		s.publisher.PublishEvent(sse.TopicServer, event, entry)
	}

	fields := log.Fields{"actor": actor.Username, "event": event}
	if err != nil {
		log.WithFields(fields).Errorf("服务器操作失败: %v", err)
	} else {
		log.WithFields(fields).Info("服务器操作完成")
	}
}
