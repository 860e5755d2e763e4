package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/pkg/mccontrol"
)

// 命令来源
const (
	SourceAPI     = "api"
	SourceConsole = "console"
	SourceSystem  = "system"
)

// ErrConfirmationRequired 危险命令未经确认
var ErrConfirmationRequired = errors.New("危险命令需要确认")

// Actor 发起命令的用户
type Actor struct {
	Username string
	Role     string
	Source   string
}

// SystemActor 后台任务使用的身份
var SystemActor = Actor{Username: "system", Role: "owner", Source: SourceSystem}

// Publisher 推送事件，sse.Broker 实现了该接口
type Publisher interface {
	PublishEvent(topic, event string, data interface{})
}

// CommandEvent 推送给订阅者的命令执行结果
type CommandEvent struct {
	CorrelationID string `json:"correlation_id"`
	Actor         string `json:"actor"`
	Source        string `json:"source"`
	Target        string `json:"target,omitempty"`
	mccontrol.CommandResult
}

// RconService 在命令分发器之上增加审计与事件推送
type RconService struct {
	exec       mccontrol.Executor
	dispatcher *mccontrol.Dispatcher
	audit      *AuditService
	publisher  Publisher
}

// NewRconService 创建RCON服务，audit 与 publisher 可以为 nil
func NewRconService(exec mccontrol.Executor, audit *AuditService, publisher Publisher) *RconService {
	return &RconService{
		exec:       exec,
		dispatcher: mccontrol.NewDispatcher(exec),
		audit:      audit,
		publisher:  publisher,
	}
}

// Dispatcher 返回底层命令分发器，查询类命令直接使用它而不留审计
func (s *RconService) Dispatcher() *mccontrol.Dispatcher {
	return s.dispatcher
}

// Session 返回RCON会话信息，执行器不是 SessionManager 时返回 false
func (s *RconService) Session() (mccontrol.SessionInfo, bool) {
	if session, ok := s.exec.(*mccontrol.SessionManager); ok {
		return session.Info(), true
	}
	return mccontrol.SessionInfo{}, false
}

// Run 执行一个会改变服务器状态的动作，记录审计并推送结果
func (s *RconService) Run(ctx context.Context, actor Actor, target string, action func(d *mccontrol.Dispatcher) mccontrol.CommandResult) mccontrol.CommandResult {
	correlationID := uuid.New().String()
	result := action(s.dispatcher)

	entry := log.WithFields(log.Fields{
		"correlation_id": correlationID,
		"actor":          actor.Username,
		"source":         actor.Source,
		"action":         result.Action,
		"latency_ms":     result.LatencyMs,
	})
	if result.Success {
		entry.Info("RCON动作执行成功")
	} else {
		entry.WithField("error_kind", result.ErrorKind).Warn("RCON动作执行失败")
	}

	if s.audit != nil {
		s.audit.RecordCommand(actor, target, correlationID, result)
	}
	if s.publisher != nil {
		s.publisher.PublishEvent(sse.TopicRcon, "command", CommandEvent{
			CorrelationID: correlationID,
			Actor:         actor.Username,
			Source:        actor.Source,
			Target:        target,
			CommandResult: result,
		})
	}
	return result
}

// Execute 执行原始命令，危险命令必须带 confirm
func (s *RconService) Execute(ctx context.Context, actor Actor, command string, confirm bool) (mccontrol.CommandResult, error) {
	if s.dispatcher.IsDangerous(command) && !confirm {
		return mccontrol.CommandResult{Action: "raw", Command: command}, ErrConfirmationRequired
	}
	return s.Run(ctx, actor, "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.ExecuteRaw(ctx, command)
	}), nil
}

// ExecuteConsole 供 WebSocket 控制台调用，控制台中的危险命令视为已确认
func (s *RconService) ExecuteConsole(ctx context.Context, username, role, command string) mccontrol.CommandResult {
	result, _ := s.Execute(ctx, Actor{Username: username, Role: role, Source: SourceConsole}, command, true)
	return result
}
