package service

import (
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/pkg/mccontrol"
)

// maxAuditOutput 审计日志中保存的输出最大字符数
const maxAuditOutput = 8192

// AuditService 记录RCON命令与服务器事件
type AuditService struct{}

// NewAuditService 创建审计服务实例
func NewAuditService() *AuditService {
	return &AuditService{}
}

// RecordCommand 保存一次命令执行结果，写库失败只记录日志
func (s *AuditService) RecordCommand(actor Actor, target, correlationID string, result mccontrol.CommandResult) *model.AuditLog {
	output := result.Output
	if utf8.RuneCountInString(output) > maxAuditOutput {
		output = string([]rune(output)[:maxAuditOutput])
	}

	entry := &model.AuditLog{
		CorrelationID: correlationID,
		Actor:         actor.Username,
		Source:        actor.Source,
		Action:        result.Action,
		Target:        target,
		Command:       result.Command,
		Success:       result.Success,
		ErrorKind:     string(result.ErrorKind),
		Output:        output,
		LatencyMs:     result.LatencyMs,
	}
	if err := db.DB.Create(entry).Error; err != nil {
		log.WithField("correlation_id", correlationID).Errorf("保存审计日志失败: %v", err)
	}
	return entry
}

// ListCommands 分页查询审计日志，按时间倒序
func (s *AuditService) ListCommands(page, pageSize int, filter model.AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	query := db.DB.Model(&model.AuditLog{})
	if filter.Actor != "" {
		query = query.Where("actor = ?", filter.Actor)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Target != "" {
		query = query.Where("target = ?", filter.Target)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// RecordEvent 保存服务器生命周期事件
func (s *AuditService) RecordEvent(event *model.ServerEvent) {
	if err := db.DB.Create(event).Error; err != nil {
		log.WithField("event", event.Event).Errorf("保存服务器事件失败: %v", err)
	}
}

// ListEvents 分页查询服务器事件，按时间倒序
func (s *AuditService) ListEvents(page, pageSize int) ([]model.ServerEvent, int64, error) {
	var events []model.ServerEvent
	var total int64

	if err := db.DB.Model(&model.ServerEvent{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.DB.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
