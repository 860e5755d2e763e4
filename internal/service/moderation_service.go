package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

// ModerationService 封禁管理，原版 ban 没有时长，限时封禁到期后由本服务解封
type ModerationService struct {
	rcon      *RconService
	publisher Publisher
	now       func() time.Time
}

// NewModerationService 创建封禁管理服务
func NewModerationService(rconService *RconService, publisher Publisher) *ModerationService {
	return &ModerationService{
		rcon:      rconService,
		publisher: publisher,
		now:       time.Now,
	}
}

// Ban 封禁玩家或IP并保存封禁记录
func (s *ModerationService) Ban(ctx context.Context, actor Actor, req model.BanRequest) (*model.BanRecord, mccontrol.CommandResult, error) {
	duration, err := mccontrol.ParseBanDuration(req.Duration)
	if err != nil {
		return nil, invalidResult("ban", err), err
	}
	// 按玩家名封禁IP时记录里没有IP，之后无法通过 pardon-ip 解除
	if req.IP && net.ParseIP(req.Player) == nil {
		err := fmt.Errorf("%w: IP封禁需要提供IP地址", mccontrol.ErrInvalidArgument)
		return nil, invalidResult("ban-ip", err), err
	}

	var expiresAt *time.Time
	result := s.rcon.Run(ctx, actor, req.Player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		if req.IP {
			return d.BanIP(ctx, req.Player, req.Reason)
		}
		ban := d.BanPlayer(ctx, req.Player, req.Reason, duration)
		expiresAt = ban.ExpiresAt
		return ban.CommandResult
	})
	if !result.Success {
		return nil, result, result.Err()
	}
	if req.IP && duration > 0 {
		t := s.now().Add(duration)
		expiresAt = &t
	}

	record := &model.BanRecord{
		Player:    req.Player,
		IP:        req.IP,
		Reason:    mccontrol.SanitizeText(req.Reason),
		BannedBy:  actor.Username,
		ExpiresAt: expiresAt,
		Active:    true,
	}
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		// 同一目标只保留一条生效记录
		if err := tx.Model(&model.BanRecord{}).
			Where("player = ? AND ip = ? AND active = ?", req.Player, req.IP, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, result, fmt.Errorf("保存封禁记录失败: %w", err)
	}

	s.publish("ban", record)
	return record, result, nil
}

// Pardon 解除封禁并关闭对应的封禁记录
func (s *ModerationService) Pardon(ctx context.Context, actor Actor, player string, ip bool) (mccontrol.CommandResult, error) {
	result := s.rcon.Run(ctx, actor, player, func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		if ip {
			return d.PardonIP(ctx, player)
		}
		return d.Pardon(ctx, player)
	})
	if !result.Success {
		return result, result.Err()
	}

	if err := s.lift(player, ip, actor.Username); err != nil {
		return result, err
	}
	s.publish("pardon", map[string]interface{}{"player": player, "ip": ip, "by": actor.Username})
	return result, nil
}

// ListBans 分页查询封禁记录
func (s *ModerationService) ListBans(activeOnly bool, page, pageSize int) ([]model.BanRecord, int64, error) {
	var records []model.BanRecord
	var total int64

	query := db.DB.Model(&model.BanRecord{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ExpireBans 解封所有已到期的封禁，返回成功解封的数量
// 服务器不可达时记录保持生效，等待下一轮
func (s *ModerationService) ExpireBans(ctx context.Context) (int, error) {
	var expired []model.BanRecord
	if err := db.DB.Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, s.now()).
		Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("查询到期封禁失败: %w", err)
	}

	lifted := 0
	var errs []error
	for _, record := range expired {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.Pardon(ctx, SystemActor, record.Player, record.IP); err != nil {
			errs = append(errs, fmt.Errorf("解封 %s 失败: %w", record.Player, err))
			continue
		}
		lifted++
	}
	if lifted > 0 {
		log.WithField("count", lifted).Info("已解除到期封禁")
	}
	return lifted, errors.Join(errs...)
}

// StartExpiryLoop 定期检查到期封禁，直到 ctx 结束
func (s *ModerationService) StartExpiryLoop(ctx context.Context, interval time.Duration) {
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
				if _, err := s.ExpireBans(ctx); err != nil {
					log.Warnf("处理到期封禁失败: %v", err)
				}
			}
		}
	}()
}

func (s *ModerationService) lift(player string, ip bool, by string) error {
	now := s.now()
	err := db.DB.Model(&model.BanRecord{}).
		Where("player = ? AND ip = ? AND active = ?", player, ip, true).
		Updates(map[string]interface{}{"active": false, "lifted_by": by, "lifted_at": &now}).Error
	if err != nil {
		return fmt.Errorf("更新封禁记录失败: %w", err)
	}
	return nil
}

func (s *ModerationService) publish(event string, data interface{}) {
	if s.publisher != nil {
		s.publisher.PublishEvent(sse.TopicBans, event, data)
	}
}

func invalidResult(action string, err error) mccontrol.CommandResult {
	return mccontrol.CommandResult{Action: action, ErrorKind: rcon.KindInvalidArgument, Error: err.Error()}
}
