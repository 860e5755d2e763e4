package model

import (
	"time"

	"gorm.io/gorm"
)

// 权限等级对应的角色名，高等级继承低等级的全部权限
const (
	RoleUser      = "user"
	RoleVIP       = "vip"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleOwner     = "owner"
)

// RoleLevels 按权限从低到高排列的角色
var RoleLevels = []string{RoleUser, RoleVIP, RoleModerator, RoleAdmin, RoleOwner}

// RoleLevel 返回角色的权限等级，未知角色为 -1
func RoleLevel(name string) int {
	for i, role := range RoleLevels {
		if role == name {
			return i
		}
	}
	return -1
}

// AuditLog 每次通过面板或控制台执行的RCON命令
type AuditLog struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	CorrelationID string    `gorm:"size:36;index" json:"correlation_id"`
	Actor         string    `gorm:"size:50;index" json:"actor"`
	Source        string    `gorm:"size:20" json:"source"` // api、console、system
	Action        string    `gorm:"size:50;index" json:"action"`
	Target        string    `gorm:"size:64;index" json:"target,omitempty"`
	Command       string    `gorm:"size:1024" json:"command"`
	Success       bool      `json:"success"`
	ErrorKind     string    `gorm:"size:32" json:"error_kind,omitempty"`
	Output        string    `gorm:"type:text" json:"output"`
	LatencyMs     int64     `json:"latency_ms"`
}

// AuditFilter 审计日志查询条件
type AuditFilter struct {
	Actor   string `form:"actor"`
	Action  string `form:"action"`
	Target  string `form:"target"`
	Success *bool  `form:"success"`
}

// ServerEvent 服务器事件，包括生命周期操作和从日志中识别出的玩家事件
type ServerEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Actor     string    `gorm:"size:50" json:"actor"`
	Event     string    `gorm:"size:32;index" json:"event"` // start、stop、online、join、death、advancement 等
	Player    string    `gorm:"size:64;index" json:"player,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `gorm:"size:512" json:"detail,omitempty"`
}

// BanRecord 封禁记录，ExpiresAt 为空表示永久封禁
type BanRecord struct {
	gorm.Model
	Player    string     `gorm:"size:64;index;not null" json:"player"`
	IP        bool       `json:"ip"` // 是否为IP封禁
	Reason    string     `gorm:"size:256" json:"reason"`
	BannedBy  string     `gorm:"size:50" json:"banned_by"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	Active    bool       `gorm:"index;default:true" json:"active"`
	LiftedBy  string     `gorm:"size:50" json:"lifted_by,omitempty"`
	LiftedAt  *time.Time `json:"lifted_at,omitempty"`
}

// CommandRequest 原始命令请求
type CommandRequest struct {
	Command string `json:"command" binding:"required,max=1000"`
	Confirm bool   `json:"confirm"` // 危险命令需要显式确认
}

// PlayerActionRequest 针对玩家的操作请求
type PlayerActionRequest struct {
	Player string `json:"player" binding:"required"`
	Reason string `json:"reason"`
}

// BanRequest 封禁请求，Duration 形如 12h、7d、2w、1m，为空表示永久
type BanRequest struct {
	Player   string `json:"player" binding:"required"`
	Reason   string `json:"reason"`
	Duration string `json:"duration"`
	IP       bool   `json:"ip"` // 为 true 时 Player 必须是IP地址
}

// PardonRequest 解除封禁
type PardonRequest struct {
	Player string `json:"player" binding:"required"`
	IP     bool   `json:"ip"`
}

// MessageRequest 广播或私聊请求，Player 为空表示广播
type MessageRequest struct {
	Player  string `json:"player"`
	Message string `json:"message" binding:"required"`
}

// GamemodeRequest 修改游戏模式
type GamemodeRequest struct {
	Player string `json:"player" binding:"required"`
	Mode   string `json:"mode" binding:"required"`
}

// TeleportRequest 传送请求，Target 为玩家名或 "x y z"
type TeleportRequest struct {
	Player string `json:"player" binding:"required"`
	Target string `json:"target" binding:"required"`
}

// GiveRequest 给予物品
type GiveRequest struct {
	Player string `json:"player" binding:"required"`
	Item   string `json:"item" binding:"required"`
	Count  int    `json:"count"`
}

// WorldRequest 世界设置，Value 对应时间、天气或难度
type WorldRequest struct {
	Value    string `json:"value" binding:"required"`
	Duration int    `json:"duration"` // 仅天气使用，单位：秒
}

// AnnounceRequest 面板公告，InGame 为 true 时同时在游戏内广播
type AnnounceRequest struct {
	Message string `json:"message" binding:"required,max=256"`
	InGame  bool   `json:"in_game"`
}
