package model

import (
	"time"

	"gorm.io/gorm"
)

// User 面板账号，可以绑定一个游戏内玩家名
type User struct {
	gorm.Model
	Username   string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Password   string    `gorm:"size:100;not null" json:"-"`
	Email      string    `gorm:"size:100;uniqueIndex" json:"email"`
	PlayerName string    `gorm:"size:16;index" json:"player_name,omitempty"`
	RoleID     uint      `json:"-"`
	Role       Role      `gorm:"foreignKey:RoleID" json:"role"`
	LastLogin  time.Time `json:"last_login"`
	Disabled   bool      `gorm:"not null;default:false" json:"disabled"`
}

// Role 内置权限等级，Level 越大权限越高
type Role struct {
	gorm.Model
	Name        string `gorm:"size:20;not null;uniqueIndex" json:"name"`
	Level       int    `gorm:"not null;index" json:"level"`
	Description string `gorm:"size:200" json:"description"`
}

// UserLogin 用户登录请求
type UserLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserRegister 用户注册请求
type UserRegister struct {
	Username   string `json:"username" binding:"required,min=3,max=30"`
	Password   string `json:"password" binding:"required,min=6"`
	Email      string `json:"email" binding:"required,email"`
	PlayerName string `json:"player_name" binding:"omitempty,max=16"`
}

// PasswordChange 修改密码请求
type PasswordChange struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// RoleAssign 调整用户角色请求
type RoleAssign struct {
	Role string `json:"role" binding:"required"`
}

// PermissionRequest 为角色增减接口权限
type PermissionRequest struct {
	Path   string `json:"path" binding:"required"`
	Method string `json:"method" binding:"required"`
}

// UserResponse 用户响应数据（不包含敏感信息）
type UserResponse struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	PlayerName string    `json:"player_name,omitempty"`
	Role       string    `json:"role"`
	RoleLevel  int       `json:"role_level"`
	Disabled   bool      `json:"disabled"`
	CreatedAt  time.Time `json:"created_at"`
	LastLogin  time.Time `json:"last_login"`
}

// ToUserResponse 将User转换为UserResponse
func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		PlayerName: u.PlayerName,
		Role:       u.Role.Name,
		RoleLevel:  u.Role.Level,
		Disabled:   u.Disabled,
		CreatedAt:  u.CreatedAt,
		LastLogin:  u.LastLogin,
	}
}
