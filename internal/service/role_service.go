package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
)

var ErrRoleNotFound = errors.New("角色不存在")

// RoleService 内置角色与Casbin策略
type RoleService struct{}

// NewRoleService 创建角色服务实例
func NewRoleService() *RoleService {
	return &RoleService{}
}

// GetRoleByName 根据名称获取角色
func (s *RoleService) GetRoleByName(name string) (*model.Role, error) {
	var role model.Role
	if err := db.DB.Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles 按等级从低到高列出全部角色
func (s *RoleService) ListRoles() ([]model.Role, error) {
	var roles []model.Role
	if err := db.DB.Order("level").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRolePermissions 获取角色的权限，包含从低等级继承的部分
func (s *RoleService) GetRolePermissions(roleName string) ([][]string, error) {
	enforcer := middleware.GetEnforcer()
	if enforcer == nil {
		return nil, errors.New("权限系统未初始化")
	}
	if _, err := s.GetRoleByName(roleName); err != nil {
		return nil, err
	}
	return enforcer.GetImplicitPermissionsForUser(roleName)
}

// AddRolePermission 为角色追加接口权限
func (s *RoleService) AddRolePermission(roleName, path, method string) (bool, error) {
	enforcer := middleware.GetEnforcer()
	if enforcer == nil {
		return false, errors.New("权限系统未初始化")
	}
	if _, err := s.GetRoleByName(roleName); err != nil {
		return false, err
	}
	return enforcer.AddPolicy(roleName, path, strings.ToUpper(method))
}

// RemoveRolePermission 移除角色自身的接口权限，继承来的权限不受影响
func (s *RoleService) RemoveRolePermission(roleName, path, method string) (bool, error) {
	enforcer := middleware.GetEnforcer()
	if enforcer == nil {
		return false, errors.New("权限系统未初始化")
	}
	return enforcer.RemovePolicy(roleName, path, strings.ToUpper(method))
}

// roleDescriptions 内置角色及其说明
var roleDescriptions = map[string]string{
	model.RoleOwner:     "服主，拥有全部权限",
	model.RoleAdmin:     "管理员，可封禁玩家、修改世界、启停服务器",
	model.RoleModerator: "协管，可踢出玩家、发送消息、管理白名单",
	model.RoleVIP:       "VIP玩家，可查看白名单",
	model.RoleUser:      "普通用户",
}

// rolePolicies 每个等级新增的权限，更高等级通过角色继承获得低等级的权限
var rolePolicies = map[string][][2]string{
	model.RoleUser: {
		{"/api/v1/players", "GET"},
		{"/api/v1/server/status", "GET"},
	},
	model.RoleVIP: {
		{"/api/v1/whitelist", "GET"},
	},
	model.RoleModerator: {
		{"/api/v1/players/kick", "POST"},
		{"/api/v1/players/message", "POST"},
		{"/api/v1/whitelist/*", "POST"},
		{"/api/v1/bans", "GET"},
		{"/api/v1/audit", "GET"},
		{"/api/v1/server/events", "GET"},
	},
	model.RoleAdmin: {
		{"/api/v1/players/*", "POST"},
		{"/api/v1/world/*", "*"},
		{"/api/v1/server/*", "*"},
		{"/api/v1/rcon/session", "GET"},
		{"/api/v1/users", "GET"},
		{"/api/v1/users/*", "PUT"},
		{"/api/v1/roles", "GET"},
		{"/api/v1/realtime/announce", "POST"},
	},
	model.RoleOwner: {
		{"/*", "*"},
	},
}

// SetupInitialRoles 创建内置角色并重建默认策略，可重复执行
func (s *RoleService) SetupInitialRoles() error {
	for level, name := range model.RoleLevels {
		role, err := s.GetRoleByName(name)
		switch {
		case errors.Is(err, ErrRoleNotFound):
			role = &model.Role{Name: name}
		case err != nil:
			return fmt.Errorf("检查角色 %s 失败: %w", name, err)
		}
		role.Level = level
		role.Description = roleDescriptions[name]
		if err := db.DB.Save(role).Error; err != nil {
			return fmt.Errorf("保存角色 %s 失败: %w", name, err)
		}
	}

	enforcer := middleware.GetEnforcer()
	if enforcer == nil {
		return errors.New("权限系统未初始化")
	}
	enforcer.ClearPolicy()

	for i, name := range model.RoleLevels {
		for _, policy := range rolePolicies[name] {
			if _, err := enforcer.AddPolicy(name, policy[0], policy[1]); err != nil {
				return fmt.Errorf("添加权限失败: %w", err)
			}
		}
		// 高等级继承低一级的全部权限
		if i > 0 {
			if _, err := enforcer.AddGroupingPolicy(name, model.RoleLevels[i-1]); err != nil {
				return fmt.Errorf("设置角色继承失败: %w", err)
			}
		}
	}

	return enforcer.SavePolicy()
}
