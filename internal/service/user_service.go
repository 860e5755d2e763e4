package service

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/pkg/mccontrol"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrUserExists        = errors.New("用户名或邮箱已存在")
	ErrBadCredentials    = errors.New("用户名或密码错误")
	ErrUserDisabled      = errors.New("账号已禁用")
	ErrInsufficientLevel = errors.New("只能管理比自己等级低的用户")
)

// UserService 面板账号管理
type UserService struct {
	Config *config.Config
}

// NewUserService 创建用户服务实例
func NewUserService(cfg *config.Config) *UserService {
	return &UserService{Config: cfg}
}

// Register 注册新用户，第一个注册的用户成为服主
func (s *UserService) Register(req model.UserRegister) (*model.User, string, error) {
	if req.PlayerName != "" && !mccontrol.ValidPlayerName(req.PlayerName) {
		return nil, "", fmt.Errorf("%w: 玩家名 %q", mccontrol.ErrInvalidArgument, req.PlayerName)
	}

	var count int64
	if err := db.DB.Model(&model.User{}).Where("username = ? OR email = ?", req.Username, req.Email).Count(&count).Error; err != nil {
		return nil, "", err
	}
	if count > 0 {
		return nil, "", ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	var user model.User
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&model.User{}).Count(&total).Error; err != nil {
			return err
		}
		roleName := model.RoleUser
		if total == 0 {
			roleName = model.RoleOwner
		}
		var role model.Role
		if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
			return fmt.Errorf("角色 %s 未初始化: %w", roleName, err)
		}

		user = model.User{
			Username:   req.Username,
			Password:   string(hashed),
			Email:      req.Email,
			PlayerName: req.PlayerName,
			RoleID:     role.ID,
			Role:       role,
			LastLogin:  time.Now(),
		}
		return tx.Omit("Role").Create(&user).Error
	})
	if err != nil {
		return nil, "", err
	}

	log.WithFields(log.Fields{"user": user.Username, "role": user.Role.Name}).Info("新用户注册")

	token, err := middleware.GenerateToken(user, s.Config)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Login 校验密码并签发Token
func (s *UserService) Login(req model.UserLogin) (*model.User, string, error) {
	var user model.User
	if err := db.DB.Preload("Role").Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrBadCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", ErrBadCredentials
	}
	if user.Disabled {
		return nil, "", ErrUserDisabled
	}

	user.LastLogin = time.Now()
	if err := db.DB.Model(&user).Update("last_login", user.LastLogin).Error; err != nil {
		return nil, "", err
	}

	token, err := middleware.GenerateToken(user, s.Config)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Refresh 重新读取用户并签发Token，角色变更和禁用在刷新时生效
func (s *UserService) Refresh(id uint) (string, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return "", err
	}
	if user.Disabled {
		return "", ErrUserDisabled
	}
	return middleware.GenerateToken(*user, s.Config)
}

// GetUserByID 根据ID获取用户
func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	var user model.User
	if err := db.DB.Preload("Role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ChangePassword 修改自己的密码
func (s *UserService) ChangePassword(id uint, req model.PasswordChange) error {
	user, err := s.GetUserByID(id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return ErrBadCredentials
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.DB.Model(user).Update("password", string(hashed)).Error
}

// ListUsers 分页列出用户，query 匹配用户名、邮箱或玩家名
func (s *UserService) ListUsers(page, pageSize int, query string) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	q := db.DB.Model(&model.User{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("username LIKE ? OR email LIKE ? OR player_name LIKE ?", like, like, like)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Role").Order("id").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// manageable 服主可以管理任何人，其他角色只能管理比自己等级低的用户
func manageable(actorRole string, target *model.User) error {
	if actorRole == model.RoleOwner {
		return nil
	}
	if model.RoleLevel(actorRole) <= target.Role.Level {
		return ErrInsufficientLevel
	}
	return nil
}

// AssignRole 调整用户角色，不能授予不低于自己的角色
func (s *UserService) AssignRole(actorRole string, userID uint, roleName string) (*model.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if err := manageable(actorRole, user); err != nil {
		return nil, err
	}
	role, err := NewRoleService().GetRoleByName(roleName)
	if err != nil {
		return nil, err
	}
	if actorRole != model.RoleOwner && role.Level >= model.RoleLevel(actorRole) {
		return nil, ErrInsufficientLevel
	}

	if err := db.DB.Model(user).Update("role_id", role.ID).Error; err != nil {
		return nil, err
	}
	user.RoleID = role.ID
	user.Role = *role

	log.WithFields(log.Fields{"user": user.Username, "role": role.Name, "by": actorRole}).Info("用户角色已变更")
	return user, nil
}

// SetDisabled 禁用或启用用户，已签发的Token在刷新时失效
func (s *UserService) SetDisabled(actorRole string, userID uint, disabled bool) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if err := manageable(actorRole, user); err != nil {
		return err
	}
	return db.DB.Model(user).Update("disabled", disabled).Error
}
