package middleware

import (
	"net/http"
	"os"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/model"
)

var (
	enforcer *casbin.Enforcer
)

// defaultModel 内置的RBAC模型，g 定义角色继承，路径支持 keyMatch2 通配
const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// InitCasbin 初始化Casbin，modelPath 为空或文件不存在时使用内置模型
func InitCasbin(modelPath string) error {
	// 创建适配器
	adapter, err := gormadapter.NewAdapterByDB(db.DB)
	if err != nil {
		return err
	}

	m, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	// 创建执行器
	enforcer, err = casbin.NewEnforcer(m, adapter)
	if err != nil {
		return err
	}

	// 加载策略
	if err := enforcer.LoadPolicy(); err != nil {
		return err
	}

	return nil
}

func loadModel(modelPath string) (casbinmodel.Model, error) {
	if modelPath != "" {
		if _, err := os.Stat(modelPath); err == nil {
			return casbinmodel.NewModelFromFile(modelPath)
		}
		log.WithField("path", modelPath).Warn("Casbin模型文件不存在，使用内置模型")
	}
	return casbinmodel.NewModelFromString(defaultModel)
}

// GetEnforcer 获取Casbin执行器
func GetEnforcer() *casbin.Enforcer {
	return enforcer
}

// Authorize 按角色、请求路径和方法鉴权，拒绝的请求会记录日志
func Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforcer == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse(500, "权限系统未初始化"))
			return
		}

		role := GetCurrentRoleName(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse(401, "未授权: 无法获取用户角色"))
			return
		}

		ok, err := enforcer.Enforce(role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse(500, "权限检查失败: "+err.Error()))
			return
		}
		if !ok {
			log.WithFields(log.Fields{
				"user":   GetCurrentUsername(c),
				"role":   role,
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).Info("拒绝越权请求")
			c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse(403, "权限不足: 无权访问此资源"))
			return
		}

		c.Next()
	}
}
