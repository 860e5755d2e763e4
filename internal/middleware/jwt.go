package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/internal/model"
)

// 上下文中保存的当前用户信息
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRoleName = "role_name"
)

// JWTClaims 自定义JWT载荷
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID     uint   `json:"uid"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	PlayerName string `json:"player,omitempty"`
}

// GenerateToken 签发Token，角色写入载荷，变更后需要刷新才生效
func GenerateToken(user model.User, cfg *config.Config) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWTExpireTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    cfg.JWTIssuer,
			Subject:   user.Username,
		},
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role.Name,
		PlayerName: user.PlayerName,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并校验Token
func ParseToken(tokenString string, cfg *config.Config) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的Token")
}

// tokenFromRequest 依次从 Authorization 头、Cookie 和 token 查询参数读取，
// 浏览器的 WebSocket 与 EventSource 无法设置请求头
func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// JWTAuth JWT认证中间件
func JWTAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse(401, "未授权: 缺少Token"))
			return
		}

		claims, err := ParseToken(tokenString, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse(401, "未授权: "+err.Error()))
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxRoleName, claims.Role)
		c.Next()
	}
}

// GetCurrentUserID 从上下文中获取当前用户ID
func GetCurrentUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

// GetCurrentUsername 从上下文中获取当前用户名
func GetCurrentUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

// GetCurrentRoleName 从上下文中获取当前用户角色
func GetCurrentRoleName(c *gin.Context) string {
	return c.GetString(ctxRoleName)
}

