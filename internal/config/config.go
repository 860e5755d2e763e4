package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

// Config 存储应用程序配置
type Config struct {
	// 服务器配置
	ServerPort     int
	ServerHost     string
	Mode           string
	AllowedOrigins []string
	LogLevel       string

	// 数据库配置
	DBType     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string // 用于SQLite

	// JWT配置
	JWTSecret         string
	JWTExpireTime     time.Duration
	JWTRefreshTime    time.Duration
	JWTIssuer         string
	JWTCookieSecure   bool
	JWTCookieHTTPOnly bool

	// 路径配置
	CasbinModelPath string
	LogPath         string
	SwaggerPath     string

	// RCON配置
	RconHost        string
	RconPort        int
	RconPassword    string
	RconTimeout     time.Duration
	RconIdleTimeout time.Duration // 0 表示不关闭空闲连接

	// Minecraft 状态查询
	MinecraftHost       string
	MinecraftPort       int
	StatusCheckInterval time.Duration

	// Kubernetes配置
	K8sEnabled              bool
	K8sRunMode              string
	K8sKubeconfigPath       string
	K8sNamespace            string
	K8sStatefulSet          string
	K8sPodLabelSelector     string
	K8sServiceLabelSelector string
	K8sContainerName        string
	LogEventsEnabled        bool // 从Pod日志中识别玩家事件

	// 管理配置
	BanCheckInterval   time.Duration
	ConsoleRateLimit   float64 // 每个控制台连接每秒允许的命令数
	ConsoleRateBurst   int
	ConsoleAllowedRole []string
}

// GetEnv 从环境变量中获取字符串值，如果不存在则返回默认值
func GetEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetEnvInt 从环境变量中获取整数值，如果不存在或解析失败则返回默认值
func GetEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetEnvFloat 从环境变量中获取浮点值，如果不存在或解析失败则返回默认值
func GetEnvFloat(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

// GetEnvBool 从环境变量中获取布尔值，如果不存在则返回默认值
func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetEnvDuration 从环境变量中获取时间间隔，如果不存在则返回默认值
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	durationValue, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return durationValue
}

// GetEnvSeconds 读取以秒为单位的时间，兼容 "5.0" 与 "5s" 两种写法
func GetEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds <= 0 {
			return defaultValue
		}
		return time.Duration(seconds * float64(time.Second))
	}
	return GetEnvDuration(key, defaultValue)
}

// GetEnvList 读取逗号分隔的列表
func GetEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	rconHost := GetEnv("RCON_HOST", "localhost")

	return &Config{
		// 服务器配置
		ServerPort:     GetEnvInt("SERVER_PORT", 8080),
		ServerHost:     GetEnv("SERVER_HOST", "0.0.0.0"),
		Mode:           GetEnv("GIN_MODE", "debug"),
		AllowedOrigins: GetEnvList("ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),

		// 数据库配置
		DBType:     GetEnv("DB_TYPE", "sqlite"),
		DBHost:     GetEnv("DB_HOST", "localhost"),
		DBPort:     GetEnvInt("DB_PORT", 3306),
		DBUser:     GetEnv("DB_USER", "root"),
		DBPassword: GetEnv("DB_PASSWORD", "password"),
		DBName:     GetEnv("DB_NAME", "mcbot"),
		DBPath:     GetEnv("DB_PATH", "mcbot.db"),

		// JWT配置
		JWTSecret:         GetEnv("JWT_SECRET", "your-secret-key"),
		JWTExpireTime:     GetEnvDuration("JWT_EXPIRE_TIME", 24*time.Hour),
		JWTRefreshTime:    GetEnvDuration("JWT_REFRESH_TIME", 7*24*time.Hour),
		JWTIssuer:         GetEnv("JWT_ISSUER", "mcbot"),
		JWTCookieSecure:   GetEnvBool("JWT_COOKIE_SECURE", false),
		JWTCookieHTTPOnly: GetEnvBool("JWT_COOKIE_HTTP_ONLY", true),

		// 路径配置，模型文件不存在时使用内置模型
		CasbinModelPath: GetEnv("CASBIN_MODEL_PATH", ""),
		LogPath:         GetEnv("LOG_PATH", "logs"),
		SwaggerPath:     GetEnv("SWAGGER_PATH", "docs/swagger"),

		// RCON配置
		RconHost:        rconHost,
		RconPort:        GetEnvInt("RCON_PORT", rcon.DefaultPort),
		RconPassword:    GetEnv("RCON_PASSWORD", ""),
		RconTimeout:     GetEnvSeconds("RCON_TIMEOUT", rcon.DefaultTimeout),
		RconIdleTimeout: GetEnvDuration("RCON_IDLE_TIMEOUT", 10*time.Minute),

		// Minecraft 状态查询
		MinecraftHost:       GetEnv("MINECRAFT_HOST", rconHost),
		MinecraftPort:       GetEnvInt("MINECRAFT_PORT", 25565),
		StatusCheckInterval: GetEnvDuration("STATUS_CHECK_INTERVAL", 30*time.Second),

		// Kubernetes配置
		K8sEnabled:              GetEnvBool("K8S_ENABLED", false),
		K8sRunMode:              GetEnv("K8S_RUN_MODE", "InCluster"),
		K8sKubeconfigPath:       GetEnv("K8S_KUBECONFIG", ""),
		K8sNamespace:            GetEnv("K8S_NAMESPACE", "minecraft"),
		K8sStatefulSet:          GetEnv("K8S_STATEFULSET", "minecraft"),
		K8sPodLabelSelector:     GetEnv("K8S_POD_SELECTOR", "app=minecraft"),
		K8sServiceLabelSelector: GetEnv("K8S_SERVICE_SELECTOR", ""),
		K8sContainerName:        GetEnv("K8S_CONTAINER", "minecraft"),
		LogEventsEnabled:        GetEnvBool("LOG_EVENTS_ENABLED", true),

		// 管理配置
		BanCheckInterval:   GetEnvDuration("BAN_CHECK_INTERVAL", time.Minute),
		ConsoleRateLimit:   GetEnvFloat("CONSOLE_RATE_LIMIT", 2),
		ConsoleRateBurst:   GetEnvInt("CONSOLE_RATE_BURST", 5),
		ConsoleAllowedRole: GetEnvList("CONSOLE_ALLOWED_ROLES", []string{"owner", "admin"}),
	}
}

// GetDBConnString 根据数据库类型返回相应的连接字符串
func (c *Config) GetDBConnString() string {
	switch c.DBType {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	case "sqlite":
		return c.DBPath
	default:
		return c.DBPath
	}
}

// RconConfig 返回连接游戏服务器的RCON配置
func (c *Config) RconConfig() rcon.Config {
	return rcon.Config{
		Host:     c.RconHost,
		Port:     c.RconPort,
		Password: c.RconPassword,
		Timeout:  c.RconTimeout,
	}
}

// K8sConfig 返回服务器控制器使用的Kubernetes配置
func (c *Config) K8sConfig() mccontrol.K8sConfig {
	return mccontrol.K8sConfig{
		RunMode:              c.K8sRunMode,
		KubeconfigPath:       c.K8sKubeconfigPath,
		Namespace:            c.K8sNamespace,
		StatefulSetName:      c.K8sStatefulSet,
		PodLabelSelector:     c.K8sPodLabelSelector,
		ServiceLabelSelector: c.K8sServiceLabelSelector,
		ContainerName:        c.K8sContainerName,
	}
}

// Redacted 返回隐藏了所有密钥的配置副本，用于启动日志
func (c *Config) Redacted() Config {
	redacted := *c
	redacted.DBPassword = mask(c.DBPassword)
	redacted.JWTSecret = mask(c.JWTSecret)
	redacted.RconPassword = mask(c.RconPassword)
	return redacted
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}
