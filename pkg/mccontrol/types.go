package mccontrol

import (
	"context"
	"time"

	"city.newnan/mcbot/pkg/rcon"
)

// Executor 命令执行器接口，SessionManager 是其标准实现
type Executor interface {
	// Execute 执行一条原始命令，传输层错误体现在结果中而不是返回值
	Execute(ctx context.Context, command string) CommandResult
}

// SessionState 会话状态
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 以名称形式序列化状态
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CommandResult 一次命令执行的结果，仅在内存中传递，由调用方决定是否落库
type CommandResult struct {
	Action    string         `json:"action,omitempty"`     // 领域动作名，如 kick、ban
	Command   string         `json:"command"`              // 实际发送的命令
	Success   bool           `json:"success"`              // 是否成功
	Output    string         `json:"output"`               // 服务器原始输出
	ErrorKind rcon.ErrorKind `json:"error_kind,omitempty"` // 失败时的错误类型
	Error     string         `json:"error,omitempty"`      // 失败详情
	LatencyMs int64          `json:"latency_ms"`           // 耗时，单位：毫秒
}

// Err 把失败的结果还原为 error，成功时返回 nil
func (r CommandResult) Err() error {
	if r.Success {
		return nil
	}
	return &CommandError{Action: r.Action, Kind: r.ErrorKind, Detail: r.Error}
}

// CommandError 命令失败时的错误
type CommandError struct {
	Action string
	Kind   rcon.ErrorKind
	Detail string
}

func (e *CommandError) Error() string {
	msg := e.Kind.Message()
	if e.Action != "" {
		msg = e.Action + ": " + msg
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// SessionInfo 会话的只读快照
type SessionInfo struct {
	Endpoint     string       `json:"endpoint"`
	State        SessionState `json:"state"`
	LastActivity time.Time    `json:"last_activity"`
}

// PlayerList list 命令的解析结果
type PlayerList struct {
	Online int      `json:"online"` // 在线人数，无法解析时为 -1
	Max    int      `json:"max"`    // 最大人数，无法解析时为 -1
	Names  []string `json:"names"`  // 在线玩家名
}

// PlayersResult 带解析结果的 list 命令结果
type PlayersResult struct {
	CommandResult
	Players PlayerList `json:"players"`
}

// WhitelistResult 带解析结果的 whitelist list 命令结果
type WhitelistResult struct {
	CommandResult
	Names []string `json:"names"`
}

// BanResult 带过期时间的封禁结果
type BanResult struct {
	CommandResult
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil 表示永久封禁
}

// MinecraftStatusData 相关结构体 - 用于解析Ping返回的JSON数据

// MCModInfo 表示Minecraft模组信息
type MCModInfo struct {
	ID string `json:"modid"` // 模组ID
}

// MCOnlinePlayer 表示在线玩家信息
type MCOnlinePlayer struct {
	ID   string `json:"id"`   // 玩家UUID
	Name string `json:"name"` // 玩家名称
}

// Version 表示服务器版本信息
type Version struct {
	Name     string `json:"name"`     // 版本名称
	Protocol int    `json:"protocol"` // 协议版本
}

// Players 表示玩家信息
type Players struct {
	Max    int              `json:"max"`    // 最大玩家数
	Online int              `json:"online"` // 在线玩家数
	Sample []MCOnlinePlayer `json:"sample"` // 在线玩家样本
}

// ModInfo 表示模组信息
type ModInfo struct {
	Type    string      `json:"type"`    // 模组类型
	ModList []MCModInfo `json:"modList"` // 模组列表
}

// MinecraftStatus 表示Minecraft服务器状态的完整数据结构
type MinecraftStatus struct {
	Version     Version     `json:"version"`     // 版本信息
	Players     Players     `json:"players"`     // 玩家信息
	Description interface{} `json:"description"` // 服务器描述，可能是字符串或对象
	Favicon     string      `json:"favicon"`     // 服务器图标（Base64编码）
	ModInfo     ModInfo     `json:"modinfo"`     // 模组信息
}

// GetDescriptionText 从不同格式的描述字段中提取纯文本
func (m *MinecraftStatus) GetDescriptionText() string {
	switch desc := m.Description.(type) {
	case string:
		return desc
	case map[string]interface{}:
		text, _ := desc["text"].(string)
		if extra, ok := desc["extra"].([]interface{}); ok {
			for _, item := range extra {
				switch e := item.(type) {
				case string:
					text += e
				case map[string]interface{}:
					if t, ok := e["text"].(string); ok {
						text += t
					}
				}
			}
		}
		return text
	}
	return ""
}

// ServerStatus 包含Minecraft服务器状态信息
type ServerStatus struct {
	// 基本状态

	Online      bool      `json:"online"`       // 服务器是否在线
	LastChecked time.Time `json:"last_checked"` // 最后检查时间
	LastError   string    `json:"last_error"`   // 最后一次错误信息

	// 服务器信息

	Players     int      `json:"players"`      // 当前在线玩家数量
	MaxPlayers  int      `json:"max_players"`  // 最大玩家数量
	PlayerNames []string `json:"player_names"` // 在线玩家样本
	Version     string   `json:"version"`      // 服务器版本
	Description string   `json:"description"`  // 服务器描述
	Latency     int      `json:"latency"`      // 延迟，单位：毫秒

	// Kubernetes信息

	PodName    string `json:"pod_name,omitempty"`    // Pod名称
	PodStatus  string `json:"pod_status,omitempty"`  // Pod状态
	ClusterIP  string `json:"cluster_ip,omitempty"`  // 集群内IP
	ExternalIP string `json:"external_ip,omitempty"` // 外部IP（如果有）
}

// LogOptions 包含日志获取的配置选项
type LogOptions struct {
	TailLines *int64     // 获取最近多少行日志，为nil则不限制行数
	SinceTime *time.Time // 从何时开始获取日志，为nil则不限制起始时间
	Container string     // 容器名称，为空则使用默认容器
	Previous  bool       // 是否获取以前终止的容器的日志
}

// K8sConfig 包含Kubernetes配置选项
type K8sConfig struct {
	// 连接配置

	RunMode        string // 运行模式：InCluster（集群内）或OutOfCluster（集群外）
	KubeconfigPath string // 当RunMode为OutOfCluster时使用的kubeconfig文件路径
	Namespace      string // 命名空间

	// 资源选择器

	StatefulSetName      string // 承载服务器的StatefulSet名称，用于启停
	PodLabelSelector     string // 用于选择Pod的标签（如app=minecraft）
	ServiceLabelSelector string // 用于选择Service的标签，为空则使用PodLabelSelector

	// 容器配置

	ContainerName string // 容器名称（在Pod中）
}
