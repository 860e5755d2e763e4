package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"city.newnan/mcbot/pkg/mccontrol"
)

const (
	heartbeatTimeout = 60 * time.Second
	sendBuffer       = 256
)

// 设置 websocket 连接的配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 CORS 中间件和 JWT 控制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 一个控制台连接
type Client struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Username string
	RoleName string
	Manager  *Manager

	mu         sync.Mutex
	closed     bool
	lastPingAt time.Time
	// 控制台命令限流
	limiter *rate.Limiter
}

// send 非阻塞投递，连接已关闭或缓冲区已满时返回 false
func (c *Client) send(msgType string, content interface{}) bool {
	data := MarshalMessage(msgType, content)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastPingAt = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleSince(t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPingAt.Before(t)
}

// ConsoleExecutor 执行控制台中输入的RCON命令
type ConsoleExecutor interface {
	ExecuteConsole(ctx context.Context, username, role, command string) mccontrol.CommandResult
}

// Manager 管理控制台连接，有控制台权限的连接共享同一份命令输出
type Manager struct {
	mutex   sync.RWMutex
	clients map[string]*Client

	console      ConsoleExecutor
	consoleRoles map[string]bool
	rateLimit    rate.Limit
	rateBurst    int
	// 单条控制台命令的超时时间
	commandTimeout time.Duration

	once sync.Once
}

// 全局 WebSocket 管理器
var GlobalManager = NewManager()

// NewManager 创建新的管理器
func NewManager() *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		rateLimit:      rate.Inf,
		rateBurst:      1,
		commandTimeout: 30 * time.Second,
	}
}

// SetConsole 启用控制台命令，只有 allowedRoles 中的角色可以执行，每个连接按 perSecond/burst 限流
func (m *Manager) SetConsole(exec ConsoleExecutor, allowedRoles []string, perSecond float64, burst int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.console = exec
	m.consoleRoles = make(map[string]bool, len(allowedRoles))
	for _, role := range allowedRoles {
		m.consoleRoles[role] = true
	}
	m.rateLimit = rate.Inf
	if perSecond > 0 {
		m.rateLimit = rate.Limit(perSecond)
	}
	m.rateBurst = burst
	if m.rateBurst < 1 {
		m.rateBurst = 1
	}
}

// newLimiter 为新连接创建限流器
func (m *Manager) newLimiter() *rate.Limiter {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return rate.NewLimiter(m.rateLimit, m.rateBurst)
}

// consoleFor 返回该角色可用的控制台执行器
func (m *Manager) consoleFor(role string) (ConsoleExecutor, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.console == nil {
		return nil, false
	}
	return m.console, m.consoleRoles[role]
}

func (m *Manager) isOperator(c *Client) bool {
	return m.console != nil && m.consoleRoles[c.RoleName]
}

// Start 启动心跳检测
func (m *Manager) Start() {
	m.once.Do(func() {
		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				m.checkHeartbeats()
			}
		}()
	})
}

// Register 注册客户端，控制台用户上线时通知其他控制台用户
func (m *Manager) Register(client *Client) {
	client.touch()
	m.mutex.Lock()
	m.clients[client.ID] = client
	operator := m.isOperator(client)
	m.mutex.Unlock()

	log.WithFields(log.Fields{"client": client.ID, "user": client.Username, "role": client.RoleName}).Info("WebSocket客户端注册")
	if !operator {
		return
	}
	m.broadcast(func(c *Client) bool { return c.ID != client.ID && m.isOperator(c) },
		MessageTypeNotify, Presence{Event: "join", User: client.Username, Role: client.RoleName})
}

// Unregister 注销客户端，可重复调用
func (m *Manager) Unregister(client *Client) {
	m.mutex.Lock()
	_, ok := m.clients[client.ID]
	delete(m.clients, client.ID)
	operator := m.isOperator(client)
	m.mutex.Unlock()

	client.close()
	if !ok {
		return
	}
	log.WithFields(log.Fields{"client": client.ID, "user": client.Username}).Info("WebSocket客户端注销")
	if !operator {
		return
	}
	m.broadcast(func(c *Client) bool { return m.isOperator(c) },
		MessageTypeNotify, Presence{Event: "leave", User: client.Username, Role: client.RoleName})
}

// broadcast 向满足条件的客户端投递，投递失败的慢连接会被断开
func (m *Manager) broadcast(match func(*Client) bool, msgType string, content interface{}) int {
	m.mutex.RLock()
	var targets, slow []*Client
	for _, c := range m.clients {
		if match(c) {
			targets = append(targets, c)
		}
	}
	m.mutex.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.send(msgType, content) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		log.WithField("client", c.ID).Warn("WebSocket客户端发送缓冲区已满，断开连接")
		m.mutex.Lock()
		delete(m.clients, c.ID)
		m.mutex.Unlock()
		c.close()
	}
	return delivered
}

// shareResult 将一条控制台命令的结果推送给其他控制台用户
func (m *Manager) shareResult(from *Client, result mccontrol.CommandResult) {
	m.broadcast(func(c *Client) bool { return c.ID != from.ID && m.isOperator(c) },
		MessageTypeConsole, ConsoleEcho{User: from.Username, Result: result})
}

// Announce 向所有连接推送公告，返回送达的连接数
func (m *Manager) Announce(from, text string) int {
	return m.broadcast(func(*Client) bool { return true },
		MessageTypeNotify, Announcement{From: from, Message: text, Time: time.Now()})
}

// checkHeartbeats 断开超时未响应的客户端
func (m *Manager) checkHeartbeats() {
	deadline := time.Now().Add(-heartbeatTimeout)

	m.mutex.RLock()
	var stale []*Client
	for _, c := range m.clients {
		if c.idleSince(deadline) {
			stale = append(stale, c)
		}
	}
	m.mutex.RUnlock()

	for _, c := range stale {
		log.WithField("client", c.ID).Warn("客户端心跳超时，正在断开连接")
		if c.Conn != nil {
			c.Conn.Close()
		}
		m.Unregister(c)
	}
}

// GetClientCount 获取当前连接数
func (m *Manager) GetClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// Operators 当前在线的控制台用户名，去重
func (m *Manager) Operators() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, c := range m.clients {
		if m.isOperator(c) && !seen[c.Username] {
			seen[c.Username] = true
			names = append(names, c.Username)
		}
	}
	return names
}
