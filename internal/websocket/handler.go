package websocket

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/pkg/mccontrol"
)

// MessageType 消息类型
const (
	MessageTypePing     = "ping"     // 心跳消息
	MessageTypePong     = "pong"     // 心跳响应
	MessageTypeWelcome  = "welcome"  // 连接建立
	MessageTypeNotify   = "notify"   // 上下线与公告
	MessageTypeError    = "error"    // 错误
	MessageTypeCommand  = "command"  // 控制台RCON命令
	MessageTypeResponse = "response" // 自己命令的结果
	MessageTypeConsole  = "console"  // 其他控制台用户的命令结果
)

// Message WebSocket消息结构
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// Welcome 连接建立后的第一条消息
type Welcome struct {
	ClientID  string   `json:"client_id"`
	Console   bool     `json:"console"` // 是否可以执行命令
	Operators []string `json:"operators"`
}

// Presence 控制台用户上下线
type Presence struct {
	Event string `json:"event"` // join、leave
	User  string `json:"user"`
	Role  string `json:"role"`
}

// ConsoleEcho 共享控制台中其他人执行的命令
type ConsoleEcho struct {
	User   string                  `json:"user"`
	Result mccontrol.CommandResult `json:"result"`
}

// Announcement 管理员公告
type Announcement struct {
	From    string    `json:"from"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(c *gin.Context) {
	serve(c, GlobalManager)
}

func serve(c *gin.Context, m *Manager) {
	username := middleware.GetCurrentUsername(c)
	roleName := middleware.GetCurrentRoleName(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("升级WebSocket连接失败")
		return
	}

	client := &Client{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Username: username,
		RoleName: roleName,
		Manager:  m,
		limiter:  m.newLimiter(),
	}
	_, console := m.consoleFor(roleName)
	client.send(MessageTypeWelcome, Welcome{ClientID: client.ID, Console: console, Operators: m.Operators()})
	m.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump 从WebSocket连接读取消息
func (c *Client) readPump() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		c.Conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("client", c.ID).Warn("读取WebSocket消息错误")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		c.handleMessage(message)
	}
}

// writePump 向WebSocket连接写入消息，每条消息一个帧
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(data []byte) {
	c.touch()

	var message Message
	if err := sonic.Unmarshal(data, &message); err != nil {
		log.WithError(err).WithField("client", c.ID).Debug("解析消息失败")
		c.send(MessageTypeError, "无效的消息格式")
		return
	}

	switch message.Type {
	case MessageTypePing:
		c.send(MessageTypePong, nil)
	case MessageTypeCommand:
		c.handleCommand(message.Content)
	default:
		c.send(MessageTypeError, "不支持的消息类型")
	}
}

// handleCommand 通过RCON执行控制台命令，内容可以是字符串或 {"command": "..."}
func (c *Client) handleCommand(content interface{}) {
	var command string
	switch v := content.(type) {
	case string:
		command = v
	case map[string]interface{}:
		command, _ = v["command"].(string)
	}
	if strings.TrimSpace(command) == "" {
		c.send(MessageTypeError, "命令不能为空")
		return
	}

	console, allowed := c.Manager.consoleFor(c.RoleName)
	if console == nil {
		c.send(MessageTypeError, "控制台未启用")
		return
	}
	if !allowed {
		c.send(MessageTypeError, "权限不足，无法执行控制台命令")
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.send(MessageTypeError, "命令发送过于频繁，请稍后再试")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.commandTimeout)
	defer cancel()
	result := console.ExecuteConsole(ctx, c.Username, c.RoleName, command)
	c.send(MessageTypeResponse, result)
	c.Manager.shareResult(c, result)
}

// MarshalMessage 将消息编码为JSON
func MarshalMessage(msgType string, content interface{}) []byte {
	data, err := sonic.Marshal(Message{Type: msgType, Content: content})
	if err != nil {
		log.WithError(err).Error("编码消息失败")
		return []byte(`{"type":"error","content":"消息编码失败"}`)
	}
	return data
}
