package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
)

// 服务端推送的主题
const (
	TopicRcon   = "rcon"   // 每条RCON命令的执行结果
	TopicServer = "server" // 服务器生命周期与状态变化
	TopicBans   = "bans"   // 封禁与解封
)

// topicMinRole 订阅主题所需的最低角色，命令输出和封禁记录只对协管以上开放
var topicMinRole = map[string]string{
	TopicRcon:   model.RoleModerator,
	TopicServer: model.RoleUser,
	TopicBans:   model.RoleModerator,
}

const (
	historySize   = 64
	clientBuffer  = 256
	keepAliveTick = 15 * time.Second
)

var ErrUnknownTopic = errors.New("未知的主题")

// Client SSE客户端
type Client struct {
	ID        string
	Channel   chan []byte
	Username  string
	RoleName  string
	Topics    map[string]bool
	CreatedAt time.Time
}

func (c *Client) subscribed(topic string) bool {
	return c.Topics[topic]
}

// Message 推送的事件，ID 在进程内单调递增，客户端重连时用 Last-Event-ID 补发
type Message struct {
	ID    uint64      `json:"id"`
	Topic string      `json:"topic"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	Time  time.Time   `json:"time"`
}

// Broker 管理所有SSE连接并保留每个主题最近的事件
type Broker struct {
	mutex   sync.RWMutex
	clients map[string]*Client
	history map[string][]*Message
	seq     uint64
	once    sync.Once
}

// 全局SSE代理
var GlobalBroker = NewBroker()

// NewBroker 创建新的SSE代理
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[string]*Client),
		history: make(map[string][]*Message),
	}
}

// Start 启动心跳，防止反向代理断开空闲连接
func (b *Broker) Start() {
	b.once.Do(func() {
		go func() {
			ticker := time.NewTicker(keepAliveTick)
			defer ticker.Stop()
			for range ticker.C {
				b.keepAlive()
			}
		}()
	})
}

func (b *Broker) keepAlive() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, client := range b.clients {
		b.deliverLocked(client, []byte(": ping\n\n"))
	}
}

// PublishEvent 发布事件到指定主题，不会阻塞调用方
func (b *Broker) PublishEvent(topic, event string, data interface{}) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.seq++
	msg := &Message{ID: b.seq, Topic: topic, Event: event, Data: data, Time: time.Now()}
	hist := append(b.history[topic], msg)
	if len(hist) > historySize {
		hist = hist[len(hist)-historySize:]
	}
	b.history[topic] = hist

	frame, err := format(msg)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"topic": topic, "event": event}).Error("编码SSE消息失败")
		return
	}
	for _, client := range b.clients {
		if client.subscribed(topic) {
			b.deliverLocked(client, frame)
		}
	}
}

// deliverLocked 非阻塞写入，缓冲区满的客户端直接断开，由其重连后补发
func (b *Broker) deliverLocked(client *Client, frame []byte) {
	select {
	case client.Channel <- frame:
	default:
		log.WithFields(log.Fields{"client": client.ID, "user": client.Username}).Warn("SSE客户端消费过慢，断开连接")
		b.removeLocked(client.ID)
	}
}

func (b *Broker) register(client *Client, lastEventID uint64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.clients[client.ID] = client

	if lastEventID == 0 {
		return
	}
	for _, msg := range b.sinceLocked(client.Topics, lastEventID) {
		if frame, err := format(msg); err == nil {
			b.deliverLocked(client, frame)
		}
	}
}

func (b *Broker) unregister(id string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.removeLocked(id)
}

func (b *Broker) removeLocked(id string) {
	if client, ok := b.clients[id]; ok {
		close(client.Channel)
		delete(b.clients, id)
	}
}

// sinceLocked 按ID顺序返回订阅主题中晚于 lastID 的历史事件
func (b *Broker) sinceLocked(topics map[string]bool, lastID uint64) []*Message {
	var out []*Message
	for topic := range topics {
		for _, msg := range b.history[topic] {
			if msg.ID > lastID {
				out = append(out, msg)
			}
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// format 编码为 text/event-stream 帧
func format(msg *Message) ([]byte, error) {
	data, err := sonic.Marshal(msg.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "id: %d\n", msg.ID)
	if msg.Event != "" {
		fmt.Fprintf(&buf, "event: %s.%s\n", msg.Topic, msg.Event)
	}
	fmt.Fprintf(&buf, "data: %s\n\n", data)
	return buf.Bytes(), nil
}

// allowedTopics 解析 topics 参数，空表示当前角色可见的全部主题
func allowedTopics(role, requested string) (map[string]bool, error) {
	level := model.RoleLevel(role)
	topics := make(map[string]bool)
	if strings.TrimSpace(requested) == "" {
		for topic, min := range topicMinRole {
			if level >= model.RoleLevel(min) {
				topics[topic] = true
			}
		}
		return topics, nil
	}
	for _, topic := range strings.Split(requested, ",") {
		topic = strings.TrimSpace(topic)
		min, ok := topicMinRole[topic]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
		}
		if level < model.RoleLevel(min) {
			return nil, fmt.Errorf("角色 %s 无权订阅主题 %s", role, topic)
		}
		topics[topic] = true
	}
	return topics, nil
}

// ServeHTTP 处理SSE HTTP连接
func (b *Broker) ServeHTTP(c *gin.Context) {
	username := middleware.GetCurrentUsername(c)
	role := middleware.GetCurrentRoleName(c)

	topics, err := allowedTopics(role, c.Query("topics"))
	if err != nil {
		status := 403
		if errors.Is(err, ErrUnknownTopic) {
			status = 400
		}
		c.JSON(status, model.ErrorResponse(status, err.Error()))
		return
	}

	lastID, _ := strconv.ParseUint(c.GetHeader("Last-Event-ID"), 10, 64)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Nginx特定头部，禁用代理缓冲

	client := &Client{
		ID:        uuid.New().String(),
		Channel:   make(chan []byte, clientBuffer),
		Username:  username,
		RoleName:  role,
		Topics:    topics,
		CreatedAt: time.Now(),
	}
	b.register(client, lastID)
	defer b.unregister(client.ID)

	log.WithFields(log.Fields{"client": client.ID, "user": username, "topics": len(topics)}).Info("SSE客户端已连接")

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case frame, ok := <-client.Channel:
			if !ok {
				return false
			}
			w.Write(frame)
			return true
		}
	})

	log.WithFields(log.Fields{"client": client.ID, "user": username}).Info("SSE客户端已断开连接")
}

// GetClientCount 获取连接的客户端总数
func (b *Broker) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// GetTopicClientCount 获取订阅了特定主题的客户端数
func (b *Broker) GetTopicClientCount(topic string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	n := 0
	for _, client := range b.clients {
		if client.subscribed(topic) {
			n++
		}
	}
	return n
}

// HandleSSE 处理SSE请求
func HandleSSE(c *gin.Context) {
	GlobalBroker.ServeHTTP(c)
}
