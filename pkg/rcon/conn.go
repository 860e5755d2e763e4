package rcon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultPort        = 25575
	DefaultTimeout     = 5 * time.Second
	DefaultDialTimeout = 5 * time.Second
)

// Config 连接配置，在构造时读取一次
type Config struct {
	Host        string        // 服务器地址
	Port        int           // RCON端口
	Password    string        // RCON密码，不会出现在日志中
	Timeout     time.Duration // 单条命令超时
	DialTimeout time.Duration // 建立TCP连接的超时
}

// Address 返回 host:port
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Conn 持有到一个 RCON 端点的单条 TCP 连接
// Conn 不是并发安全的，同一时刻只能有一个调用方使用（LastActivity 除外）
type Conn struct {
	cfg  Config
	conn net.Conn

	nextID       int32        // 上一个分配的请求ID
	pending      atomic.Int32 // 正在等待响应的请求ID，0 表示没有
	lastActivity atomic.Int64 // 最后活动时间（UnixNano）

	logger *log.Entry
}

// NewConn 创建连接对象，不会立即建立连接
func NewConn(cfg Config) *Conn {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &Conn{
		cfg:    cfg,
		logger: log.WithField("endpoint", cfg.Address()),
	}
}

// Address 返回连接的目标端点
func (c *Conn) Address() string {
	return c.cfg.Address()
}

// Connect 建立TCP连接并完成认证
func (c *Conn) Connect(ctx context.Context) error {
	if err := c.Dial(ctx); err != nil {
		return err
	}
	if err := c.Authenticate(ctx); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Dial 建立TCP连接，已有的连接会被关闭
func (c *Conn) Dial(ctx context.Context) error {
	c.Close()

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", c.Address())
	if err != nil {
		return c.dialError(ctx, err)
	}

	c.conn = nc
	c.touch()
	c.logger.Debug("RCON TCP连接已建立")
	return nil
}

// Authenticate 发送 AUTH 包并等待认证结果
func (c *Conn) Authenticate(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("%w: 连接未建立", ErrConnectionLost)
	}

	id := c.allocID()
	stop := c.watch(ctx)
	defer stop()

	// 日志中只记录请求ID，密码不落日志
	c.logger.WithField("request_id", id).Debug("发送RCON认证请求")
	if err := WritePacket(c.conn, Packet{RequestID: id, Type: TypeAuth, Payload: c.cfg.Password}); err != nil {
		return c.ioError(ctx, err)
	}

	// 部分服务器会在认证响应前先发一个空的 RESPONSE_VALUE
	for skipped := 0; ; skipped++ {
		p, err := ReadPacket(c.conn)
		if err != nil {
			return c.ioError(ctx, err)
		}
		c.touch()

		if p.RequestID == -1 {
			return ErrAuthFailed
		}
		if p.Type == TypeCommandResponse && p.RequestID == id && skipped == 0 {
			continue
		}
		if p.Type != TypeAuthResponse || p.RequestID != id {
			return fmt.Errorf("%w: 认证响应异常 (id=%d, type=%d)", ErrProtocol, p.RequestID, p.Type)
		}

		c.logger.Debug("RCON认证成功")
		return nil
	}
}

// Send 发送一条命令并返回完整输出
// 命令包之后紧跟一个使用独立请求ID的空探测包，收到探测包的回显即视为输出结束
func (c *Conn) Send(ctx context.Context, command string) (string, error) {
	if c.conn == nil {
		return "", fmt.Errorf("%w: 连接未建立", ErrConnectionLost)
	}

	id := c.allocID()
	probeID := c.allocID()

	frame, err := Encode(Packet{RequestID: id, Type: TypeCommand, Payload: command})
	if err != nil {
		return "", err
	}
	probe, _ := Encode(Packet{RequestID: probeID, Type: TypeCommand})

	stop := c.watch(ctx)
	defer stop()

	c.pending.Store(id)
	defer c.pending.Store(0)

	c.logger.WithField("request_id", id).Debugf("发送RCON命令: %s", command)
	if _, err := c.conn.Write(append(frame, probe...)); err != nil {
		return "", c.ioError(ctx, err)
	}

	var output []byte
	for {
		p, err := ReadPacket(c.conn)
		if err != nil {
			return "", c.ioError(ctx, err)
		}
		c.touch()

		switch {
		case p.RequestID == probeID:
			return string(output), nil
		case p.RequestID == id && p.Type == TypeCommandResponse:
			output = append(output, p.Payload...)
		default:
			return "", fmt.Errorf("%w: 期望请求ID %d，收到 (id=%d, type=%d)", ErrProtocol, id, p.RequestID, p.Type)
		}
	}
}

// Close 关闭底层连接
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.pending.Store(0)
	return err
}

// LastActivity 返回最后一次成功读写的时间
func (c *Conn) LastActivity() time.Time {
	ns := c.lastActivity.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// PendingRequestID 返回正在等待响应的请求ID
func (c *Conn) PendingRequestID() (int32, bool) {
	id := c.pending.Load()
	return id, id != 0
}

// allocID 分配单调递增的请求ID，在溢出前回绕，且永远不会是 -1
func (c *Conn) allocID() int32 {
	if c.nextID == math.MaxInt32 {
		c.nextID = 0
	}
	c.nextID++
	return c.nextID
}

func (c *Conn) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// watch 为本次交换设置截止时间，并在 ctx 结束时立即打断阻塞的读写
func (c *Conn) watch(ctx context.Context) func() {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	nc := c.conn
	nc.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		nc.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		stop()
		nc.SetDeadline(time.Time{})
	}
}

// ioError 把读写错误归类为 Timeout / ConnectionLost / Canceled
func (c *Conn) ioError(ctx context.Context, err error) error {
	if errors.Is(err, ErrMalformedFrame) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, ctxErr)
		}
		return fmt.Errorf("RCON请求已取消: %w", ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s 内未收到完整响应", ErrTimeout, c.cfg.Timeout)
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

func (c *Conn) dialError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
		return fmt.Errorf("RCON连接已取消: %w", ctxErr)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrConnectTimeout, c.Address(), err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %s", ErrConnectionRefused, c.Address())
	}
	return fmt.Errorf("%w: %s: %v", ErrConnectionRefused, c.Address(), err)
}
