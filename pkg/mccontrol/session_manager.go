package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"city.newnan/mcbot/pkg/rcon"
)

// maxRetries 连接中断或超时后最多重连重试的次数
const maxRetries = 1

// SessionManager 管理到一个 RCON 端点的单个逻辑会话
// 所有命令经由一个权重为 1 的信号量按 FIFO 顺序串行执行，同一时刻只有一条命令在途
type SessionManager struct {
	cfg   rcon.Config
	conn  *rcon.Conn
	sem   *semaphore.Weighted
	state atomic.Int32

	logger *log.Entry
}

// NewSessionManager 创建会话管理器，连接在首次执行命令或调用 Open 时建立
func NewSessionManager(cfg rcon.Config) *SessionManager {
	m := &SessionManager{
		cfg:    cfg,
		conn:   rcon.NewConn(cfg),
		sem:    semaphore.NewWeighted(1),
		logger: log.WithField("endpoint", cfg.Address()),
	}
	m.setState(StateDisconnected)
	return m
}

// Endpoint 返回会话的目标端点
func (m *SessionManager) Endpoint() string {
	return m.cfg.Address()
}

// State 返回当前会话状态
func (m *SessionManager) State() SessionState {
	return SessionState(m.state.Load())
}

// LastActivity 返回最后一次与服务器交互的时间
func (m *SessionManager) LastActivity() time.Time {
	return m.conn.LastActivity()
}

// Info 返回会话快照
func (m *SessionManager) Info() SessionInfo {
	return SessionInfo{
		Endpoint:     m.Endpoint(),
		State:        m.State(),
		LastActivity: m.LastActivity(),
	}
}

// Open 预热会话，已就绪时直接返回
func (m *SessionManager) Open(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("等待RCON会话失败: %w", err)
	}
	defer m.sem.Release(1)

	if m.State() == StateReady {
		return nil
	}
	return m.connectLocked(ctx)
}

// Execute 执行一条命令
// 连接中断或超时会重连并重试一次；认证失败、帧错误和协议错误不会重试
func (m *SessionManager) Execute(ctx context.Context, command string) CommandResult {
	start := time.Now()
	output, err := m.execute(ctx, command)

	result := CommandResult{
		Command:   command,
		Success:   err == nil,
		Output:    output,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.ErrorKind = rcon.KindOf(err)
		result.Error = err.Error()
		m.logger.WithFields(log.Fields{
			"error_kind": result.ErrorKind,
			"latency_ms": result.LatencyMs,
		}).Warnf("RCON命令执行失败: %v", err)
	}

	observeCommand(m.Endpoint(), result)
	return result
}

func (m *SessionManager) execute(ctx context.Context, command string) (string, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("等待RCON会话失败: %w", err)
	}
	defer m.sem.Release(1)

	var sendErr error
	for attempt := 0; ; attempt++ {
		if m.State() != StateReady {
			if err := m.connectLocked(ctx); err != nil {
				// 重试时重连失败，报告的仍是原来的发送错误
				if sendErr != nil && !errors.Is(err, rcon.ErrAuthFailed) && ctx.Err() == nil {
					return "", fmt.Errorf("%w (重连失败: %v)", sendErr, err)
				}
				return "", err
			}
		}

		output, err := m.conn.Send(ctx, command)
		if err == nil {
			return output, nil
		}
		sendErr = err

		kind := rcon.KindOf(err)
		if kind == rcon.KindPayloadTooLarge {
			// 命令没有发出，连接仍然可用
			return "", err
		}
		m.dropLocked(kind)

		if !kind.Retryable() || attempt >= maxRetries || ctx.Err() != nil {
			return "", err
		}

		m.logger.WithField("error_kind", kind).Warn("RCON连接异常，重连后重试")
		reconnectsTotal.WithLabelValues(m.Endpoint()).Inc()
	}
}

// Close 关闭会话，会等待在途命令完成
func (m *SessionManager) Close() error {
	if err := m.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	err := m.conn.Close()
	m.setState(StateDisconnected)
	return err
}

// CloseIfIdle 会话空闲超过 idle 时关闭连接，会话正在使用时不做任何事
func (m *SessionManager) CloseIfIdle(idle time.Duration) bool {
	if !m.sem.TryAcquire(1) {
		return false
	}
	defer m.sem.Release(1)

	state := m.State()
	if state == StateDisconnected {
		return false
	}
	if state == StateReady && time.Since(m.conn.LastActivity()) < idle {
		return false
	}

	m.conn.Close()
	m.setState(StateDisconnected)
	m.logger.Info("RCON会话空闲，已关闭连接")
	return true
}

// connectLocked 建立连接并认证，调用方必须持有信号量
func (m *SessionManager) connectLocked(ctx context.Context) error {
	m.setState(StateConnecting)
	if err := m.conn.Dial(ctx); err != nil {
		m.setState(StateFailed)
		return err
	}

	m.setState(StateAuthenticating)
	if err := m.conn.Authenticate(ctx); err != nil {
		m.conn.Close()
		m.setState(StateFailed)
		return err
	}

	m.setState(StateReady)
	m.logger.Info("RCON会话已就绪")
	return nil
}

// dropLocked 丢弃当前连接，下次使用时重新建立
func (m *SessionManager) dropLocked(kind rcon.ErrorKind) {
	m.conn.Close()
	m.setState(StateFailed)
	m.logger.WithField("error_kind", kind).Debug("已丢弃RCON连接")
}

func (m *SessionManager) setState(s SessionState) {
	m.state.Store(int32(s))
	sessionState.WithLabelValues(m.Endpoint()).Set(float64(s))
}

// Pool 按端点管理会话，每个端点至多一个会话
type Pool struct {
	sessions    map[string]*SessionManager // 会话映射 (端点 -> 会话)
	mutex       sync.Mutex                 // 互斥锁
	idleTimeout time.Duration              // 空闲超时时间
}

// NewPool 创建会话池，idleTimeout 为 0 时不清理空闲连接
func NewPool(idleTimeout time.Duration) *Pool {
	return &Pool{
		sessions:    make(map[string]*SessionManager),
		idleTimeout: idleTimeout,
	}
}

// Get 返回端点对应的会话，不存在时创建
// 密码或超时时间变化时旧会话会被关闭并替换
func (p *Pool) Get(cfg rcon.Config) *SessionManager {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	endpoint := cfg.Address()
	if session, ok := p.sessions[endpoint]; ok {
		if session.cfg.Password == cfg.Password && session.cfg.Timeout == cfg.Timeout {
			return session
		}
		go session.Close()
	}

	session := NewSessionManager(cfg)
	p.sessions[endpoint] = session
	return session
}

// Lookup 按端点查找已有会话
func (p *Pool) Lookup(endpoint string) (*SessionManager, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	session, ok := p.sessions[endpoint]
	return session, ok
}

// Remove 关闭并移除指定端点的会话
func (p *Pool) Remove(endpoint string) error {
	p.mutex.Lock()
	session, ok := p.sessions[endpoint]
	if ok {
		delete(p.sessions, endpoint)
	}
	p.mutex.Unlock()

	if !ok {
		return fmt.Errorf("会话不存在: %s", endpoint)
	}
	return session.Close()
}

// CloseAll 关闭所有会话
func (p *Pool) CloseAll() {
	p.mutex.Lock()
	sessions := make([]*SessionManager, 0, len(p.sessions))
	for _, session := range p.sessions {
		sessions = append(sessions, session)
	}
	p.sessions = make(map[string]*SessionManager)
	p.mutex.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// List 按端点排序列出所有会话
func (p *Pool) List() []SessionInfo {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	infos := make([]SessionInfo, 0, len(p.sessions))
	for _, session := range p.sessions {
		infos = append(infos, session.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Endpoint < infos[j].Endpoint })
	return infos
}

// StartIdleReaper 定期关闭空闲连接，直到 ctx 结束
func (p *Pool) StartIdleReaper(ctx context.Context, interval time.Duration) {
	if p.idleTimeout <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.cleanupIdleSessions()
			}
		}
	}()
}

// cleanupIdleSessions 关闭空闲会话的连接，会话本身保留以便下次懒加载
func (p *Pool) cleanupIdleSessions() int {
	p.mutex.Lock()
	sessions := make([]*SessionManager, 0, len(p.sessions))
	for _, session := range p.sessions {
		sessions = append(sessions, session)
	}
	p.mutex.Unlock()

	closed := 0
	for _, session := range sessions {
		if session.CloseIfIdle(p.idleTimeout) {
			closed++
		}
	}
	return closed
}
