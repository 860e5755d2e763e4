// Package rcontest 提供用于测试的进程内 RCON 服务器，用法类似 net/http/httptest
package rcontest

import (
	"encoding/binary"
	"net"
	"strconv"
	"sync"
	"time"

	"city.newnan/mcbot/pkg/rcon"
)

// Response 描述服务器对一条命令的反应
type Response struct {
	Fragments []string      // 按顺序发送的输出片段，共享命令的请求ID
	Delay     time.Duration // 发送前的等待时间
	Hang      bool          // 不做任何响应，连同探测包一起吞掉
	Close     bool          // 发送完 Fragments 后直接断开连接，不回显探测包
	Raw       []byte        // 直接写出的原始字节，用于构造损坏的帧
}

// Reply 返回单片段响应
func Reply(output string) Response {
	return Response{Fragments: []string{output}}
}

// HandlerFunc 根据命令返回响应，attempt 为该命令第几次到达服务器（从 1 开始）
type HandlerFunc func(command string, attempt int) Response

// Server 进程内 RCON 服务器
type Server struct {
	Host     string
	Port     int
	Password string

	// EmptyBeforeAuth 为 true 时在认证响应前先发送一个空的 RESPONSE_VALUE
	EmptyBeforeAuth bool

	handler  HandlerFunc
	listener net.Listener
	wg       sync.WaitGroup

	mu          sync.Mutex
	conns       []net.Conn
	accepted    int
	authCount   int
	commands    []string
	attempts    map[string]int
	inFlight    bool
	interleaved bool
	closed      bool
}

// NewServer 启动一个监听在本地随机端口上的服务器
func NewServer(password string, handler HandlerFunc) *Server {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("rcontest: 监听失败: " + err.Error())
	}
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)

	if handler == nil {
		handler = func(string, int) Response { return Response{} }
	}

	s := &Server{
		Host:     host,
		Port:     port,
		Password: password,
		handler:  handler,
		listener: l,
		attempts: make(map[string]int),
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

// Config 返回连接到该服务器的客户端配置
func (s *Server) Config(timeout time.Duration) rcon.Config {
	return rcon.Config{Host: s.Host, Port: s.Port, Password: s.Password, Timeout: timeout}
}

// Close 关闭监听器和所有连接
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	s.listener.Close()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

// StopAccepting 关闭监听器，之后的连接会被拒绝，已有连接不受影响
// 可以在 HandlerFunc 中调用
func (s *Server) StopAccepting() {
	s.listener.Close()
}

// Connections 返回已接受的TCP连接数
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// AuthAttempts 返回收到的认证请求数
func (s *Server) AuthAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCount
}

// Commands 按到达顺序返回收到的非空命令
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Interleaved 报告是否出现过上一条命令尚未结束就收到新命令的情况
func (s *Server) Interleaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interleaved
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			c.Close()
			return
		}
		s.accepted++
		s.conns = append(s.conns, c)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer c.Close()
			s.handle(c)
		}()
	}
}

func (s *Server) handle(c net.Conn) {
	authed := false
	swallowProbe := false
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	for {
		p, err := rcon.ReadPacket(c)
		if err != nil {
			return
		}

		switch {
		case p.Type == rcon.TypeAuth:
			s.mu.Lock()
			s.authCount++
			s.mu.Unlock()

			if p.Payload != s.Password {
				rcon.WritePacket(c, rcon.Packet{RequestID: -1, Type: rcon.TypeAuthResponse})
				continue
			}
			if s.EmptyBeforeAuth {
				rcon.WritePacket(c, rcon.Packet{RequestID: p.RequestID, Type: rcon.TypeCommandResponse})
			}
			rcon.WritePacket(c, rcon.Packet{RequestID: p.RequestID, Type: rcon.TypeAuthResponse})
			authed = true

		case !authed:
			return

		case p.Payload == "":
			// 探测包：原版服务器对空命令回显一个空响应
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
			if swallowProbe {
				swallowProbe = false
				continue
			}
			rcon.WritePacket(c, rcon.Packet{RequestID: p.RequestID, Type: rcon.TypeCommandResponse})

		default:
			s.mu.Lock()
			if s.inFlight {
				s.interleaved = true
			}
			s.inFlight = true
			s.commands = append(s.commands, p.Payload)
			s.attempts[p.Payload]++
			attempt := s.attempts[p.Payload]
			s.mu.Unlock()

			resp := s.handler(p.Payload, attempt)
			if resp.Delay > 0 {
				time.Sleep(resp.Delay)
			}
			if resp.Hang {
				swallowProbe = true
				continue
			}
			if resp.Raw != nil {
				c.Write(resp.Raw)
				continue
			}
			for _, fragment := range resp.Fragments {
				c.Write(responseFrame(p.RequestID, fragment))
			}
			if resp.Close {
				return
			}
		}
	}
}

// responseFrame 编码一个 RESPONSE_VALUE 包。服务器按字符切分输出，
// 片段编码后可以超过 rcon.MaxPayloadSize 字节，因此不经过 rcon.Encode
func responseFrame(id int32, payload string) []byte {
	buf := make([]byte, 12+len(payload)+2)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(8+len(payload)+2))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(rcon.TypeCommandResponse))
	copy(buf[12:], payload)
	return buf
}
