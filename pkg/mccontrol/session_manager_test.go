package mccontrol

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"city.newnan/mcbot/pkg/rcon"
	"city.newnan/mcbot/pkg/rcon/rcontest"
)

func newSession(t *testing.T, srv *rcontest.Server, timeout time.Duration) *SessionManager {
	t.Helper()
	m := NewSessionManager(srv.Config(timeout))
	t.Cleanup(func() { m.Close() })
	return m
}

func TestExecuteList(t *testing.T) {
	const output = "There are 2 of 20 players online: Steve, Alex"
	srv := rcontest.NewServer("secret", func(cmd string, _ int) rcontest.Response {
		if cmd == "list" {
			return rcontest.Reply(output)
		}
		return rcontest.Reply("Unknown command")
	})
	defer srv.Close()

	m := newSession(t, srv, time.Second)
	if m.State() != StateDisconnected {
		t.Errorf("State() before first use = %s; want DISCONNECTED", m.State())
	}

	res := m.Execute(context.Background(), "list")
	if !res.Success || res.Output != output {
		t.Fatalf("Execute() = %+v; want success with %q", res, output)
	}
	if res.ErrorKind != rcon.KindNone {
		t.Errorf("ErrorKind = %s; want empty", res.ErrorKind)
	}
	if m.State() != StateReady {
		t.Errorf("State() = %s; want READY", m.State())
	}
}

func TestExecuteAuthFailedIsNotRetried(t *testing.T) {
	srv := rcontest.NewServer("secret", nil)
	defer srv.Close()

	cfg := srv.Config(time.Second)
	cfg.Password = "wrong"
	m := NewSessionManager(cfg)
	defer m.Close()

	res := m.Execute(context.Background(), "list")
	if res.Success || res.ErrorKind != rcon.KindAuthFailed {
		t.Fatalf("Execute() = %+v; want AUTH_FAILED", res)
	}
	if srv.Connections() != 1 || srv.AuthAttempts() != 1 {
		t.Errorf("connections = %d, auth attempts = %d; want 1 and 1", srv.Connections(), srv.AuthAttempts())
	}
	if len(srv.Commands()) != 0 {
		t.Errorf("server received commands %v; want none", srv.Commands())
	}
	if m.State() != StateFailed {
		t.Errorf("State() = %s; want FAILED", m.State())
	}
}

func TestExecuteRetriesOnceOnConnectionLost(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Fragments: []string{"half"}, Close: true}
	})
	defer srv.Close()

	m := newSession(t, srv, time.Second)
	res := m.Execute(context.Background(), "list")
	if res.Success || res.ErrorKind != rcon.KindConnectionLost {
		t.Fatalf("Execute() = %+v; want CONNECTION_LOST", res)
	}
	if got := len(srv.Commands()); got != 2 {
		t.Errorf("server received %d commands; want 2 (one retry)", got)
	}
	if srv.Connections() != 2 {
		t.Errorf("Connections() = %d; want 2", srv.Connections())
	}
}

func TestExecuteRecoversAfterConnectionLost(t *testing.T) {
	srv := rcontest.NewServer("secret", func(_ string, attempt int) rcontest.Response {
		if attempt == 1 {
			return rcontest.Response{Close: true}
		}
		return rcontest.Reply("Saved the game")
	})
	defer srv.Close()

	m := newSession(t, srv, time.Second)
	res := m.Execute(context.Background(), "save-all")
	if !res.Success || res.Output != "Saved the game" {
		t.Fatalf("Execute() = %+v; want success after reconnect", res)
	}
	if srv.Connections() != 2 {
		t.Errorf("Connections() = %d; want 2", srv.Connections())
	}
}

func TestExecuteReportsConnectionLostWhenReconnectFails(t *testing.T) {
	// 第一条命令到达后服务器停止监听并断开连接
	self := make(chan *rcontest.Server, 1)
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		(<-self).StopAccepting()
		return rcontest.Response{Close: true}
	})
	defer srv.Close()
	self <- srv

	m := newSession(t, srv, time.Second)
	res := m.Execute(context.Background(), "list")
	if res.Success || res.ErrorKind != rcon.KindConnectionLost {
		t.Fatalf("Execute() = %+v; want CONNECTION_LOST", res)
	}
	if srv.Connections() != 1 {
		t.Errorf("Connections() = %d; want 1", srv.Connections())
	}
	if m.State() != StateFailed {
		t.Errorf("State() = %s; want FAILED", m.State())
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Hang: true}
	})
	defer srv.Close()

	m := newSession(t, srv, 100*time.Millisecond)
	res := m.Execute(context.Background(), "list")
	if res.Success || res.ErrorKind != rcon.KindTimeout {
		t.Fatalf("Execute() = %+v; want TIMEOUT", res)
	}
	if got := len(srv.Commands()); got != 2 {
		t.Errorf("server received %d commands; want 2 (one retry)", got)
	}
	if res.LatencyMs < 200 {
		t.Errorf("LatencyMs = %d; want at least two timeouts", res.LatencyMs)
	}
}

func TestExecuteMalformedFrameIsNotRetried(t *testing.T) {
	srv := rcontest.NewServer("secret", func(_ string, attempt int) rcontest.Response {
		if attempt == 1 {
			return rcontest.Response{Raw: []byte{0xff, 0xff, 0xff, 0x7f}}
		}
		return rcontest.Reply("ok")
	})
	defer srv.Close()

	m := newSession(t, srv, time.Second)
	res := m.Execute(context.Background(), "seed")
	if res.Success || res.ErrorKind != rcon.KindMalformedFrame {
		t.Fatalf("Execute() = %+v; want MALFORMED_FRAME", res)
	}
	if srv.Connections() != 1 {
		t.Errorf("Connections() = %d; want 1", srv.Connections())
	}
	if m.State() != StateFailed {
		t.Errorf("State() = %s; want FAILED", m.State())
	}

	// 连接被丢弃后，下次使用时懒加载重建
	res = m.Execute(context.Background(), "seed")
	if !res.Success || res.Output != "ok" {
		t.Fatalf("Execute() after failure = %+v; want success", res)
	}
	if srv.Connections() != 2 {
		t.Errorf("Connections() = %d; want 2", srv.Connections())
	}
}

func TestExecuteConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	l.Close()

	m := NewSessionManager(rcon.Config{Host: "127.0.0.1", Port: port, Password: "secret"})
	defer m.Close()

	res := m.Execute(context.Background(), "list")
	if res.Success || res.ErrorKind != rcon.KindConnectionRefused {
		t.Errorf("Execute() = %+v; want CONNECTION_REFUSED", res)
	}
}

func TestExecuteSerializesConcurrentCalls(t *testing.T) {
	srv := rcontest.NewServer("secret", func(cmd string, _ int) rcontest.Response {
		return rcontest.Response{Fragments: []string{"done " + cmd}, Delay: 100 * time.Millisecond}
	})
	defer srv.Close()

	m := newSession(t, srv, 2*time.Second)
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var wg sync.WaitGroup
	results := make(map[string]CommandResult)
	var mu sync.Mutex
	for _, cmd := range []string{"say A", "say B", "say C"} {
		wg.Add(1)
		go func(cmd string) {
			defer wg.Done()
			res := m.Execute(context.Background(), cmd)
			mu.Lock()
			results[cmd] = res
			mu.Unlock()
		}(cmd)
		// 保证进入队列的顺序
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	got := srv.Commands()
	want := []string{"say A", "say B", "say C"}
	if len(got) != len(want) {
		t.Fatalf("server received %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command #%d = %q; want %q", i, got[i], want[i])
		}
	}
	if srv.Interleaved() {
		t.Error("server observed interleaved requests")
	}
	for cmd, res := range results {
		if !res.Success || res.Output != "done "+cmd {
			t.Errorf("result for %q = %+v", cmd, res)
		}
	}
	if srv.Connections() != 1 {
		t.Errorf("Connections() = %d; want 1", srv.Connections())
	}
}

func TestExecuteCanceledWhileQueued(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Fragments: []string{"slow"}, Delay: 300 * time.Millisecond}
	})
	defer srv.Close()

	m := newSession(t, srv, 2*time.Second)
	go m.Execute(context.Background(), "first")
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	res := m.Execute(ctx, "second")
	if res.ErrorKind != rcon.KindCanceled {
		t.Errorf("Execute() = %+v; want CANCELED", res)
	}
}

func TestOpenCloseAndIdle(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Reply("pong")
	})
	defer srv.Close()

	m := newSession(t, srv, time.Second)
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if srv.Connections() != 1 {
		t.Errorf("Connections() = %d; want 1 after repeated Open", srv.Connections())
	}

	if m.CloseIfIdle(time.Hour) {
		t.Error("CloseIfIdle(1h) closed an active session")
	}
	if !m.CloseIfIdle(0) {
		t.Error("CloseIfIdle(0) did not close the session")
	}
	if m.State() != StateDisconnected {
		t.Errorf("State() = %s; want DISCONNECTED", m.State())
	}

	res := m.Execute(context.Background(), "ping")
	if !res.Success {
		t.Fatalf("Execute() after idle close = %+v", res)
	}
	if srv.Connections() != 2 {
		t.Errorf("Connections() = %d; want 2", srv.Connections())
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("State() after Close = %s; want DISCONNECTED", m.State())
	}
}

func TestPool(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Reply("ok")
	})
	defer srv.Close()

	pool := NewPool(time.Millisecond)
	defer pool.CloseAll()

	cfg := srv.Config(time.Second)
	first := pool.Get(cfg)
	if pool.Get(cfg) != first {
		t.Error("Get() returned a different session for the same endpoint")
	}
	if res := first.Execute(context.Background(), "list"); !res.Success {
		t.Fatalf("Execute() = %+v", res)
	}

	infos := pool.List()
	if len(infos) != 1 || infos[0].Endpoint != cfg.Address() || infos[0].State != StateReady {
		t.Errorf("List() = %+v", infos)
	}

	time.Sleep(5 * time.Millisecond)
	if closed := pool.cleanupIdleSessions(); closed != 1 {
		t.Errorf("cleanupIdleSessions() = %d; want 1", closed)
	}
	if _, ok := pool.Lookup(cfg.Address()); !ok {
		t.Error("idle cleanup removed the session from the pool")
	}

	rotated := cfg
	rotated.Password = "rotated"
	second := pool.Get(rotated)
	if second == first {
		t.Error("Get() with a new password reused the old session")
	}
	slower := rotated
	slower.Timeout = 2 * time.Second
	if pool.Get(slower) == second {
		t.Error("Get() with a new timeout reused the old session")
	}

	if err := pool.Remove(cfg.Address()); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if err := pool.Remove(cfg.Address()); err == nil {
		t.Error("Remove() of a missing endpoint returned nil")
	}
}
