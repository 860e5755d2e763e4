package rcon_test

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"city.newnan/mcbot/pkg/rcon"
	"city.newnan/mcbot/pkg/rcon/rcontest"
)

func connect(t *testing.T, srv *rcontest.Server, timeout time.Duration) *rcon.Conn {
	t.Helper()
	conn := rcon.NewConn(srv.Config(timeout))
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnSend(t *testing.T) {
	srv := rcontest.NewServer("secret", func(cmd string, _ int) rcontest.Response {
		return rcontest.Reply("echo: " + cmd)
	})
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	before := time.Now()

	out, err := conn.Send(context.Background(), "seed")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if out != "echo: seed" {
		t.Errorf("Send() = %q; want %q", out, "echo: seed")
	}
	if conn.LastActivity().Before(before) {
		t.Errorf("LastActivity() = %v; want after %v", conn.LastActivity(), before)
	}
	if _, pending := conn.PendingRequestID(); pending {
		t.Error("PendingRequestID() reports a pending request after Send returned")
	}
}

func TestConnMultiPacketResponse(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Fragments: []string{"first ", "second ", "third"}}
	})
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	out, err := conn.Send(context.Background(), "help")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if out != "first second third" {
		t.Errorf("Send() = %q; want %q", out, "first second third")
	}

	// 下一条命令不应读到上一条的残留片段
	out, err = conn.Send(context.Background(), "help")
	if err != nil {
		t.Fatalf("second Send() error = %v", err)
	}
	if out != "first second third" {
		t.Errorf("second Send() = %q", out)
	}
}

func TestConnMultibyteFragment(t *testing.T) {
	// 4096 个字符的颜色代码片段，编码后超过 MaxPayloadSize 字节
	fragment := strings.Repeat("§a", 2048)
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Fragments: []string{fragment, "玩家"}}
	})
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	out, err := conn.Send(context.Background(), "help")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if out != fragment+"玩家" {
		t.Errorf("Send() returned %d bytes; want %d", len(out), len(fragment)+len("玩家"))
	}
}

func TestConnEmptyOutput(t *testing.T) {
	srv := rcontest.NewServer("secret", nil)
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	out, err := conn.Send(context.Background(), "save-on")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if out != "" {
		t.Errorf("Send() = %q; want empty", out)
	}
}

func TestConnAuthFailed(t *testing.T) {
	srv := rcontest.NewServer("secret", nil)
	defer srv.Close()

	cfg := srv.Config(time.Second)
	cfg.Password = "wrong"
	conn := rcon.NewConn(cfg)

	err := conn.Connect(context.Background())
	if !errors.Is(err, rcon.ErrAuthFailed) {
		t.Fatalf("Connect() error = %v; want ErrAuthFailed", err)
	}
	if rcon.KindOf(err) != rcon.KindAuthFailed {
		t.Errorf("KindOf() = %s; want %s", rcon.KindOf(err), rcon.KindAuthFailed)
	}
	if srv.AuthAttempts() != 1 {
		t.Errorf("AuthAttempts() = %d; want 1", srv.AuthAttempts())
	}
}

func TestConnSkipsEmptyResponseBeforeAuth(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Reply("ok")
	})
	srv.EmptyBeforeAuth = true
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	if out, err := conn.Send(context.Background(), "list"); err != nil || out != "ok" {
		t.Errorf("Send() = %q, %v; want %q, nil", out, err, "ok")
	}
}

func TestConnTimeout(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Hang: true}
	})
	defer srv.Close()

	conn := connect(t, srv, 100*time.Millisecond)
	start := time.Now()
	_, err := conn.Send(context.Background(), "list")
	if !errors.Is(err, rcon.ErrTimeout) {
		t.Fatalf("Send() error = %v; want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send() took %v; want about 100ms", elapsed)
	}
}

func TestConnContextDeadline(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Hang: true}
	})
	defer srv.Close()

	conn := connect(t, srv, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Send(ctx, "list")
	if rcon.KindOf(err) != rcon.KindTimeout {
		t.Errorf("KindOf() = %s; want %s (err = %v)", rcon.KindOf(err), rcon.KindTimeout, err)
	}
}

func TestConnContextCanceled(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Hang: true}
	})
	defer srv.Close()

	conn := connect(t, srv, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := conn.Send(ctx, "list")
	if rcon.KindOf(err) != rcon.KindCanceled {
		t.Errorf("KindOf() = %s; want %s (err = %v)", rcon.KindOf(err), rcon.KindCanceled, err)
	}
}

func TestConnConnectionLost(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Fragments: []string{"partial"}, Close: true}
	})
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	_, err := conn.Send(context.Background(), "list")
	if !errors.Is(err, rcon.ErrConnectionLost) {
		t.Errorf("Send() error = %v; want ErrConnectionLost", err)
	}
}

func TestConnMalformedFrame(t *testing.T) {
	srv := rcontest.NewServer("secret", func(string, int) rcontest.Response {
		return rcontest.Response{Raw: []byte{0xff, 0xff, 0x00, 0x00, 1, 2, 3}}
	})
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	_, err := conn.Send(context.Background(), "list")
	if !errors.Is(err, rcon.ErrMalformedFrame) {
		t.Errorf("Send() error = %v; want ErrMalformedFrame", err)
	}
}

func TestConnPayloadTooLarge(t *testing.T) {
	srv := rcontest.NewServer("secret", nil)
	defer srv.Close()

	conn := connect(t, srv, time.Second)
	long := make([]byte, rcon.MaxPayloadSize+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := conn.Send(context.Background(), string(long))
	if rcon.KindOf(err) != rcon.KindPayloadTooLarge {
		t.Errorf("KindOf() = %s; want %s", rcon.KindOf(err), rcon.KindPayloadTooLarge)
	}
	if len(srv.Commands()) != 0 {
		t.Errorf("server received %d commands; want 0", len(srv.Commands()))
	}
}

func TestConnConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	l.Close()

	conn := rcon.NewConn(rcon.Config{Host: host, Port: port, Password: "secret", DialTimeout: time.Second})
	err = conn.Connect(context.Background())
	if rcon.KindOf(err) != rcon.KindConnectionRefused {
		t.Errorf("KindOf() = %s; want %s (err = %v)", rcon.KindOf(err), rcon.KindConnectionRefused, err)
	}
}

func TestConnSendWithoutConnect(t *testing.T) {
	conn := rcon.NewConn(rcon.Config{Host: "127.0.0.1", Password: "secret"})
	_, err := conn.Send(context.Background(), "list")
	if !errors.Is(err, rcon.ErrConnectionLost) {
		t.Errorf("Send() error = %v; want ErrConnectionLost", err)
	}
}
