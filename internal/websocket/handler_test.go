package websocket

import (
	"context"
	"sync"
	"testing"

	"github.com/bytedance/sonic"

	"city.newnan/mcbot/pkg/mccontrol"
)

type stubConsole struct {
	mu       sync.Mutex
	commands []string
}

func (s *stubConsole) ExecuteConsole(_ context.Context, username, role, command string) mccontrol.CommandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, username+"/"+role+":"+command)
	return mccontrol.CommandResult{Action: "raw", Command: command, Success: true, Output: "There are 0 of a max of 20 players online:"}
}

func newTestClient(m *Manager, role string) *Client {
	return &Client{
		ID:       "c1",
		Send:     make(chan []byte, 16),
		Username: "alice",
		RoleName: role,
		Manager:  m,
		limiter:  m.newLimiter(),
	}
}

func nextMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return msg
	default:
		t.Fatal("no message queued")
		return Message{}
	}
}

func TestHandleCommandExecutes(t *testing.T) {
	m := NewManager()
	console := &stubConsole{}
	m.SetConsole(console, []string{"owner", "admin"}, 0, 1)
	c := newTestClient(m, "admin")

	c.handleMessage([]byte(`{"type":"command","content":"list"}`))
	msg := nextMessage(t, c)
	if msg.Type != MessageTypeResponse {
		t.Fatalf("type = %q; want response (%v)", msg.Type, msg.Content)
	}
	content, _ := msg.Content.(map[string]interface{})
	if content["success"] != true || content["command"] != "list" {
		t.Errorf("content = %v", msg.Content)
	}

	c.handleMessage([]byte(`{"type":"command","content":{"command":"time query day"}}`))
	if msg := nextMessage(t, c); msg.Type != MessageTypeResponse {
		t.Errorf("type = %q; want response", msg.Type)
	}
	if len(console.commands) != 2 || console.commands[1] != "alice/admin:time query day" {
		t.Errorf("commands = %q", console.commands)
	}
}

func TestHandleCommandRejected(t *testing.T) {
	tests := []struct {
		name    string
		console bool
		role    string
		payload string
	}{
		{"disabled", false, "owner", `{"type":"command","content":"list"}`},
		{"role", true, "user", `{"type":"command","content":"list"}`},
		{"empty", true, "owner", `{"type":"command","content":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			console := &stubConsole{}
			if tt.console {
				m.SetConsole(console, []string{"owner"}, 0, 1)
			}
			c := newTestClient(m, tt.role)

			c.handleMessage([]byte(tt.payload))
			if msg := nextMessage(t, c); msg.Type != MessageTypeError {
				t.Errorf("type = %q; want error", msg.Type)
			}
			if len(console.commands) != 0 {
				t.Errorf("commands = %q; want none", console.commands)
			}
		})
	}
}

func TestHandleCommandRateLimited(t *testing.T) {
	m := NewManager()
	console := &stubConsole{}
	m.SetConsole(console, []string{"owner"}, 0.001, 2)
	c := newTestClient(m, "owner")

	var types []string
	for i := 0; i < 3; i++ {
		c.handleMessage([]byte(`{"type":"command","content":"list"}`))
		types = append(types, nextMessage(t, c).Type)
	}
	if types[0] != MessageTypeResponse || types[1] != MessageTypeResponse || types[2] != MessageTypeError {
		t.Errorf("types = %q; want two responses then an error", types)
	}
	if len(console.commands) != 2 {
		t.Errorf("executed %d commands; want 2", len(console.commands))
	}
}

func TestGetClientCount(t *testing.T) {
	m := NewManager()
	if got := m.GetClientCount(); got != 0 {
		t.Fatalf("GetClientCount() = %d; want 0", got)
	}
	m.clients["a"] = &Client{ID: "a"}
	m.clients["b"] = &Client{ID: "b"}
	if got := m.GetClientCount(); got != 2 {
		t.Errorf("GetClientCount() = %d; want 2", got)
	}
}

func TestSharedConsole(t *testing.T) {
	m := NewManager()
	m.SetConsole(&stubConsole{}, []string{"owner", "admin"}, 0, 1)

	alice := newTestClient(m, "admin")
	m.Register(alice)
	bob := newTestClient(m, "owner")
	bob.ID, bob.Username = "c2", "bob"
	m.Register(bob)
	viewer := newTestClient(m, "user")
	viewer.ID, viewer.Username = "c3", "carol"
	m.Register(viewer)

	// alice 看到 bob 上线，普通用户不会收到上下线通知
	if msg := nextMessage(t, alice); msg.Type != MessageTypeNotify {
		t.Fatalf("alice got %q; want join notify", msg.Type)
	}
	if got := m.Operators(); len(got) != 2 {
		t.Errorf("Operators() = %q", got)
	}

	alice.handleMessage([]byte(`{"type":"command","content":"list"}`))
	if msg := nextMessage(t, alice); msg.Type != MessageTypeResponse {
		t.Errorf("alice got %q; want response", msg.Type)
	}
	msg := nextMessage(t, bob)
	if msg.Type != MessageTypeConsole {
		t.Fatalf("bob got %q; want console echo", msg.Type)
	}
	if content, _ := msg.Content.(map[string]interface{}); content["user"] != "alice" {
		t.Errorf("echo = %v", msg.Content)
	}
	if len(viewer.Send) != 0 {
		t.Errorf("viewer received %d messages; want none", len(viewer.Send))
	}

	if n := m.Announce("bob", "服务器将在5分钟后重启"); n != 3 {
		t.Errorf("Announce delivered to %d; want 3", n)
	}
	if msg := nextMessage(t, viewer); msg.Type != MessageTypeNotify {
		t.Errorf("viewer got %q; want announcement", msg.Type)
	}

	m.Unregister(bob)
	m.Unregister(bob)
	if m.GetClientCount() != 2 {
		t.Errorf("GetClientCount() = %d; want 2", m.GetClientCount())
	}
	if _, ok := <-bob.Send; ok {
		// bob 的缓冲区里还有公告
		if _, ok := <-bob.Send; ok {
			t.Error("bob.Send not closed after Unregister")
		}
	}
}

func TestSlowClientDropped(t *testing.T) {
	m := NewManager()
	slow := &Client{ID: "slow", Send: make(chan []byte, 1), Manager: m}
	m.Register(slow)

	m.Announce("admin", "one")
	m.Announce("admin", "two")
	if m.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d; want slow client dropped", m.GetClientCount())
	}
}
