package mccontrol

import (
	"testing"
	"time"
)

func TestParseLogEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		line string
		want LogEvent
	}{
		{
			name: "join",
			line: "[12:34:56] [Server thread/INFO]: Steve joined the game",
			want: LogEvent{Type: LogEventJoin, Player: "Steve"},
		},
		{
			name: "join after rename",
			line: "[12:34:56] [Server thread/INFO]: Steve (formerly known as Notch) joined the game",
			want: LogEvent{Type: LogEventJoin, Player: "Steve"},
		},
		{
			name: "leave with namespace",
			line: "[12:38:00] [Server thread/INFO] [minecraft/MinecraftServer]: Steve left the game",
			want: LogEvent{Type: LogEventLeave, Player: "Steve"},
		},
		{
			name: "chat",
			line: "[12:35:00] [Server thread/INFO] [minecraft/MinecraftServer]: <Steve> Hello everyone!",
			want: LogEvent{Type: LogEventChat, Player: "Steve", Chat: "Hello everyone!"},
		},
		{
			name: "unsigned chat",
			line: "[12:35:00] [Server thread/INFO]: [Not Secure] <Alex> 你好",
			want: LogEvent{Type: LogEventChat, Player: "Alex", Chat: "你好"},
		},
		{
			name: "chat that looks like a join",
			line: "[12:35:00] [Server thread/INFO]: <Alex> Notch joined the game",
			want: LogEvent{Type: LogEventChat, Player: "Alex", Chat: "Notch joined the game"},
		},
		{
			name: "advancement",
			line: "[12:37:00] [Server thread/INFO]: Steve has made the advancement [Stone Age]",
			want: LogEvent{Type: LogEventAdvancement, Player: "Steve", Advancement: "Stone Age"},
		},
		{
			name: "challenge",
			line: "[12:37:00] [Server thread/INFO]: Alex has completed the challenge [How Did We Get Here?]",
			want: LogEvent{Type: LogEventAdvancement, Player: "Alex", Advancement: "How Did We Get Here?"},
		},
		{
			name: "slain by mob",
			line: "[12:36:00] [Server thread/INFO]: Steve was slain by Zombie",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Killer: "Zombie", Cause: "attack"},
		},
		{
			name: "slain with weapon",
			line: "[12:36:00] [Server thread/INFO]: Steve was slain by Alex using [Diamond Sword]",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Killer: "Alex", Weapon: "[Diamond Sword]", Cause: "attack"},
		},
		{
			name: "fall",
			line: "[12:36:00] [Server thread/INFO]: Steve hit the ground too hard",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Cause: "fall"},
		},
		{
			name: "drowned escaping",
			line: "[12:36:00] [Server thread/INFO]: Steve drowned whilst trying to escape Drowned",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Killer: "Drowned", Cause: "drowning_escape"},
		},
		{
			name: "magic before generic kill",
			line: "[12:36:00] [Server thread/INFO]: Steve was killed by magic",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Cause: "magic"},
		},
		{
			name: "bed explosion",
			line: "[12:36:00] [Server thread/INFO]: Steve was killed by [Intentional Game Design]",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Cause: "bed_explosion"},
		},
		{
			name: "void escape",
			line: "[12:36:00] [Server thread/INFO]: Steve didn't want to live in the same world as Alex",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Killer: "Alex", Cause: "void_escape"},
		},
		{
			name: "paper header",
			line: "[12:36:00 INFO]: Steve fell out of the world",
			want: LogEvent{Type: LogEventDeath, Player: "Steve", Cause: "void"},
		},
		{
			name: "starting",
			line: "[12:00:00] [Server thread/INFO]: Starting minecraft server version 1.20.4",
			want: LogEvent{Type: LogEventServerStarting, Version: "1.20.4"},
		},
		{
			name: "started",
			line: "[12:00:30] [Server thread/INFO]: Done (28.412s)! For help, type \"help\"",
			want: LogEvent{Type: LogEventServerStarted},
		},
		{
			name: "stopping",
			line: "[12:59:00] [Server thread/INFO]: Stopping server",
			want: LogEvent{Type: LogEventServerStopping},
		},
		{
			name: "error level",
			line: "[12:40:00] [Server thread/ERROR]: Encountered an unexpected exception",
			want: LogEvent{Type: LogEventError},
		},
		{
			name: "warn level",
			line: "[12:40:00] [Server thread/WARN]: Can't keep up! Is the server overloaded?",
			want: LogEvent{Type: LogEventWarning},
		},
		{
			name: "colour codes stripped",
			line: "[12:34:56] [Server thread/INFO]: §eSteve joined the game",
			want: LogEvent{Type: LogEventJoin, Player: "Steve"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLogEvent(tt.line, now)
			if !ok {
				t.Fatalf("ParseLogEvent(%q) not recognized", tt.line)
			}
			if got.Type != tt.want.Type || got.Player != tt.want.Player || got.Chat != tt.want.Chat ||
				got.Killer != tt.want.Killer || got.Weapon != tt.want.Weapon || got.Cause != tt.want.Cause ||
				got.Advancement != tt.want.Advancement || got.Version != tt.want.Version {
				t.Errorf("ParseLogEvent() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLogEventIgnored(t *testing.T) {
	now := time.Now()
	for _, line := range []string{
		"",
		"plain text without a header",
		"[12:00:00] [Server thread/INFO]: Preparing spawn area: 42%",
		"[12:00:00] [Server thread/INFO]: Steve lost connection: Disconnected",
	} {
		if got, ok := ParseLogEvent(line, now); ok {
			t.Errorf("ParseLogEvent(%q) = %+v; want not recognized", line, got)
		}
	}
}

func TestParseLogEventHeader(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 30, 0, time.UTC)

	got, ok := ParseLogEvent("[23:59:50] [Server thread/INFO] [minecraft/DedicatedServer]: Alex joined the game\r\n", now)
	if !ok {
		t.Fatal("ParseLogEvent() not recognized")
	}
	if got.Thread != "Server thread" || got.Level != "INFO" || got.Message != "Alex joined the game" {
		t.Errorf("header = %q %q %q", got.Thread, got.Level, got.Message)
	}
	// 跨过午夜的日志属于前一天
	if want := time.Date(2024, 4, 30, 23, 59, 50, 0, time.UTC); !got.Time.Equal(want) {
		t.Errorf("Time = %v; want %v", got.Time, want)
	}
}
