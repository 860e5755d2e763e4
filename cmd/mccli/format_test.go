package main

import "testing"

func TestParseMinecraftFormat(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		level LogLevel
		want  string
	}{
		{"plain", "hello", LogLevelInfo, "\033[37mhello\033[0m"},
		{"color", "§aok", LogLevelInfo, "\033[37m\033[32mok\033[0m"},
		{"reset to level", "§cbad§r done", LogLevelWarn, "\033[33m\033[31mbad\033[0m\033[33m done\033[0m"},
		{"upper case code", "§Lbold", LogLevelError, "\033[31m\033[1mbold\033[0m"},
		{"unknown code kept", "§zq", LogLevelInfo, "\033[37m§zq\033[0m"},
		{"trailing section sign", "end§", LogLevelInfo, "\033[37mend§\033[0m"},
		{"unknown level", "x", LogLevel("TRACE"), "\033[37mx\033[0m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMinecraftFormat(tt.text, tt.level); got != tt.want {
				t.Errorf("parseMinecraftFormat(%q) = %q; want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetectLogLevel(t *testing.T) {
	tests := []struct {
		line string
		want LogLevel
		ok   bool
	}{
		{"[20:19:40 INFO]: Done (3.2s)!", LogLevelInfo, true},
		{"[20:19:40 WARN]: Can't keep up!", LogLevelWarn, true},
		{"[12:00:00] [Server thread/ERROR]: Encountered an unexpected exception", LogLevelError, true},
		{"[12:00:00] [Server thread/WARNING]: old style", LogLevelWarn, true},
		{"\tat net.minecraft.server.Main", "", false},
		{"[not a level]: text", "", false},
	}
	for _, tt := range tests {
		got, ok := detectLogLevel(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("detectLogLevel(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}
