package mccontrol

import (
	"errors"
	"testing"
)

func stubPing(t *testing.T, properties map[string]interface{}, latency int, err error) {
	t.Helper()
	orig := pingFunc
	pingFunc = func(string, int) (map[string]interface{}, int, error) {
		return properties, latency, err
	}
	t.Cleanup(func() { pingFunc = orig })
}

func TestPingOnline(t *testing.T) {
	stubPing(t, map[string]interface{}{
		"version": map[string]interface{}{"name": "1.20.4", "protocol": 765},
		"players": map[string]interface{}{
			"max":    20,
			"online": 2,
			"sample": []interface{}{
				map[string]interface{}{"name": "Steve", "id": "1"},
				map[string]interface{}{"name": "Alex", "id": "2"},
			},
		},
		"description": map[string]interface{}{"text": "§aNewNan City"},
	}, 12, nil)

	status, err := Ping("mc.example.com", 25565)
	if err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if !status.Online || status.Latency != 12 || status.Version != "1.20.4" {
		t.Errorf("status = %+v", status)
	}
	if status.Players != 2 || status.MaxPlayers != 20 {
		t.Errorf("players = %d/%d; want 2/20", status.Players, status.MaxPlayers)
	}
	if status.Description != "NewNan City" {
		t.Errorf("Description = %q", status.Description)
	}
	if len(status.PlayerNames) != 2 || status.PlayerNames[1] != "Alex" {
		t.Errorf("PlayerNames = %q", status.PlayerNames)
	}
}

func TestPingOffline(t *testing.T) {
	stubPing(t, nil, 0, errors.New("connection refused"))

	status, err := Ping("mc.example.com", 25565)
	if err != nil {
		t.Fatalf("Ping() error = %v; offline should not be an error", err)
	}
	if status.Online || status.LastError == "" {
		t.Errorf("status = %+v; want offline with LastError", status)
	}
	if status.PlayerNames == nil {
		t.Error("PlayerNames is nil; want empty slice")
	}
}
