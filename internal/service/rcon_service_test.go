package service

import (
	"context"
	"errors"
	"testing"

	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

func TestRconServiceRunAuditsAndPublishes(t *testing.T) {
	setupTestDB(t)
	exec := &fakeExecutor{}
	pub := &recordingPublisher{}
	svc := NewRconService(exec, NewAuditService(), pub)

	res := svc.Run(context.Background(), testActor, "Griefer", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.KickPlayer(context.Background(), "Griefer", "spam")
	})
	if !res.Success || res.Command != "kick Griefer spam" {
		t.Fatalf("Run() = %+v", res)
	}

	logs, total, err := NewAuditService().ListCommands(1, 10, model.AuditFilter{Actor: "alice"})
	if err != nil || total != 1 {
		t.Fatalf("ListCommands() = %d, %v; want 1 entry", total, err)
	}
	entry := logs[0]
	if entry.Action != "kick" || entry.Target != "Griefer" || entry.Command != "kick Griefer spam" || !entry.Success || entry.CorrelationID == "" {
		t.Errorf("audit entry = %+v", entry)
	}

	events := pub.published()
	if len(events) != 1 || events[0].topic != sse.TopicRcon || events[0].event != "command" {
		t.Fatalf("published = %+v", events)
	}
	if ev, ok := events[0].data.(CommandEvent); !ok || ev.CorrelationID != entry.CorrelationID {
		t.Errorf("event data = %+v; want correlation id %q", events[0].data, entry.CorrelationID)
	}
}

func TestRconServiceAuditsFailures(t *testing.T) {
	setupTestDB(t)
	exec := &fakeExecutor{failKind: rcon.KindTimeout}
	svc := NewRconService(exec, NewAuditService(), nil)

	res := svc.Run(context.Background(), testActor, "", func(d *mccontrol.Dispatcher) mccontrol.CommandResult {
		return d.SaveAll(context.Background(), true)
	})
	if res.Success || res.ErrorKind != rcon.KindTimeout {
		t.Fatalf("Run() = %+v; want TIMEOUT", res)
	}

	failed := false
	logs, _, err := NewAuditService().ListCommands(1, 10, model.AuditFilter{Success: &failed})
	if err != nil || len(logs) != 1 || logs[0].ErrorKind != string(rcon.KindTimeout) {
		t.Errorf("failed audit entries = %+v, %v", logs, err)
	}
}

func TestRconServiceExecuteDangerousNeedsConfirmation(t *testing.T) {
	setupTestDB(t)
	exec := &fakeExecutor{}
	svc := NewRconService(exec, nil, nil)

	if _, err := svc.Execute(context.Background(), testActor, "stop", false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("Execute(stop) error = %v; want ErrConfirmationRequired", err)
	}
	if len(exec.sent()) != 0 {
		t.Fatalf("sent = %q; want nothing before confirmation", exec.sent())
	}

	res, err := svc.Execute(context.Background(), testActor, "stop", true)
	if err != nil || !res.Success {
		t.Fatalf("Execute(stop, confirm) = %+v, %v", res, err)
	}

	res = svc.ExecuteConsole(context.Background(), "bob", model.RoleOwner, "/time query day")
	if !res.Success || res.Command != "time query day" {
		t.Errorf("ExecuteConsole() = %+v", res)
	}
	if got := exec.sent(); len(got) != 2 || got[1] != "time query day" {
		t.Errorf("sent = %q", got)
	}
}

func TestRconServiceSession(t *testing.T) {
	svc := NewRconService(&fakeExecutor{}, nil, nil)
	if _, ok := svc.Session(); ok {
		t.Error("Session() reported a session for a non-session executor")
	}

	session := mccontrol.NewSessionManager(rcon.Config{Host: "127.0.0.1", Port: 1, Password: "x"})
	defer session.Close()
	info, ok := NewRconService(session, nil, nil).Session()
	if !ok || info.Endpoint != "127.0.0.1:1" || info.State != mccontrol.StateDisconnected {
		t.Errorf("Session() = %+v, %v", info, ok)
	}
}
