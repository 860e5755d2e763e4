package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

func newModeration(t *testing.T) (*ModerationService, *fakeExecutor, *recordingPublisher) {
	t.Helper()
	setupTestDB(t)
	exec := &fakeExecutor{}
	pub := &recordingPublisher{}
	svc := NewModerationService(NewRconService(exec, NewAuditService(), nil), pub)
	return svc, exec, pub
}

func TestBanWithDuration(t *testing.T) {
	svc, exec, pub := newModeration(t)
	ctx := context.Background()

	before := time.Now()
	record, res, err := svc.Ban(ctx, testActor, model.BanRequest{Player: "Griefer", Reason: "griefing", Duration: "7d"})
	if err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if !res.Success || res.Command != "ban Griefer griefing" {
		t.Errorf("result = %+v", res)
	}
	if record.ExpiresAt == nil || record.ExpiresAt.Before(before.Add(7*24*time.Hour)) {
		t.Errorf("ExpiresAt = %v; want about 7 days from now", record.ExpiresAt)
	}
	if !record.Active || record.BannedBy != "alice" {
		t.Errorf("record = %+v", record)
	}
	if got := exec.sent(); len(got) != 1 {
		t.Errorf("sent = %q", got)
	}
	if events := pub.published(); len(events) != 1 || events[0].topic != sse.TopicBans || events[0].event != "ban" {
		t.Errorf("published = %+v", events)
	}
}

func TestBanReplacesActiveRecord(t *testing.T) {
	svc, _, _ := newModeration(t)
	ctx := context.Background()

	if _, _, err := svc.Ban(ctx, testActor, model.BanRequest{Player: "Griefer", Duration: "1d"}); err != nil {
		t.Fatalf("first Ban() error = %v", err)
	}
	if _, _, err := svc.Ban(ctx, testActor, model.BanRequest{Player: "Griefer"}); err != nil {
		t.Fatalf("second Ban() error = %v", err)
	}

	active, total, err := svc.ListBans(true, 1, 10)
	if err != nil || total != 1 {
		t.Fatalf("ListBans(active) = %d, %v; want 1", total, err)
	}
	if active[0].ExpiresAt != nil {
		t.Errorf("active record = %+v; want the permanent ban", active[0])
	}
	if _, all, _ := svc.ListBans(false, 1, 10); all != 2 {
		t.Errorf("ListBans(all) total = %d; want 2", all)
	}
}

func TestBanRejectsInvalidInput(t *testing.T) {
	svc, exec, _ := newModeration(t)
	ctx := context.Background()

	tests := []model.BanRequest{
		{Player: "Griefer", Duration: "10s"},
		{Player: "Griefer", Duration: "1d", IP: true},
		{Player: "Griefer", IP: true},
		{Player: "x", Duration: "1d"},
	}
	for _, req := range tests {
		_, res, err := svc.Ban(ctx, testActor, req)
		if err == nil || res.ErrorKind != rcon.KindInvalidArgument {
			t.Errorf("Ban(%+v) = %+v, %v; want INVALID_ARGUMENT", req, res, err)
		}
	}
	if got := exec.sent(); len(got) != 0 {
		t.Errorf("sent = %q; want nothing", got)
	}

	var count int64
	db.DB.Model(&model.BanRecord{}).Count(&count)
	if count != 0 {
		t.Errorf("ban records = %d; want 0", count)
	}
}

func TestTimedIPBan(t *testing.T) {
	svc, exec, _ := newModeration(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	record, _, err := svc.Ban(context.Background(), testActor, model.BanRequest{Player: "10.0.0.8", Duration: "12h", IP: true})
	if err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if !record.IP || record.ExpiresAt == nil || !record.ExpiresAt.Equal(now.Add(12*time.Hour)) {
		t.Errorf("record = %+v", record)
	}
	if got := exec.sent(); len(got) != 1 || got[0] != "ban-ip 10.0.0.8" {
		t.Errorf("sent = %q", got)
	}
}

func TestPardonIPLiftsRecord(t *testing.T) {
	svc, exec, _ := newModeration(t)
	ctx := context.Background()

	if _, _, err := svc.Ban(ctx, testActor, model.BanRequest{Player: "10.0.0.8", IP: true}); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if _, err := svc.Pardon(ctx, testActor, "10.0.0.8", true); err != nil {
		t.Fatalf("Pardon() error = %v", err)
	}
	if got := exec.sent(); got[len(got)-1] != "pardon-ip 10.0.0.8" {
		t.Errorf("last command = %q", got[len(got)-1])
	}
	if _, active, _ := svc.ListBans(true, 1, 10); active != 0 {
		t.Errorf("active bans = %d; want 0", active)
	}
}

func TestPardonLiftsRecord(t *testing.T) {
	svc, exec, _ := newModeration(t)
	ctx := context.Background()

	if _, _, err := svc.Ban(ctx, testActor, model.BanRequest{Player: "Griefer"}); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}
	if _, err := svc.Pardon(ctx, testActor, "Griefer", false); err != nil {
		t.Fatalf("Pardon() error = %v", err)
	}
	if got := exec.sent(); got[len(got)-1] != "pardon Griefer" {
		t.Errorf("last command = %q", got[len(got)-1])
	}

	var record model.BanRecord
	if err := db.DB.First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Active || record.LiftedBy != "alice" || record.LiftedAt == nil {
		t.Errorf("record after pardon = %+v", record)
	}
}

func TestExpireBans(t *testing.T) {
	svc, exec, _ := newModeration(t)
	ctx := context.Background()

	for _, req := range []model.BanRequest{
		{Player: "Shortban", Duration: "1h"},
		{Player: "Longban", Duration: "2w"},
		{Player: "Forever"},
	} {
		if _, _, err := svc.Ban(ctx, testActor, req); err != nil {
			t.Fatalf("Ban(%s) error = %v", req.Player, err)
		}
	}

	// 服务器不可达时记录保持生效
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	exec.setFail(rcon.KindConnectionRefused)
	lifted, err := svc.ExpireBans(ctx)
	if lifted != 0 || err == nil {
		t.Fatalf("ExpireBans() while unreachable = %d, %v; want 0 and an error", lifted, err)
	}
	var cmdErr *mccontrol.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Kind != rcon.KindConnectionRefused {
		t.Errorf("ExpireBans() error = %v; want CONNECTION_REFUSED", err)
	}

	exec.setFail(rcon.KindNone)
	lifted, err = svc.ExpireBans(ctx)
	if err != nil || lifted != 1 {
		t.Fatalf("ExpireBans() = %d, %v; want 1", lifted, err)
	}
	if got := exec.sent(); got[len(got)-1] != "pardon Shortban" {
		t.Errorf("last command = %q", got[len(got)-1])
	}

	active, _, _ := svc.ListBans(true, 1, 10)
	if len(active) != 2 {
		t.Errorf("active bans = %d; want 2", len(active))
	}
	var lifted1 model.BanRecord
	db.DB.Where("player = ?", "Shortban").First(&lifted1)
	if lifted1.Active || lifted1.LiftedBy != SystemActor.Username {
		t.Errorf("expired record = %+v", lifted1)
	}
}
