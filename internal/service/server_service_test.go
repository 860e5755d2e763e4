package service

import (
	"context"
	"errors"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"city.newnan/mcbot/internal/sse"
	"city.newnan/mcbot/pkg/mccontrol"
)

func newTestServerService(t *testing.T, replicas int32) (*ServerService, *fakeExecutor, *recordingPublisher, *fake.Clientset) {
	t.Helper()
	setupTestDB(t)

	clientset := fake.NewSimpleClientset(&appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: "mc", Namespace: "minecraft"},
		Spec:       appsv1.StatefulSetSpec{Replicas: &replicas},
	})
	controller := mccontrol.NewServerController(clientset, mccontrol.K8sConfig{
		Namespace:        "minecraft",
		StatefulSetName:  "mc",
		PodLabelSelector: "app=minecraft",
	}, 25565)
	t.Cleanup(controller.Close)

	exec := &fakeExecutor{}
	pub := &recordingPublisher{}
	audit := NewAuditService()
	svc := NewServerService(controller, NewRconService(exec, audit, nil), audit, pub, "", 0)
	return svc, exec, pub, clientset
}

func TestServerServiceStartStop(t *testing.T) {
	svc, exec, pub, clientset := newTestServerService(t, 0)
	ctx := context.Background()

	if err := svc.Start(ctx, testActor); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := svc.Stop(ctx, testActor); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := exec.sent(); len(got) != 2 || got[0] != "save-all flush" || got[1] != "stop" {
		t.Errorf("sent = %q", got)
	}
	sts, _ := clientset.AppsV1().StatefulSets("minecraft").Get(ctx, "mc", metav1.GetOptions{})
	if *sts.Spec.Replicas != 0 {
		t.Errorf("replicas = %d; want 0", *sts.Spec.Replicas)
	}

	events, total, err := NewAuditService().ListEvents(1, 10)
	if err != nil || total != 2 {
		t.Fatalf("ListEvents() = %d, %v; want 2", total, err)
	}
	if events[0].Event != "stop" || events[1].Event != "start" || !events[0].Success || events[0].Actor != "alice" {
		t.Errorf("events = %+v", events)
	}

	published := pub.published()
	if len(published) != 2 || published[0].topic != sse.TopicServer || published[0].event != "start" {
		t.Errorf("published = %+v", published)
	}
}

func TestServerServiceRestartWithoutPod(t *testing.T) {
	svc, exec, _, _ := newTestServerService(t, 1)

	err := svc.Restart(context.Background(), testActor)
	if !errors.Is(err, mccontrol.ErrNoPod) {
		t.Fatalf("Restart() error = %v; want ErrNoPod", err)
	}
	if got := exec.sent(); len(got) != 1 || got[0] != "save-all flush" {
		t.Errorf("sent = %q", got)
	}

	events, _, _ := NewAuditService().ListEvents(1, 10)
	if len(events) != 1 || events[0].Success || events[0].Detail == "" {
		t.Errorf("events = %+v; want one failed restart", events)
	}
}

func TestServerServiceWithoutKubernetes(t *testing.T) {
	setupTestDB(t)
	svc := NewServerService(nil, NewRconService(&fakeExecutor{}, nil, nil), NewAuditService(), nil, "127.0.0.1", 1)
	ctx := context.Background()

	if svc.LifecycleEnabled() {
		t.Error("LifecycleEnabled() = true without a controller")
	}
	for name, call := range map[string]func() error{
		"start":   func() error { return svc.Start(ctx, testActor) },
		"stop":    func() error { return svc.Stop(ctx, testActor) },
		"restart": func() error { return svc.Restart(ctx, testActor) },
	} {
		if err := call(); !errors.Is(err, ErrLifecycleUnavailable) {
			t.Errorf("%s error = %v; want ErrLifecycleUnavailable", name, err)
		}
	}
	if _, err := svc.Logs(ctx, 10); !errors.Is(err, ErrLifecycleUnavailable) {
		t.Errorf("Logs() error = %v", err)
	}
}

func TestServerServiceMonitoringTransitions(t *testing.T) {
	setupTestDB(t)
	pub := &recordingPublisher{}
	svc := NewServerService(nil, NewRconService(&fakeExecutor{}, nil, nil), NewAuditService(), pub, "", 0)

	online := true
	svc.status = func() (*mccontrol.ServerStatus, error) {
		return &mccontrol.ServerStatus{Online: online}, nil
	}

	if !svc.checkOnce() {
		t.Error("first check did not report a change")
	}
	if svc.checkOnce() {
		t.Error("unchanged status reported a change")
	}
	online = false
	if !svc.checkOnce() {
		t.Error("going offline did not report a change")
	}

	events, _, _ := NewAuditService().ListEvents(1, 10)
	if len(events) != 2 || events[0].Event != "offline" || events[1].Event != "online" {
		t.Errorf("events = %+v", events)
	}
	if got := len(pub.published()); got != 3 {
		t.Errorf("published %d status events; want 3", got)
	}
}

func TestServerServiceLogEvents(t *testing.T) {
	svc, _, pub, _ := newTestServerService(t, 1)
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.Local)

	lines := []string{
		"[19:58:01] [Server thread/INFO]: Steve joined the game",
		"[19:58:10] [Server thread/INFO]: <Steve> 大家好",
		"[19:58:20] [Server thread/WARN]: Can't keep up! Is the server overloaded?",
		"[19:59:00] [Server thread/INFO]: Steve was slain by Zombie",
		"[19:59:30] [Server thread/INFO]: Steve has made the advancement [Stone Age]",
	}
	for _, line := range lines {
		event, ok := mccontrol.ParseLogEvent(line, now)
		if !ok {
			t.Fatalf("ParseLogEvent(%q) not recognized", line)
		}
		svc.handleLogEvent(event)
	}

	events, total, err := NewAuditService().ListEvents(1, 10)
	if err != nil || total != 3 {
		t.Fatalf("ListEvents() = %d, %v; want 3", total, err)
	}
	want := []string{"advancement", "death", "join"}
	for i, e := range events {
		if e.Event != want[i] || e.Player != "Steve" || e.Actor != SystemActor.Username {
			t.Errorf("events[%d] = %+v; want %s by Steve", i, e, want[i])
		}
	}
	if !events[2].CreatedAt.Equal(time.Date(2024, 5, 1, 19, 58, 1, 0, time.Local)) {
		t.Errorf("join CreatedAt = %v", events[2].CreatedAt)
	}

	published := pub.published()
	if len(published) != 4 {
		t.Fatalf("published %d events; want 4 (warning skipped)", len(published))
	}
	if published[1].topic != sse.TopicServer || published[1].event != "chat" {
		t.Errorf("published[1] = %+v; want server chat", published[1])
	}
}
