package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	"city.newnan/mcbot/internal/db"
	"city.newnan/mcbot/internal/middleware"
	"city.newnan/mcbot/internal/model"
	"city.newnan/mcbot/pkg/mccontrol"
	"city.newnan/mcbot/pkg/rcon"
)

// setupTestDB 使用独立的内存数据库替换全局连接
func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	conn, err := db.Open(sqlite.Open(dsn), logger.Silent)
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	prev := db.DB
	db.DB = conn
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
		db.DB = prev
	})

	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	if err := middleware.InitCasbin(""); err != nil {
		t.Fatalf("初始化Casbin失败: %v", err)
	}
}

type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	failKind rcon.ErrorKind
}

func (e *fakeExecutor) Execute(_ context.Context, command string) mccontrol.CommandResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	if e.failKind != rcon.KindNone {
		return mccontrol.CommandResult{Command: command, ErrorKind: e.failKind, Error: "unreachable"}
	}
	return mccontrol.CommandResult{Command: command, Success: true, Output: "ok"}
}

func (e *fakeExecutor) setFail(kind rcon.ErrorKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failKind = kind
}

func (e *fakeExecutor) sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

type publishedEvent struct {
	topic, event string
	data         interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(topic, event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, event, data})
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

var testActor = Actor{Username: "alice", Role: model.RoleAdmin, Source: SourceAPI}
