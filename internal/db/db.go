package db

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"city.newnan/mcbot/internal/config"
	"city.newnan/mcbot/internal/model"
)

var (
	// DB 全局数据库连接实例
	DB *gorm.DB
)

// InitDB 初始化数据库连接
func InitDB(cfg *config.Config) error {
	var dialector gorm.Dialector

	switch cfg.DBType {
	case "mysql":
		dialector = mysql.Open(cfg.GetDBConnString())
	case "sqlite":
		// 审计日志与封禁检查会并发写入，WAL 加等待锁避免 database is locked
		dialector = sqlite.Open(cfg.DBPath + "?_journal_mode=WAL&_busy_timeout=5000")
	default:
		return fmt.Errorf("不支持的数据库类型: %s", cfg.DBType)
	}

	logLevel := logger.Warn
	if cfg.Mode == "debug" {
		logLevel = logger.Info
	}

	conn, err := Open(dialector, logLevel)
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		if cfg.DBType == "sqlite" {
			sqlDB.SetMaxOpenConns(1)
		} else {
			sqlDB.SetMaxOpenConns(20)
			sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		}
	}
	DB = conn

	log.WithField("type", cfg.DBType).Info("成功连接到数据库")
	return nil
}

// Open 打开数据库连接但不设置全局实例，测试中用于内存数据库
func Open(dialector gorm.Dialector, logLevel logger.LogLevel) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return conn, nil
}

// CloseDB 关闭数据库连接
func CloseDB() {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			log.Errorf("获取原生数据库连接失败: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			log.Errorf("关闭数据库连接失败: %v", err)
		}
	}
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{&model.User{}, &model.Role{}, &model.AuditLog{}, &model.ServerEvent{}, &model.BanRecord{}}
}

// AutoMigrate 自动迁移模型到数据库，不传参数时迁移 Models()
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	if len(models) == 0 {
		models = Models()
	}
	return DB.AutoMigrate(models...)
}
