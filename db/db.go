package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"power-grid/algo"
	"power-grid/config"
	"power-grid/model"
)

// Store 基于 PostgreSQL 的供电图存储, 对 API 只读
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open 连接数据库并自动迁移表结构
// 带重试 (容器启动时数据库可能还没准备好)
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode,
	)
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	retries := max(cfg.MaxRetries, 1)

	var (
		conn *gorm.DB
		err  error
	)
	for i := 0; i < retries; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err == nil {
			break
		}
		log.Warn("等待数据库就绪", "attempt", i+1, "max", retries, "error", err)
		if i == retries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryInterval):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	// 自动迁移模式 (自动创建表结构)
	if err := conn.WithContext(ctx).AutoMigrate(&model.Component{}, &model.Flow{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	log.Info("数据库连接并初始化成功", "host", cfg.Host, "db", cfg.Name)
	return &Store{db: conn, logger: log}, nil
}

// NewStore 使用已有连接创建 Store
func NewStore(conn *gorm.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: conn, logger: log}
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连通性
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// LoadGraph 读取全部组件和供电边, 实现 algo.GraphSource
// 组件按 (type, name, id) 排序, 边按导入顺序, 保证溯源的并列结果稳定
func (s *Store) LoadGraph(ctx context.Context) (*algo.Graph, error) {
	var components []model.Component
	if err := s.db.WithContext(ctx).Order("type, name, id").Find(&components).Error; err != nil {
		return nil, fmt.Errorf("读取组件失败: %w", err)
	}

	var flows []model.Flow
	if err := s.db.WithContext(ctx).Order("id").Find(&flows).Error; err != nil {
		return nil, fmt.Errorf("读取供电边失败: %w", err)
	}

	return algo.BuildGraph(components, flows), nil
}

// GetComponent 根据 ID 获取组件, 不存在时返回 nil
func (s *Store) GetComponent(ctx context.Context, id string) (*model.Component, error) {
	var c model.Component
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取组件失败: %w", err)
	}
	return &c, nil
}

// ListComponents 列出组件, componentType 为空时返回全部
func (s *Store) ListComponents(ctx context.Context, componentType model.ComponentType) ([]model.Component, error) {
	q := s.db.WithContext(ctx).Order("type, name, id")
	if componentType != "" {
		q = q.Where("type = ?", componentType)
	}

	var out []model.Component
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("读取组件失败: %w", err)
	}
	return out, nil
}

// CountComponents 组件总数
func (s *Store) CountComponents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Component{}).Count(&n).Error
	return n, err
}
