package storage

import (
	"context"
	"fmt"

	"github.com/winspan/rewritedns/internal/rewrite"
	"github.com/winspan/rewritedns/pkg/config"
)

// StorageManager 重写规则存储接口
type StorageManager interface {
	rewrite.Persister

	// 生命周期管理
	Close() error
}

// NewStorageManager 根据配置创建相应的存储管理器
func NewStorageManager(cfg *config.Config) (StorageManager, error) {
	switch cfg.Database.Type {
	case "file":
		return NewFileManager(cfg.Database.RulesFile), nil
	case "sqlite", "":
		return NewSQLiteManager(cfg.Database.SQLiteFile, cfg.Database.MaxConn, cfg.DatabaseTimeout())
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", cfg.Database.Type)
	}
}

var (
	_ StorageManager = (*SQLiteManager)(nil)
	_ StorageManager = (*FileManager)(nil)
)

// ctxErr 请求已取消时不再写入
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
