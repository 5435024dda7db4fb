package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// SQLiteManager SQLite 存储管理器
type SQLiteManager struct {
	db *sql.DB
}

// NewSQLiteManager 创建新的 SQLite 管理器；busyTimeout 为等待写锁的最长时间
func NewSQLiteManager(dbPath string, maxConn int, busyTimeout time.Duration) (*SQLiteManager, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", dbPath, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 只支持单个写连接
	if maxConn <= 0 {
		maxConn = 1
	}
	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxConn)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &SQLiteManager{db: db}, nil
}

// createTables 创建数据库表
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rewrite_rules (
			position INTEGER NOT NULL,
			domain TEXT NOT NULL,
			answer TEXT NOT NULL,
			created_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`,
		"CREATE INDEX IF NOT EXISTS idx_rewrite_rules_position ON rewrite_rules(position)",
		"CREATE INDEX IF NOT EXISTS idx_rewrite_rules_domain ON rewrite_rules(domain)",
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// LoadRules 按原有顺序读取全部规则
func (sm *SQLiteManager) LoadRules(ctx context.Context) ([]rewrite.Rule, error) {
	rows, err := sm.db.QueryContext(ctx, "SELECT domain, answer FROM rewrite_rules ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("查询重写规则失败: %w", err)
	}
	defer rows.Close()

	var rules []rewrite.Rule
	for rows.Next() {
		var r rewrite.Rule
		if err := rows.Scan(&r.Domain, &r.Answer); err != nil {
			return nil, fmt.Errorf("读取重写规则失败: %w", err)
		}
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// SaveRules 在一个事务中整体替换规则表
func (sm *SQLiteManager) SaveRules(ctx context.Context, rules []rewrite.Rule) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	tx, err := sm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rewrite_rules"); err != nil {
		return fmt.Errorf("清空重写规则失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO rewrite_rules (position, domain, answer) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("准备插入语句失败: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		if _, err := stmt.ExecContext(ctx, i, r.Domain, r.Answer); err != nil {
			return fmt.Errorf("写入重写规则失败: %w", err)
		}
	}

	return tx.Commit()
}

// Close 关闭数据库连接
func (sm *SQLiteManager) Close() error {
	return sm.db.Close()
}
