package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// FileManager 基于 YAML 文件的规则存储
type FileManager struct {
	mu   sync.Mutex
	path string
}

type rulesFile struct {
	Rewrites []rewrite.Rule `yaml:"rewrites"`
}

// NewFileManager 创建文件存储管理器
func NewFileManager(path string) *FileManager {
	return &FileManager{path: path}
}

// LoadRules 读取规则文件；文件不存在时返回空列表
func (fm *FileManager) LoadRules(ctx context.Context) ([]rewrite.Rule, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	data, err := os.ReadFile(fm.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取规则文件失败: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析规则文件失败: %w", err)
	}

	return f.Rewrites, nil
}

// SaveRules 先写临时文件再原子性重命名
func (fm *FileManager) SaveRules(ctx context.Context, rules []rewrite.Rule) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fm.path), 0755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}

	data, err := yaml.Marshal(rulesFile{Rewrites: rules})
	if err != nil {
		return fmt.Errorf("编码数据失败: %w", err)
	}

	tempFile := fm.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}

	if err := os.Rename(tempFile, fm.path); err != nil {
		return fmt.Errorf("重命名文件失败: %w", err)
	}

	return nil
}

// Close 文件存储无需释放资源
func (fm *FileManager) Close() error {
	return nil
}
