package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Service    string `yaml:"service"`
}

// NewLogger 创建结构化日志记录器，返回的 io.Closer 用于关闭日志文件
func NewLogger(config Config) (zerolog.Logger, io.Closer, error) {
	out, closer, toFile, err := openOutput(config)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	if strings.EqualFold(config.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05.000", NoColor: toFile}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if config.Service != "" {
		ctx = ctx.Str("service", config.Service)
	}

	return ctx.Logger().Level(ParseLevel(config.Level)), closer, nil
}

// ParseLevel 解析日志级别，无法识别时使用 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openOutput 设置日志输出；文件输出按大小轮转
func openOutput(config Config) (io.Writer, io.Closer, bool, error) {
	switch config.Output {
	case "", "stdout":
		return os.Stdout, nopCloser{}, false, nil
	case "stderr":
		return os.Stderr, nopCloser{}, false, nil
	}

	path := config.Output
	if config.Output == "file" {
		path = "logs/rewritedns.log"
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, false, fmt.Errorf("创建日志目录失败: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		LocalTime:  true,
		Compress:   true,
	}

	return lj, lj, true, nil
}
