package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 REWRITEDNS_SERVER_HTTP
const EnvPrefix = "REWRITEDNS"

// Config 应用配置结构
type Config struct {
	// 基础配置
	App struct {
		Name        string `yaml:"name" mapstructure:"name"`
		Version     string `yaml:"version" mapstructure:"version"`
		Environment string `yaml:"environment" mapstructure:"environment"`
		Debug       bool   `yaml:"debug" mapstructure:"debug"`
	} `yaml:"app" mapstructure:"app"`

	// 服务器配置
	Server struct {
		DNS  string `yaml:"dns" mapstructure:"dns"`
		HTTP string `yaml:"http" mapstructure:"http"`
	} `yaml:"server" mapstructure:"server"`

	// 数据库配置
	Database struct {
		Type       string `yaml:"type" mapstructure:"type"`
		SQLiteFile string `yaml:"sqlite_file" mapstructure:"sqlite_file"`
		RulesFile  string `yaml:"rules_file" mapstructure:"rules_file"`
		MaxConn    int    `yaml:"max_conn" mapstructure:"max_conn"`
		Timeout    int    `yaml:"timeout" mapstructure:"timeout"`
	} `yaml:"database" mapstructure:"database"`

	// 日志配置
	Logging struct {
		Level      string `yaml:"level" mapstructure:"level"`
		Format     string `yaml:"format" mapstructure:"format"`
		Output     string `yaml:"output" mapstructure:"output"`
		MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
		MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
		MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	} `yaml:"logging" mapstructure:"logging"`

	// 监控配置
	Monitoring struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"monitoring" mapstructure:"monitoring"`

	// 安全配置
	Security struct {
		AdminToken string `yaml:"admin_token" mapstructure:"admin_token"`
	} `yaml:"security" mapstructure:"security"`

	// 上游 DNS 配置
	Upstream struct {
		Servers  []string `yaml:"servers" mapstructure:"servers"`
		Timeout  int      `yaml:"timeout" mapstructure:"timeout"`
		CacheTTL int      `yaml:"cache_ttl" mapstructure:"cache_ttl"`
		CacheMax int      `yaml:"cache_max" mapstructure:"cache_max"`
	} `yaml:"upstream" mapstructure:"upstream"`

	// 重写应答配置
	Rewrites struct {
		TTL uint32 `yaml:"ttl" mapstructure:"ttl"`
	} `yaml:"rewrites" mapstructure:"rewrites"`

	// 终端管理界面配置
	Console struct {
		API            string `yaml:"api" mapstructure:"api"`
		Token          string `yaml:"token" mapstructure:"token"`
		Lang           string `yaml:"lang" mapstructure:"lang"`
		SearchDebounce int    `yaml:"search_debounce_ms" mapstructure:"search_debounce_ms"`
		RequestTimeout int    `yaml:"request_timeout" mapstructure:"request_timeout"`
	} `yaml:"console" mapstructure:"console"`
}

// LoadConfig 加载配置文件，环境变量可覆盖文件中的值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 如果未指定配置文件，使用默认路径
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	setDefaults(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// Default 返回仅由默认值构成的配置
func Default() *Config {
	var config Config
	setDefaults(&config)
	return &config
}

// bindEnv AutomaticEnv 只对已知的键生效，这里显式登记可被覆盖的键
func bindEnv(v *viper.Viper) {
	keys := []string{
		"app.name", "app.environment", "app.debug",
		"server.dns", "server.http",
		"database.type", "database.sqlite_file", "database.rules_file", "database.max_conn", "database.timeout",
		"logging.level", "logging.format", "logging.output",
		"logging.max_size", "logging.max_backups", "logging.max_age",
		"monitoring.enabled", "monitoring.path",
		"security.admin_token",
		"upstream.servers", "upstream.timeout", "upstream.cache_ttl", "upstream.cache_max",
		"rewrites.ttl",
		"console.api", "console.token", "console.lang", "console.search_debounce_ms", "console.request_timeout",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// getDefaultConfigPath 获取默认配置文件路径
func getDefaultConfigPath() string {
	// 按优先级查找配置文件
	paths := []string{
		"configs/config.yaml",
		"config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "configs/config.yaml"
}

// setDefaults 设置默认配置值
func setDefaults(config *Config) {
	if config.App.Name == "" {
		config.App.Name = "RewriteDNS"
	}
	if config.App.Version == "" {
		config.App.Version = "1.0.0"
	}
	if config.App.Environment == "" {
		config.App.Environment = "development"
	}

	if config.Server.DNS == "" {
		config.Server.DNS = ":53"
	}
	if config.Server.HTTP == "" {
		config.Server.HTTP = ":8080"
	}

	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.SQLiteFile == "" {
		config.Database.SQLiteFile = "data/rewritedns.db"
	}
	if config.Database.RulesFile == "" {
		config.Database.RulesFile = "data/rewrites.yaml"
	}
	if config.Database.MaxConn == 0 {
		config.Database.MaxConn = 1
	}
	if config.Database.Timeout == 0 {
		config.Database.Timeout = 30
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
		if config.IsDevelopment() {
			config.Logging.Format = "text"
		}
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = 100
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = 3
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = 28
	}

	if config.Monitoring.Path == "" {
		config.Monitoring.Path = "/metrics"
	}

	if len(config.Upstream.Servers) == 0 {
		config.Upstream.Servers = []string{"223.5.5.5:53", "8.8.8.8:53"}
	}
	if config.Upstream.Timeout == 0 {
		config.Upstream.Timeout = 3
	}
	if config.Upstream.CacheTTL == 0 {
		config.Upstream.CacheTTL = 300
	}
	if config.Upstream.CacheMax == 0 {
		config.Upstream.CacheMax = 4096
	}

	if config.Rewrites.TTL == 0 {
		config.Rewrites.TTL = 10
	}

	if config.Console.API == "" {
		config.Console.API = "http://" + localAddr(config.Server.HTTP)
	}
	if config.Console.Token == "" {
		config.Console.Token = config.Security.AdminToken
	}
	if config.Console.Lang == "" {
		config.Console.Lang = "zh"
	}
	if config.Console.SearchDebounce == 0 {
		config.Console.SearchDebounce = 500
	}
	if config.Console.RequestTimeout == 0 {
		config.Console.RequestTimeout = 10
	}
}

// localAddr 将监听地址转换为本机可访问的地址
func localAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if config.Server.DNS == "" {
		return fmt.Errorf("DNS 服务器端口不能为空")
	}
	if config.Server.HTTP == "" {
		return fmt.Errorf("HTTP 服务器端口不能为空")
	}

	switch config.Database.Type {
	case "sqlite":
		if config.Database.SQLiteFile == "" {
			return fmt.Errorf("SQLite 文件路径不能为空")
		}
	case "file":
		if config.Database.RulesFile == "" {
			return fmt.Errorf("规则文件路径不能为空")
		}
	default:
		return fmt.Errorf("不支持的数据库类型: %s", config.Database.Type)
	}

	if !isValidLogLevel(config.Logging.Level) {
		return fmt.Errorf("无效的日志级别: %s", config.Logging.Level)
	}

	if config.Console.SearchDebounce < 0 {
		return fmt.Errorf("搜索防抖时间不能为负数")
	}

	return nil
}

// isValidLogLevel 验证日志级别
func isValidLogLevel(level string) bool {
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	level = strings.ToLower(level)
	for _, valid := range validLevels {
		if level == valid {
			return true
		}
	}
	return false
}

// SaveConfig 保存配置到文件
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// LogLevel 实际使用的日志级别，app.debug 打开时强制为 debug
func (c *Config) LogLevel() string {
	if c.App.Debug {
		return "debug"
	}
	return c.Logging.Level
}

// DatabaseTimeout SQLite 等待锁的超时
func (c *Config) DatabaseTimeout() time.Duration {
	return time.Duration(c.Database.Timeout) * time.Second
}

// UpstreamTimeout 上游请求超时
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.Timeout) * time.Second
}

// UpstreamCacheTTL 上游应答缓存时间
func (c *Config) UpstreamCacheTTL() time.Duration {
	return time.Duration(c.Upstream.CacheTTL) * time.Second
}

// SearchDebounce 终端搜索框的防抖间隔
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.Console.SearchDebounce) * time.Millisecond
}

// ConsoleRequestTimeout 终端调用管理接口的超时
func (c *Config) ConsoleRequestTimeout() time.Duration {
	return time.Duration(c.Console.RequestTimeout) * time.Second
}
