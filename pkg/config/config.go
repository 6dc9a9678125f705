package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Lmstfy LmstfyConfig `mapstructure:"lmstfy"`
	STT    STTConfig    `mapstructure:"stt"`
	Worker WorkerConfig `mapstructure:"worker"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 服务配置（apiserver 使用）
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置（投递结果通知频道）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LmstfyConfig Lmstfy 配置（触发队列 / 回调队列）
type LmstfyConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Namespace     string `mapstructure:"namespace"`
	Token         string `mapstructure:"token"`
	TriggerQueue  string `mapstructure:"trigger_queue"`
	CallbackQueue string `mapstructure:"callback_queue"`
}

// STTConfig STT 外联配置（投递目标、锁与重试策略）
type STTConfig struct {
	URL         string        `mapstructure:"url"`          // STT 接收端地址
	Token       string        `mapstructure:"token"`        // 鉴权 Token（Bearer）
	Timeout     time.Duration `mapstructure:"timeout"`      // 外发请求硬超时
	TestMode    bool          `mapstructure:"test_mode"`    // 测试模式：不发起网络请求
	RenderURL   string        `mapstructure:"render_url"`   // 文书渲染服务地址
	Timezone    string        `mapstructure:"timezone"`     // 报文时间戳时区
	LockTimeout time.Duration `mapstructure:"lock_timeout"` // 处理锁超时
	MaxAttempts int           `mapstructure:"max_attempts"` // 重试上限
	RetryDelay  time.Duration `mapstructure:"retry_delay"`  // 失败后固定重试延迟
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name       string           `mapstructure:"name"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	TTR          time.Duration `mapstructure:"ttr"`           // Time-To-Run
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数（批量扫描建议保持 1）
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个任务超时
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadDefault 加载默认配置文件路径
func LoadDefault() (*Config, error) {
	return Load("config/config.yaml")
}

// applyDefaults 填充默认值
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.STT.Timeout == 0 {
		c.STT.Timeout = 30 * time.Second
	}
	if c.STT.Timezone == "" {
		c.STT.Timezone = "America/Sao_Paulo"
	}
	if c.STT.LockTimeout == 0 {
		c.STT.LockTimeout = 5 * time.Minute
	}
	if c.STT.MaxAttempts == 0 {
		c.STT.MaxAttempts = 3
	}
	if c.STT.RetryDelay == 0 {
		c.STT.RetryDelay = 30 * time.Minute
	}
	if c.Worker.Name == "" {
		c.Worker.Name = "stt-relay-worker"
	}
	if c.Worker.Processor.Threads == 0 {
		c.Worker.Processor.Threads = 1
	}
	if c.Worker.Processor.BufferSize == 0 {
		c.Worker.Processor.BufferSize = 8
	}
	if c.Worker.Processor.Timeout == 0 {
		c.Worker.Processor.Timeout = 10 * time.Minute
	}
	if c.Worker.Subscriber.Threads == 0 {
		c.Worker.Subscriber.Threads = 1
	}
	if c.Worker.Subscriber.Rate == 0 {
		c.Worker.Subscriber.Rate = 100 * time.Millisecond
	}
	if c.Worker.Subscriber.Timeout == 0 {
		c.Worker.Subscriber.Timeout = 3 * time.Second
	}
	if c.Worker.Subscriber.TTR == 0 {
		c.Worker.Subscriber.TTR = 15 * time.Minute
	}
	if c.Worker.Subscriber.ErrorBackoff == 0 {
		c.Worker.Subscriber.ErrorBackoff = time.Second
	}
}

// Validate 验证配置完整性
func (c *Config) Validate() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is required")
	}
	if !c.STT.TestMode && c.STT.URL == "" {
		return fmt.Errorf("stt url is required when test_mode is disabled")
	}
	if c.STT.MaxAttempts < 1 {
		return fmt.Errorf("stt max_attempts must be positive")
	}
	return nil
}
