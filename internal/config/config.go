package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Task       TaskConfig       `mapstructure:"task"`
	Log        LogConfig        `mapstructure:"log"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Governance GovernanceConfig `mapstructure:"governance"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"` // gorm 日志级别: silent, error, warn, info
}

// DSN postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ChainConfig Sui 链配置
type ChainConfig struct {
	RpcUrl      string   `mapstructure:"rpc_url"`      // Sui JSON-RPC 节点
	PackageId   string   `mapstructure:"package_id"`   // Move 合约包ID
	Modules     []string `mapstructure:"modules"`      // 需要同步事件的模块，按顺序处理
	PageSize    int      `mapstructure:"page_size"`    // 每次拉取的事件数量
	RateLimit   float64  `mapstructure:"rate_limit"`   // 每秒最大请求数
	MaxRetries  int      `mapstructure:"max_retries"`  // RPC 失败重试次数
	CallTimeout int      `mapstructure:"call_timeout"` // 单次调用超时（秒）
}

// TaskConfig 定时任务间隔（秒）
type TaskConfig struct {
	SyncInterval   int `mapstructure:"sync_interval"`
	ExpiryInterval int `mapstructure:"expiry_interval"`
	SweepInterval  int `mapstructure:"sweep_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // 缓存有效期（秒）
}

type LedgerConfig struct {
	ToleranceBps int64 `mapstructure:"tolerance_bps"` // 允许超出目标的基点
	FeeBps       int64 `mapstructure:"fee_bps"`       // 平台存入手续费基点
}

type GovernanceConfig struct {
	ProposalTTL  time.Duration `mapstructure:"proposal_ttl"`  // 0 表示提案永不过期
	TentativeTTL time.Duration `mapstructure:"tentative_ttl"` // 未确认记录的保留时间
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 读取配置文件和 COLLECTIVO_ 前缀的环境变量；path 为空时按默认路径查找
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/collectivo")
	}

	setDefaults(v)

	v.SetEnvPrefix("COLLECTIVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "collectivo")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("chain.rpc_url", "https://fullnode.testnet.sui.io:443")
	v.SetDefault("chain.modules", []string{"campaign", "proposal"})
	v.SetDefault("chain.page_size", 50)
	v.SetDefault("chain.rate_limit", 10)
	v.SetDefault("chain.max_retries", 3)
	v.SetDefault("chain.call_timeout", 15)
	v.SetDefault("task.sync_interval", 10)
	v.SetDefault("task.expiry_interval", 60)
	v.SetDefault("task.sweep_interval", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 30)
	v.SetDefault("ledger.tolerance_bps", 100)
	v.SetDefault("ledger.fee_bps", 100)
	v.SetDefault("governance.proposal_ttl", "0s")
	v.SetDefault("governance.tentative_ttl", "10m")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate 检查配置取值范围
func (c *Config) Validate() error {
	if c.Ledger.ToleranceBps < 0 {
		return fmt.Errorf("ledger.tolerance_bps must not be negative, got %d", c.Ledger.ToleranceBps)
	}
	if c.Ledger.FeeBps < 0 {
		return fmt.Errorf("ledger.fee_bps must not be negative, got %d", c.Ledger.FeeBps)
	}
	if c.Chain.PageSize <= 0 {
		return fmt.Errorf("chain.page_size must be positive, got %d", c.Chain.PageSize)
	}
	if c.Governance.ProposalTTL < 0 || c.Governance.TentativeTTL < 0 {
		return errors.New("governance ttl values must not be negative")
	}
	return nil
}
