package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// WalletConfig 钱包配置
type WalletConfig struct {
	PrivateKey    string `yaml:"-"` // 永不写入配置文件
	FunderAddress string `yaml:"funder_address"`
}

// WhaleConfig 跟单目标配置
type WhaleConfig struct {
	// Address 目标鲸鱼地址（0x 前缀，大小写不敏感）
	Address string `yaml:"address"`
}

// FeedConfig 事件源配置
type FeedConfig struct {
	// WSSURL Polygon 节点 WSS 端点
	WSSURL string `yaml:"wss_url"`
}

// TradingConfig 交易配置
type TradingConfig struct {
	// EnableTrading 交易总开关，关闭时事件只审计不下单
	EnableTrading bool `yaml:"enable_trading"`

	// MockTrading 干跑模式：合成成交，不发真实请求
	MockTrading bool `yaml:"mock_trading"`

	// ScalingRatio 鲸鱼份额到本地份额的缩放比例
	ScalingRatio float64 `yaml:"scaling_ratio"`

	// MinWhaleShares 最小跟单份额阈值
	MinWhaleShares float64 `yaml:"min_whale_shares"`

	// ResubmitPriceIncrement 大额重试链的价格让步
	ResubmitPriceIncrement float64 `yaml:"resubmit_price_increment"`
}

// RiskConfig 风控配置
type RiskConfig struct {
	LargeTradeShares   float64 `yaml:"large_trade_shares"`
	ConsecutiveTrigger int     `yaml:"consecutive_trigger"`
	SequenceWindowSecs int     `yaml:"sequence_window_secs"`
	MinDepthUSD        float64 `yaml:"min_depth_usd"`
	TripDurationSecs   int     `yaml:"trip_duration_secs"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config 应用配置。
// 环境变量为主（.env 经 godotenv 加载），CONFIG_FILE 指向的
// YAML 文件可覆盖非敏感项。私钥只从环境或密钥库读取。
type Config struct {
	Wallet  WalletConfig  `yaml:"wallet"`
	Whale   WhaleConfig   `yaml:"whale"`
	Feed    FeedConfig    `yaml:"feed"`
	Trading TradingConfig `yaml:"trading"`
	Risk    RiskConfig    `yaml:"risk"`
	Log     LogConfig     `yaml:"log"`

	// AuditFile 审计 CSV 路径
	AuditFile string `yaml:"audit_file"`

	// MetricsAddr expvar/pprof 监听地址，空则不启动
	MetricsAddr string `yaml:"metrics_addr"`

	// SecretStorePath Badger 密钥库路径，未设置 PRIVATE_KEY 时私钥从库中读取
	SecretStorePath string `yaml:"secret_store_path"`

	// SecretStoreKey 密钥库的加密密钥（hex 或 base64，32 字节）
	SecretStoreKey string `yaml:"-"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			EnableTrading:          false,
			MockTrading:            true,
			ScalingRatio:           0.02,
			MinWhaleShares:         10,
			ResubmitPriceIncrement: 0.01,
		},
		Risk: RiskConfig{
			LargeTradeShares:   2000,
			ConsecutiveTrigger: 5,
			SequenceWindowSecs: 40,
			MinDepthUSD:        200,
			TripDurationSecs:   18000,
		},
		Log: LogConfig{
			Level: "info",
			File:  "logs/combined.log",
		},
		AuditFile: "trades_audit.csv",
	}
}

// Load 按 默认值 → YAML 覆盖 → 环境变量覆盖 的顺序构建配置
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.mergeEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	envStr(&c.Wallet.PrivateKey, "PRIVATE_KEY")
	envStr(&c.Wallet.FunderAddress, "FUNDER_ADDRESS")
	envStr(&c.Whale.Address, "TARGET_WHALE_ADDRESS")
	envStr(&c.Feed.WSSURL, "WSS_URL")

	envBool(&c.Trading.EnableTrading, "ENABLE_TRADING")
	envBool(&c.Trading.MockTrading, "MOCK_TRADING")
	envFloat(&c.Trading.ScalingRatio, "SCALING_RATIO")
	envFloat(&c.Trading.MinWhaleShares, "MIN_WHALE_SHARES_TO_COPY")
	envFloat(&c.Trading.ResubmitPriceIncrement, "RESUBMIT_PRICE_INCREMENT")

	envFloat(&c.Risk.LargeTradeShares, "LARGE_TRADE_SHARES")
	envInt(&c.Risk.ConsecutiveTrigger, "CONSECUTIVE_TRIGGER")
	envInt(&c.Risk.SequenceWindowSecs, "SEQUENCE_WINDOW_SECS")
	envFloat(&c.Risk.MinDepthUSD, "MIN_DEPTH_BEYOND_USD")
	envInt(&c.Risk.TripDurationSecs, "TRIP_DURATION_SECS")

	envStr(&c.Log.Level, "LOG_LEVEL")
	envStr(&c.Log.File, "LOG_FILE")
	envStr(&c.AuditFile, "AUDIT_FILE")
	envStr(&c.MetricsAddr, "METRICS_ADDR")
	envStr(&c.SecretStorePath, "SECRET_STORE_PATH")
	envStr(&c.SecretStoreKey, "SECRET_STORE_KEY")
}

// Validate 检查必填项与取值范围
func (c *Config) Validate() error {
	if c.Whale.Address == "" {
		return fmt.Errorf("缺少 TARGET_WHALE_ADDRESS")
	}
	if !strings.HasPrefix(c.Whale.Address, "0x") || len(c.Whale.Address) != 42 {
		return fmt.Errorf("TARGET_WHALE_ADDRESS 格式无效: %s", c.Whale.Address)
	}
	if c.Feed.WSSURL == "" {
		return fmt.Errorf("缺少 WSS_URL")
	}
	if c.Wallet.PrivateKey == "" && c.SecretStorePath == "" {
		return fmt.Errorf("缺少 PRIVATE_KEY（或配置 SECRET_STORE_PATH 从密钥库读取）")
	}
	if c.Trading.ScalingRatio <= 0 || c.Trading.ScalingRatio > 1 {
		return fmt.Errorf("SCALING_RATIO 必须在 (0, 1] 区间: %f", c.Trading.ScalingRatio)
	}
	if c.Risk.ConsecutiveTrigger <= 0 {
		return fmt.Errorf("CONSECUTIVE_TRIGGER 必须为正: %d", c.Risk.ConsecutiveTrigger)
	}
	return nil
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
