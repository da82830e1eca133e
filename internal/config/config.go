package config

import (
	"fmt"
	"strings"

	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	API      APIConfig      `mapstructure:"api"`
	Search   SearchConfig   `mapstructure:"search"`
	Site     SiteConfig     `mapstructure:"site"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Promos   []PromoConfig  `mapstructure:"promos"`
	Catalog  []ItemConfig   `mapstructure:"catalog"`
	Upsells  []UpsellConfig `mapstructure:"upsells"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为日志组件配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabaseConfig 本地存储配置（表单草稿与校验缓存）
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// APIConfig 远端接口配置
type APIConfig struct {
	Host               string `mapstructure:"host"`                // 订单与 OTP 接口地址
	ConversionEndpoint string `mapstructure:"conversion_endpoint"` // 服务端转化中继地址
	ValidationHost     string `mapstructure:"validation_host"`     // 手机号/邮箱校验服务地址
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

// SearchConfig 地点检索配置
type SearchConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"api_key"`
	Index  string `mapstructure:"index"`
}

// SiteConfig 站点与商家标识配置
type SiteConfig struct {
	Title              string `mapstructure:"title"`
	Currency           string `mapstructure:"currency"`
	MetaPixelID        string `mapstructure:"meta_pixel_id"`
	ConversionAPIToken string `mapstructure:"conversion_api_token"`
	SheetID            string `mapstructure:"sheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	BusinessEmail      string `mapstructure:"business_email"`
	BusinessPhone      string `mapstructure:"business_phone"`
	BusinessName       string `mapstructure:"business_name"`
	SenderID           string `mapstructure:"sender_id"`
}

// CheckoutConfig 结算流程配置
type CheckoutConfig struct {
	RequirePhone            bool              `mapstructure:"require_phone"`
	RequireEmail            bool              `mapstructure:"require_email"`
	ExtraFields             []FieldConfig     `mapstructure:"extra_fields"`
	OTP                     OTPConfig         `mapstructure:"otp"`
	ValidationCacheTTLHours int               `mapstructure:"validation_cache_ttl_hours"` // 0 表示永不过期
	ThankYouURL             string            `mapstructure:"thank_you_url"`
	RateLimit               OTPRateLimitRule  `mapstructure:"rate_limit"`
	Defaults                map[string]string `mapstructure:"defaults"`
}

// FieldConfig 动态扩展字段描述
type FieldConfig struct {
	ID       string `mapstructure:"id"`
	Required bool   `mapstructure:"required"`
}

// OTPConfig OTP 配置
type OTPConfig struct {
	CountdownSeconds int    `mapstructure:"countdown_seconds"`
	ExpiryPolicy     string `mapstructure:"expiry_policy"` // none / block
}

// OTPRateLimitRule OTP 发送限流规则
type OTPRateLimitRule struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// PromoConfig 促销时段配置（时间为马尼拉时区）
type PromoConfig struct {
	Name            string `mapstructure:"name"`
	StartsAt        string `mapstructure:"starts_at"`
	EndsAt          string `mapstructure:"ends_at"`
	DiscountPercent int    `mapstructure:"discount_percent"`
}

// ItemConfig 商品条目配置
type ItemConfig struct {
	Key      string `mapstructure:"key"`
	Price    int64  `mapstructure:"price"` // 整数比索
	Quantity int    `mapstructure:"quantity"`
	Name     string `mapstructure:"name"`
	Image    string `mapstructure:"image"`
}

// UpsellConfig 追加销售路由配置
type UpsellConfig struct {
	Bundle    string `mapstructure:"bundle"`
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
}

// Load 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	// 环境变量支持
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "csform.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.dsn", "csform.db")
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "csf")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default": 10,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Cache-Control",
		"X-Requested-With",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("api.host", "https://sg-aws.marketingmaster.io/apis_integrations")
	viper.SetDefault("api.conversion_endpoint", "https://sg-aws.marketingmaster.io/apis_integrations/cform_handle_conversion_api")
	viper.SetDefault("api.validation_host", "https://sg.marketingmaster.io/apis_sms")
	viper.SetDefault("api.timeout_seconds", 15)
	viper.SetDefault("search.host", "https://search.idrs.ph")
	viper.SetDefault("search.api_key", "")
	viper.SetDefault("search.index", "baranggays")
	viper.SetDefault("site.currency", constants.CurrencyPHP)
	viper.SetDefault("checkout.require_phone", true)
	viper.SetDefault("checkout.require_email", false)
	viper.SetDefault("checkout.otp.countdown_seconds", 300)
	viper.SetDefault("checkout.otp.expiry_policy", constants.OTPExpiryPolicyNone)
	viper.SetDefault("checkout.validation_cache_ttl_hours", 0)
	viper.SetDefault("checkout.thank_you_url", "./thankyou.html")
	viper.SetDefault("checkout.rate_limit.window_seconds", 60)
	viper.SetDefault("checkout.rate_limit.max_requests", 3)
}
