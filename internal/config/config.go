package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env                   string        `json:"env"`                      // 运行环境: local / prod
	LogLevel              string        `json:"log_level"`                // 日志级别: debug / info / warn / error
	HTTPAddr              string        `json:"http_addr"`                // API 服务监听地址
	GeocodeBaseURL        string        `json:"geocode_base_url"`         // 反向地理编码服务地址
	GeocodeTimeout        time.Duration `json:"geocode_timeout"`          // 反向地理编码调用超时
	GeocodeCacheTTL       time.Duration `json:"geocode_cache_ttl"`        // 反向地理编码缓存时间
	GeocodeRatePerSec     float64       `json:"geocode_rate_per_sec"`     // 上游地理编码每秒请求数上限
	GeocodeRateBurst      float64       `json:"geocode_rate_burst"`       // 上游地理编码突发令牌数
	NotifyWorkers         int           `json:"notify_workers"`           // 通知队列 worker 数
	NotifyQueueSize       int           `json:"notify_queue_size"`        // 通知队列容量
	SessionIdleTTL        time.Duration `json:"session_idle_ttl"`         // 会话活跃标记过期时间
	NearbyDefaultRadiusKm float64       `json:"nearby_default_radius_km"` // 附近活动默认搜索半径（公里）
	NearbyMaxRadiusKm     float64       `json:"nearby_max_radius_km"`     // 附近活动最大搜索半径（公里）
	NearbyScanLimit       int           `json:"nearby_scan_limit"`        // 附近查询参与距离过滤的最大活动数
	MaxImagesPerEvent     int           `json:"max_images_per_event"`     // 每个活动最多图片数
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 缓存配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"` // JWT 签名密钥
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json"）
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:                   "local",
			LogLevel:              "info",
			HTTPAddr:              ":8080",
			GeocodeBaseURL:        "https://nominatim.openstreetmap.org",
			GeocodeTimeout:        5 * time.Second,
			GeocodeCacheTTL:       24 * time.Hour,
			GeocodeRatePerSec:     1,
			GeocodeRateBurst:      2,
			NotifyWorkers:         2,
			NotifyQueueSize:       64,
			SessionIdleTTL:        30 * time.Minute,
			NearbyDefaultRadiusKm: 10,
			NearbyMaxRadiusKm:     100,
			NearbyScanLimit:       5000,
			MaxImagesPerEvent:     5,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/kawiskita?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		Security: SecurityConfig{
			JWTSecret: "dev_secret_change_me",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.GeocodeBaseURL == "" {
		cfg.App.GeocodeBaseURL = defaults.App.GeocodeBaseURL
	}
	if cfg.App.GeocodeTimeout == 0 {
		cfg.App.GeocodeTimeout = defaults.App.GeocodeTimeout
	}
	if cfg.App.GeocodeCacheTTL == 0 {
		cfg.App.GeocodeCacheTTL = defaults.App.GeocodeCacheTTL
	}
	if cfg.App.GeocodeRatePerSec == 0 {
		cfg.App.GeocodeRatePerSec = defaults.App.GeocodeRatePerSec
	}
	if cfg.App.GeocodeRateBurst == 0 {
		cfg.App.GeocodeRateBurst = defaults.App.GeocodeRateBurst
	}
	if cfg.App.NotifyWorkers == 0 {
		cfg.App.NotifyWorkers = defaults.App.NotifyWorkers
	}
	if cfg.App.NotifyQueueSize == 0 {
		cfg.App.NotifyQueueSize = defaults.App.NotifyQueueSize
	}
	if cfg.App.SessionIdleTTL == 0 {
		cfg.App.SessionIdleTTL = defaults.App.SessionIdleTTL
	}
	if cfg.App.NearbyDefaultRadiusKm == 0 {
		cfg.App.NearbyDefaultRadiusKm = defaults.App.NearbyDefaultRadiusKm
	}
	if cfg.App.NearbyMaxRadiusKm == 0 {
		cfg.App.NearbyMaxRadiusKm = defaults.App.NearbyMaxRadiusKm
	}
	if cfg.App.NearbyScanLimit == 0 {
		cfg.App.NearbyScanLimit = defaults.App.NearbyScanLimit
	}
	if cfg.App.MaxImagesPerEvent == 0 {
		cfg.App.MaxImagesPerEvent = defaults.App.MaxImagesPerEvent
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_GEOCODE_BASE_URL"); v != "" {
		cfg.App.GeocodeBaseURL = v
	}
	if v := os.Getenv("APP_GEOCODE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.GeocodeTimeout = d
		}
	}
	if v := os.Getenv("APP_GEOCODE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.GeocodeCacheTTL = d
		}
	}
	if v := os.Getenv("APP_GEOCODE_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.GeocodeRatePerSec = f
		}
	}
	if v := os.Getenv("APP_SESSION_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.SessionIdleTTL = d
		}
	}
	if v := os.Getenv("APP_NEARBY_DEFAULT_RADIUS_KM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.NearbyDefaultRadiusKm = f
		}
	}
	if v := os.Getenv("APP_NEARBY_MAX_RADIUS_KM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.NearbyMaxRadiusKm = f
		}
	}
	if v := os.Getenv("APP_NEARBY_SCAN_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.NearbyScanLimit = i
		}
	}
	if v := os.Getenv("APP_MAX_IMAGES_PER_EVENT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.MaxImagesPerEvent = i
		}
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			host := v
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "kawiskita",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		GeocodeTimeout  string `json:"geocode_timeout"`
		GeocodeCacheTTL string `json:"geocode_cache_ttl"`
		SessionIdleTTL  string `json:"session_idle_ttl"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.GeocodeTimeout != "" {
		duration, err := time.ParseDuration(aux.GeocodeTimeout)
		if err != nil {
			return fmt.Errorf("invalid geocode_timeout format: %w", err)
		}
		a.GeocodeTimeout = duration
	}
	if aux.GeocodeCacheTTL != "" {
		duration, err := time.ParseDuration(aux.GeocodeCacheTTL)
		if err != nil {
			return fmt.Errorf("invalid geocode_cache_ttl format: %w", err)
		}
		a.GeocodeCacheTTL = duration
	}
	if aux.SessionIdleTTL != "" {
		duration, err := time.ParseDuration(aux.SessionIdleTTL)
		if err != nil {
			return fmt.Errorf("invalid session_idle_ttl format: %w", err)
		}
		a.SessionIdleTTL = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		GeocodeTimeout  string `json:"geocode_timeout"`
		GeocodeCacheTTL string `json:"geocode_cache_ttl"`
		SessionIdleTTL  string `json:"session_idle_ttl"`
		*Alias
	}{
		GeocodeTimeout:  a.GeocodeTimeout.String(),
		GeocodeCacheTTL: a.GeocodeCacheTTL.String(),
		SessionIdleTTL:  a.SessionIdleTTL.String(),
		Alias:           (*Alias)(&a),
	})
}
