// Package config 加载服务配置: 默认值 -> YAML 文件 -> 环境变量
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"power-grid/model"
)

// Config 服务配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Overpass OverpassConfig `yaml:"overpass"`
	Cache    CacheConfig    `yaml:"cache"`
	Boundary BoundaryConfig `yaml:"boundary"`
	Grid     GridConfig     `yaml:"grid"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host          string        `yaml:"host" validate:"required"`
	Port          int           `yaml:"port" validate:"min=1,max=65535"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	Name          string        `yaml:"name" validate:"required"`
	SSLMode       string        `yaml:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
	MaxRetries    int           `yaml:"max_retries" validate:"min=1"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type OverpassConfig struct {
	Endpoints      []string      `yaml:"endpoints" validate:"min=1,dive,url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=memory redis"`
	BoundaryTTL   time.Duration `yaml:"boundary_ttl" validate:"gt=0"`
	PowerTTL      time.Duration `yaml:"power_ttl" validate:"gt=0"`
	RoundDecimals int           `yaml:"round_decimals" validate:"min=0,max=7"`
	MaxEntries    int           `yaml:"max_entries" validate:"min=0"` // 0 表示不限制
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPrefix   string        `yaml:"redis_prefix"`
}

// BoundaryConfig 城市边界查询, Area 同时是查询范围和近似边界
type BoundaryConfig struct {
	Name  string  `yaml:"name" validate:"required"`
	South float64 `yaml:"south"`
	West  float64 `yaml:"west"`
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
}

// Area 默认区域
func (b BoundaryConfig) Area() model.Region {
	return model.Region{South: b.South, West: b.West, North: b.North, East: b.East}
}

// GridConfig 供电图来源: postgres 或种子文件
type GridConfig struct {
	Source   string `yaml:"source" validate:"oneof=postgres file"`
	SeedFile string `yaml:"seed_file" validate:"required_if=Source file"`
}

type AuthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	JWTSecret         string        `yaml:"jwt_secret" validate:"required_if=Enabled true"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	AdminUser         string        `yaml:"admin_user"`
	AdminPasswordHash string        `yaml:"admin_password_hash"` // bcrypt
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			User:          "powergrid",
			Password:      "powergrid",
			Name:          "powergrid",
			SSLMode:       "disable",
			MaxRetries:    30,
			RetryInterval: 2 * time.Second,
		},
		Overpass: OverpassConfig{
			Endpoints: []string{
				"https://overpass-api.de/api/interpreter",
				"https://overpass.kumi.systems/api/interpreter",
				"https://overpass.private.coffee/api/interpreter",
				"https://api.openstreetmap.fr/oapi/interpreter",
			},
			ConnectTimeout: 10 * time.Second,
			RequestTimeout: 180 * time.Second,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			BoundaryTTL:   time.Hour,
			PowerTTL:      30 * time.Minute,
			RoundDecimals: 3,
			RedisPrefix:   "powergrid:power:",
		},
		Boundary: BoundaryConfig{
			Name:  "Overland Park",
			South: 38.95,
			West:  -94.75,
			North: 39.0,
			East:  -94.6,
		},
		Grid: GridConfig{
			Source:   "postgres",
			SeedFile: "data/grid_sample.json",
		},
		Auth: AuthConfig{
			TokenTTL:  24 * time.Hour,
			AdminUser: "admin",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 读取配置, path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if err := c.Boundary.Area().CheckBounds(); err != nil {
		return fmt.Errorf("配置校验失败: boundary: %w", err)
	}
	return nil
}

// applyEnv 环境变量覆盖 (为了 Docker 部署方便)
func applyEnv(cfg *Config) error {
	cfg.Server.Addr = getEnvOrDefault("HTTP_ADDR", cfg.Server.Addr)

	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnvOrDefault("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT 无效: %w", err)
		}
		cfg.Database.Port = port
	}

	if v := os.Getenv("OVERPASS_URLS"); v != "" {
		cfg.Overpass.Endpoints = splitList(v)
	}
	if err := envDuration("OVERPASS_TIMEOUT", &cfg.Overpass.RequestTimeout); err != nil {
		return err
	}

	cfg.Cache.Backend = getEnvOrDefault("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.Cache.RedisAddr)
	if err := envDuration("POWER_CACHE_TTL", &cfg.Cache.PowerTTL); err != nil {
		return err
	}
	if err := envDuration("BOUNDARY_CACHE_TTL", &cfg.Cache.BoundaryTTL); err != nil {
		return err
	}

	cfg.Grid.Source = getEnvOrDefault("GRID_SOURCE", cfg.Grid.Source)
	cfg.Grid.SeedFile = getEnvOrDefault("GRID_SEED_FILE", cfg.Grid.SeedFile)

	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTH_ENABLED 无效: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.AdminUser = getEnvOrDefault("ADMIN_USER", cfg.Auth.AdminUser)
	cfg.Auth.AdminPasswordHash = getEnvOrDefault("ADMIN_PASSWORD_HASH", cfg.Auth.AdminPasswordHash)

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	return nil
}

// getEnvOrDefault 获取环境变量，如果不存在则返回默认值
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s 无效: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewLogger 按配置创建 slog.Logger
func (c LogConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
