package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Upstream routes consumed by the front end.
const (
	RouteAuthStatus         = "/api/auth/status"
	RouteAuthLogout         = "/api/auth/logout"
	RouteRecommend          = "/api/recommend"
	RouteGeneratePDF        = "/api/generate-pdf"
	RouteExportExcel        = "/api/export-excel"
	RouteMaterials          = "/api/materials"
	RouteDashboard          = "/bi/dashboard"
	RouteDashboardAvailable = "/api/bi-dashboard-available"
)

// Config holds all configuration for the front end.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
	Server    ServerConfig    `mapstructure:"server"`
	UI        UIConfig        `mapstructure:"ui"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Export    ExportConfig    `mapstructure:"export"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
}

// APIConfig selects the upstream recommendation service.
type APIConfig struct {
	BaseURL   string `mapstructure:"base_url"` // explicit override, wins over host detection
	LocalURL  string `mapstructure:"local_url"`
	RemoteURL string `mapstructure:"remote_url"`
}

// FrontendConfig describes where the front end itself is served.
type FrontendConfig struct {
	Host string `mapstructure:"host"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type UIConfig struct {
	SplashDuration time.Duration `mapstructure:"splash_duration"`
	ToastDuration  time.Duration `mapstructure:"toast_duration"`
}

type RecommendConfig struct {
	TopK   int    `mapstructure:"top_k"`
	SortBy string `mapstructure:"sort_by"`
}

// QuotaConfig mirrors the upstream rate limit for display purposes only.
type QuotaConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type CatalogConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// SessionConfig controls how long an idle browser keeps its state.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	Production bool   `mapstructure:"production"`
}

// Validate rejects values the components cannot work with.
func (c *Config) Validate() error {
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog.page_size must be greater than zero")
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window must be greater than zero")
	}
	if c.Quota.Limit < 0 {
		return fmt.Errorf("quota.limit must not be negative")
	}
	if strings.TrimSpace(c.API.LocalURL) == "" && strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.local_url is required")
	}
	if strings.TrimSpace(c.API.RemoteURL) == "" && strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.remote_url is required")
	}
	return nil
}

// WindowMinutes is the quota window rounded to whole minutes, as shown to users.
func (q QuotaConfig) WindowMinutes() int {
	m := int(q.Window / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

// ResolveBaseURL picks the upstream base URL for a front end served under host.
// Loopback hosts talk to the local service, everything else to the remote one.
func (c *Config) ResolveBaseURL(host string) string {
	if u := strings.TrimSpace(c.API.BaseURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	if IsLocalHost(host) {
		return strings.TrimRight(c.API.LocalURL, "/")
	}
	return strings.TrimRight(c.API.RemoteURL, "/")
}

// IsLocalHost reports whether host (optionally with a port) is a loopback name.
func IsLocalHost(host string) bool {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	switch strings.ToLower(host) {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.local_url", "http://localhost:5000")
	v.SetDefault("api.remote_url", "https://ai-powered-sustainable-packaging-jrsk.onrender.com")
	v.SetDefault("frontend.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("ui.splash_duration", 2*time.Second)
	v.SetDefault("ui.toast_duration", 4*time.Second)
	v.SetDefault("recommend.top_k", 5)
	v.SetDefault("recommend.sort_by", "Sustainability")
	v.SetDefault("quota.limit", 3)
	v.SetDefault("quota.window", 20*time.Minute)
	v.SetDefault("catalog.page_size", 12)
	v.SetDefault("export.dir", ".")
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("log.file", "ecopack.log")
	v.SetDefault("log.production", false)
}

// Load reads configuration from path (or the usual search paths when empty),
// a .env file and ECOPACK_* environment variables. A missing config file is
// not an error; every key has a default.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ECOPACK")
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

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("decode default config: %w", err))
	}
	return &cfg
}
