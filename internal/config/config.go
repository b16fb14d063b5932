// Package config loads and validates server configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Modes accepted by app.mode.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Store backends accepted by store.backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	App       AppConfig       `mapstructure:"app"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Store     StoreConfig     `mapstructure:"store"`
	Render    RenderConfig    `mapstructure:"render"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Static    StaticConfig    `mapstructure:"static"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// AppConfig holds site-wide settings.
type AppConfig struct {
	Mode        string `mapstructure:"mode"`
	Title       string `mapstructure:"title"`
	Placeholder string `mapstructure:"placeholder"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// StoreConfig selects and tunes the article store.
type StoreConfig struct {
	Backend         string        `mapstructure:"backend"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// RenderConfig points at the server bundle and HTML shell.
type RenderConfig struct {
	BundlePath    string        `mapstructure:"bundle_path"`
	TemplatePath  string        `mapstructure:"template_path"`
	CacheSize     int           `mapstructure:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// AssetsConfig maps an asset type (e.g. "analytics") to an external script URL.
type AssetsConfig struct {
	Scripts map[string]string `mapstructure:"scripts"`
}

// StaticConfig lists directories served verbatim.
type StaticConfig struct {
	Dir     string `mapstructure:"dir"`
	DistDir string `mapstructure:"dist_dir"`
}

// AdminConfig locates the admin SPA entry file.
type AdminConfig struct {
	Dir   string `mapstructure:"dir"`
	Index string `mapstructure:"index"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("app.mode", ModeDevelopment)
	v.SetDefault("app.title", "Neo's blog")
	v.SetDefault("app.placeholder", "Waiting !!!")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "blog-ssr")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "articles")
	v.SetDefault("render.bundle_path", "client/dist/ssr-bundle.json")
	v.SetDefault("render.template_path", "client/dist/front.html")
	v.SetDefault("render.cache_size", 1000)
	v.SetDefault("render.cache_ttl", 15*time.Minute)
	v.SetDefault("render.watch_debounce", 300*time.Millisecond)
	v.SetDefault("assets.scripts", map[string]string{})
	v.SetDefault("static.dir", "client/static")
	v.SetDefault("static.dist_dir", "client/dist")
	v.SetDefault("admin.dir", "client/dist")
	v.SetDefault("admin.index", "/admin.html")
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "blog-ssr")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.App.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("app.mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.App.Mode)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Render.CacheSize <= 0 {
		return fmt.Errorf("render.cache_size must be > 0")
	}
	if c.Render.CacheTTL <= 0 {
		return fmt.Errorf("render.cache_ttl must be > 0")
	}
	if !strings.HasPrefix(c.Admin.Index, "/") {
		return fmt.Errorf("admin.index must start with /")
	}
	return nil
}

// Production reports whether the server runs with a prebuilt bundle.
func (c Config) Production() bool {
	return c.App.Mode == ModeProduction
}
