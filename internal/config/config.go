package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tomek7667/devconsole/internal/domain"
	"github.com/tomek7667/devconsole/internal/rescache"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Cache      CacheConfig              `yaml:"cache"`
	Backend    BackendConfig            `yaml:"backend"`
	Log        LogConfig                `yaml:"log"`
	Update     UpdateConfig             `yaml:"update"`
	ConfigDirs []string                 `yaml:"config_dirs"`
	Templates  []domain.ProjectTemplate `yaml:"templates"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	SessionLimit int           `yaml:"session_limit"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

type CacheConfig struct {
	DefaultTTL  time.Duration            `yaml:"default_ttl"`
	TTL         map[string]time.Duration `yaml:"ttl"`
	AutoRefresh time.Duration            `yaml:"auto_refresh"`
}

type BackendConfig struct {
	Mode    string        `yaml:"mode"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type UpdateConfig struct {
	Owner      string `yaml:"owner"`
	Repository string `yaml:"repository"`
}

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         7667,
			SessionLimit: 64,
			SessionTTL:   30 * time.Minute,
		},
		Cache: CacheConfig{
			DefaultTTL: rescache.DefaultTTL,
			TTL: map[string]time.Duration{
				string(rescache.KindPorts):     30 * time.Second,
				string(rescache.KindProcesses): 15 * time.Second,
			},
			AutoRefresh: 0,
		},
		Backend: BackendConfig{
			Mode:    BackendLocal,
			URL:     "",
			Timeout: 2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Update: UpdateConfig{
			Owner:      "tomek7667",
			Repository: "devconsole",
		},
	}
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parse(data)
}

// LoadOptional returns the defaults when path does not exist.
func LoadOptional(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}
	return parse(data)
}

func parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// CacheTTLs returns the per-kind TTL overrides.
func (c Config) CacheTTLs() map[rescache.Kind]time.Duration {
	out := make(map[rescache.Kind]time.Duration, len(c.Cache.TTL))
	for k, d := range c.Cache.TTL {
		if kind, err := rescache.ParseKind(k); err == nil {
			out[kind] = d
		}
	}
	return out
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.Host) == "" {
		return errors.New("server.host must not be empty")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}
	if cfg.Server.SessionLimit < 1 {
		return errors.New("server.session_limit must be positive")
	}
	if cfg.Server.SessionTTL <= 0 {
		return errors.New("server.session_ttl must be positive")
	}
	if cfg.Cache.DefaultTTL <= 0 {
		return errors.New("cache.default_ttl must be positive")
	}
	for k, d := range cfg.Cache.TTL {
		if _, err := rescache.ParseKind(k); err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("cache.ttl.%s must be positive", k)
		}
	}
	if cfg.Cache.AutoRefresh < 0 {
		return errors.New("cache.auto_refresh must not be negative")
	}
	switch cfg.Backend.Mode {
	case BackendLocal:
	case BackendRemote:
		if strings.TrimSpace(cfg.Backend.URL) == "" {
			return errors.New("backend.mode remote requires backend.url")
		}
	default:
		return errors.New("backend.mode must be local|remote")
	}
	if cfg.Backend.Timeout < 0 {
		return errors.New("backend.timeout must not be negative")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return errors.New("log.format must be console|json")
	}
	for i, t := range cfg.Templates {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Command) == "" {
			return fmt.Errorf("templates[%d] requires name and command", i)
		}
	}
	return nil
}
