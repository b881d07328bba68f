package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// BaseURL is an absolute http(s) URL without a trailing slash.
type BaseURL string

func (u BaseURL) String() string { return string(u) }

type APIConfig struct {
	BaseURL   BaseURL       `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	WebURL    BaseURL       `mapstructure:"web_url"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type DaemonConfig struct {
	Expiration time.Duration `mapstructure:"expiration"`
}

type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Daemon DaemonConfig `mapstructure:"daemon"`
	Search SearchConfig `mapstructure:"search"`
}

// cacheBase returns the base cache directory for applefetch.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/applefetch as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "applefetch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "applefetch")
	}
	return filepath.Join(os.TempDir(), "applefetch")
}

// DBPath returns the path to the DuckDB database file.
func DBPath() string {
	return filepath.Join(cacheBase(), "db.db")
}

// CASDir returns the path to the content-addressable storage directory.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// SearchIndexPath returns the path to the bleve search catalog.
func SearchIndexPath() string {
	return filepath.Join(cacheBase(), "catalog.bleve")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "applefetch", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "applefetch", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "applefetch"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "applefetch"))
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("APPLEFETCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://developer.apple.com/tutorials/data")
	v.SetDefault("api.web_url", "https://developer.apple.com")
	v.SetDefault("api.user_agent", "applefetch/0.1.0")
	v.SetDefault("api.timeout", "60s")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("daemon.expiration", "10m")
	v.SetDefault("search.default_limit", 10)
}

// stringToBaseURLHookFunc validates base URLs and strips trailing slashes.
func stringToBaseURLHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(BaseURL("")) || f.Kind() != reflect.String {
			return data, nil
		}
		raw := strings.TrimRight(strings.TrimSpace(data.(string)), "/")
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid base URL %q: want an absolute http(s) URL", raw)
		}
		return BaseURL(raw), nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}
	return decode(viper.AllSettings())
}

func decode(settings map[string]interface{}) (*Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToBaseURLHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.API.Timeout <= 0 {
		return nil, fmt.Errorf("api.timeout must be positive, got %s", config.API.Timeout)
	}
	if config.Cache.TTL < 0 {
		return nil, fmt.Errorf("cache.ttl must not be negative, got %s", config.Cache.TTL)
	}
	if config.Search.DefaultLimit <= 0 {
		config.Search.DefaultLimit = 10
	}

	return &config, nil
}
