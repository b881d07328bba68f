package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "applefetch")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := SearchIndexPath(); got != filepath.Join(want, "catalog.bleve") {
		t.Errorf("SearchIndexPath = %q", got)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "applefetch")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	if !strings.Contains(got, "applefetch") {
		t.Errorf("expected applefetch in path, got %q", got)
	}
}

func TestSocketPath_XDGRuntime(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/test")
	if got, want := SocketPath(), "/run/test/applefetch/daemon.sock"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func defaultSettings(t *testing.T) map[string]interface{} {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	return v.AllSettings()
}

func TestDecode_Defaults(t *testing.T) {
	cfg, err := decode(defaultSettings(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://developer.apple.com/tutorials/data" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 60*time.Second {
		t.Errorf("timeout = %s", cfg.API.Timeout)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("ttl = %s", cfg.Cache.TTL)
	}
	if cfg.Daemon.Expiration != 10*time.Minute {
		t.Errorf("expiration = %s", cfg.Daemon.Expiration)
	}
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("default limit = %d", cfg.Search.DefaultLimit)
	}
}

func TestDecode_Overrides(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		check   func(*Config) bool
		wantErr bool
	}{
		{
			name:  "trailing slash trimmed",
			key:   "base_url",
			value: "http://localhost:8080/data/",
			check: func(c *Config) bool { return c.API.BaseURL == "http://localhost:8080/data" },
		},
		{
			name:    "relative base url",
			key:     "base_url",
			value:   "/data",
			wantErr: true,
		},
		{
			name:    "non-http scheme",
			key:     "base_url",
			value:   "ftp://example.com",
			wantErr: true,
		},
		{
			name:  "duration string",
			key:   "timeout",
			value: "5s",
			check: func(c *Config) bool { return c.API.Timeout == 5*time.Second },
		},
		{
			name:    "zero timeout",
			key:     "timeout",
			value:   "0s",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := defaultSettings(t)
			settings["api"].(map[string]interface{})[tt.key] = tt.value
			cfg, err := decode(settings)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(cfg) {
				t.Errorf("unexpected config: %+v", cfg.API)
			}
		})
	}
}
