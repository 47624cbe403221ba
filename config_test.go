package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.MaxConcurrentExtractions != 80 {
		t.Fatalf("unexpected default ceiling %d", cfg.MaxConcurrentExtractions)
	}
	if cfg.ExtractionTimeout() != 120*time.Second {
		t.Fatalf("unexpected default extraction timeout %s", cfg.ExtractionTimeout())
	}
	if cfg.QueueTimeout() != 180*time.Second {
		t.Fatalf("unexpected default queue timeout %s", cfg.QueueTimeout())
	}
	if !reflect.DeepEqual(cfg.VideoExtPreference, []string{"webm", "mp4"}) {
		t.Fatalf("unexpected video ext preference %v", cfg.VideoExtPreference)
	}
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
listen_addr = ":9090"
max_concurrent_extractions = 10
queue_timeout_seconds = 30
video_ext_preference = ["mp4", "webm"]
redis_addr = "localhost:6379"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.ListenAddr != ":9090" || cfg.MaxConcurrentExtractions != 10 {
		t.Fatalf("TOML values not applied: %+v", cfg)
	}
	if cfg.QueueTimeout() != 30*time.Second {
		t.Fatalf("unexpected queue timeout %s", cfg.QueueTimeout())
	}
	if !reflect.DeepEqual(cfg.VideoExtPreference, []string{"mp4", "webm"}) {
		t.Fatalf("unexpected video ext preference %v", cfg.VideoExtPreference)
	}
	// Untouched settings keep defaults.
	if cfg.YtdlpPath != "yt-dlp" {
		t.Fatalf("default lost: %q", cfg.YtdlpPath)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("YTMANIFEST_MAX_CONCURRENT", "5")
	t.Setenv("YTMANIFEST_LISTEN_ADDR", ":7070")
	t.Setenv("YTMANIFEST_AUDIO_EXT_PREFERENCE", "opus, m4a")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxConcurrentExtractions != 5 || cfg.ListenAddr != ":7070" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AudioExtPreference, []string{"opus", "m4a"}) {
		t.Fatalf("unexpected audio ext preference %v", cfg.AudioExtPreference)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("max_concurrent_extractions = 10\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("YTMANIFEST_MAX_CONCURRENT", "3")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxConcurrentExtractions != 3 {
		t.Fatalf("env must win over file, got %d", cfg.MaxConcurrentExtractions)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"zero ceiling", map[string]string{"YTMANIFEST_MAX_CONCURRENT": "0"}},
		{"zero extraction timeout", map[string]string{"YTMANIFEST_EXTRACTION_TIMEOUT": "0"}},
		{"bad log format", map[string]string{"YTMANIFEST_LOG_FORMAT": "yaml"}},
		{"zero cookie refresh with url", map[string]string{
			"YTMANIFEST_COOKIES_URL":     "https://cookies.example/export",
			"YTMANIFEST_COOKIES_REFRESH": "0",
		}},
		{"negative tool update", map[string]string{"YTMANIFEST_TOOL_UPDATE": "-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigZeroRefreshWithoutURL(t *testing.T) {
	t.Setenv("YTMANIFEST_COOKIES_REFRESH", "0")
	if _, err := LoadConfig(""); err != nil {
		t.Fatalf("zero refresh interval should be valid without a cookie url: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
