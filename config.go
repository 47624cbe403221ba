package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every tunable of the service. Values resolve in three layers:
// built-in defaults, then an optional TOML file, then YTMANIFEST_* environment
// variables.
type Config struct {
	ListenAddr string `toml:"listen_addr"`

	// External tool
	YtdlpPath            string `toml:"ytdlp_path"`
	ExtractionTimeoutSec int    `toml:"extraction_timeout_seconds"`

	// Admission control
	MaxConcurrentExtractions int `toml:"max_concurrent_extractions"`
	QueueTimeoutSec          int `toml:"queue_timeout_seconds"`

	// Playlist expansion
	PlaylistFetchTimeoutSec int `toml:"playlist_fetch_timeout_seconds"`

	// Cookie refresh
	CookiesURL        string `toml:"cookies_url"`
	CookiesPath       string `toml:"cookies_path"`
	CookiesRefreshSec int    `toml:"cookies_refresh_seconds"`

	// Tool self-update
	ToolUpdateSec int `toml:"tool_update_seconds"`

	// Format selection. Extensions listed first rank higher; anything not
	// listed ranks zero.
	VideoExtPreference []string `toml:"video_ext_preference"`
	AudioExtPreference []string `toml:"audio_ext_preference"`

	// Rate limiting
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int     `toml:"burst_size"`

	// Optional Redis stats publishing
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password"`
	RedisDB         int    `toml:"redis_db"`
	StatsPublishSec int    `toml:"stats_publish_seconds"`
	StatsKey        string `toml:"stats_key"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:               ":8080",
		YtdlpPath:                "yt-dlp",
		ExtractionTimeoutSec:     120,
		MaxConcurrentExtractions: 80,
		QueueTimeoutSec:          180,
		PlaylistFetchTimeoutSec:  30,
		CookiesPath:              "/tmp/cookies.txt",
		CookiesRefreshSec:        3600,
		ToolUpdateSec:            86400,
		VideoExtPreference:       []string{"webm", "mp4"},
		AudioExtPreference:       []string{"m4a"},
		RequestsPerSecond:        100,
		BurstSize:                200,
		StatsPublishSec:          15,
		StatsKey:                 "ytmanifest:stats",
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// LoadConfig builds the effective configuration. path may be empty, in which
// case only defaults and the environment apply.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("YTMANIFEST_LISTEN_ADDR", &cfg.ListenAddr)
	envString("YTMANIFEST_YTDLP_PATH", &cfg.YtdlpPath)
	envInt("YTMANIFEST_EXTRACTION_TIMEOUT", &cfg.ExtractionTimeoutSec)
	envInt("YTMANIFEST_MAX_CONCURRENT", &cfg.MaxConcurrentExtractions)
	envInt("YTMANIFEST_QUEUE_TIMEOUT", &cfg.QueueTimeoutSec)
	envInt("YTMANIFEST_PLAYLIST_FETCH_TIMEOUT", &cfg.PlaylistFetchTimeoutSec)
	envString("YTMANIFEST_COOKIES_URL", &cfg.CookiesURL)
	envString("YTMANIFEST_COOKIES_PATH", &cfg.CookiesPath)
	envInt("YTMANIFEST_COOKIES_REFRESH", &cfg.CookiesRefreshSec)
	envInt("YTMANIFEST_TOOL_UPDATE", &cfg.ToolUpdateSec)
	envStringList("YTMANIFEST_VIDEO_EXT_PREFERENCE", &cfg.VideoExtPreference)
	envStringList("YTMANIFEST_AUDIO_EXT_PREFERENCE", &cfg.AudioExtPreference)
	envFloat("YTMANIFEST_REQUESTS_PER_SECOND", &cfg.RequestsPerSecond)
	envInt("YTMANIFEST_BURST_SIZE", &cfg.BurstSize)
	envString("YTMANIFEST_REDIS_ADDR", &cfg.RedisAddr)
	envString("YTMANIFEST_REDIS_PASSWORD", &cfg.RedisPassword)
	envInt("YTMANIFEST_REDIS_DB", &cfg.RedisDB)
	envInt("YTMANIFEST_STATS_PUBLISH", &cfg.StatsPublishSec)
	envString("YTMANIFEST_STATS_KEY", &cfg.StatsKey)
	envString("YTMANIFEST_LOG_LEVEL", &cfg.LogLevel)
	envString("YTMANIFEST_LOG_FORMAT", &cfg.LogFormat)
}

func (c Config) validate() error {
	if c.MaxConcurrentExtractions < 1 {
		return fmt.Errorf("max_concurrent_extractions must be at least 1, got %d", c.MaxConcurrentExtractions)
	}
	if c.ExtractionTimeoutSec < 1 {
		return fmt.Errorf("extraction_timeout_seconds must be at least 1, got %d", c.ExtractionTimeoutSec)
	}
	if c.QueueTimeoutSec < 1 {
		return fmt.Errorf("queue_timeout_seconds must be at least 1, got %d", c.QueueTimeoutSec)
	}
	if c.PlaylistFetchTimeoutSec < 1 {
		return fmt.Errorf("playlist_fetch_timeout_seconds must be at least 1, got %d", c.PlaylistFetchTimeoutSec)
	}
	if c.CookiesURL != "" && c.CookiesRefreshSec < 1 {
		return fmt.Errorf("cookies_refresh_seconds must be at least 1 when cookies_url is set, got %d", c.CookiesRefreshSec)
	}
	if c.ToolUpdateSec < 0 {
		return fmt.Errorf("tool_update_seconds must be zero or positive, got %d", c.ToolUpdateSec)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func (c Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.ExtractionTimeoutSec) * time.Second
}

func (c Config) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSec) * time.Second
}

func (c Config) PlaylistFetchTimeout() time.Duration {
	return time.Duration(c.PlaylistFetchTimeoutSec) * time.Second
}

func (c Config) CookiesRefreshInterval() time.Duration {
	return time.Duration(c.CookiesRefreshSec) * time.Second
}

func (c Config) ToolUpdateInterval() time.Duration {
	return time.Duration(c.ToolUpdateSec) * time.Second
}

func (c Config) StatsPublishInterval() time.Duration {
	return time.Duration(c.StatsPublishSec) * time.Second
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envStringList(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
