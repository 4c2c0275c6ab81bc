package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabasePath string

	// Cache TTLs. Social search gets its own, typically shorter, window.
	CacheTTL       time.Duration
	SocialCacheTTL time.Duration

	// Broadcast registry liveness probe interval.
	PingInterval time.Duration

	// Mapbox geocoding configuration.
	MapboxToken   string
	MapboxTimeout time.Duration

	// Gemini analysis endpoint (place-name extraction, image scoring).
	GeminiAPIKey  string
	GeminiTimeout time.Duration

	// Social feed search endpoint.
	SocialFeedURL     string
	SocialFeedToken   string
	SocialFeedTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("db_path", "data/disasters")
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("social_cache_ttl", "15m")
	v.SetDefault("broadcast_ping_interval", "30s")
	v.SetDefault("mapbox_token", "")
	v.SetDefault("mapbox_timeout", "5s")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_timeout", "10s")
	v.SetDefault("social_feed_url", "")
	v.SetDefault("social_feed_token", "")
	v.SetDefault("social_feed_timeout", "5s")

	cfg := &Config{
		HTTPAddr:          v.GetString("http_addr"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		ShutdownTimeout:   v.GetDuration("shutdown_timeout"),
		DatabasePath:      v.GetString("db_path"),
		CacheTTL:          v.GetDuration("cache_ttl"),
		SocialCacheTTL:    v.GetDuration("social_cache_ttl"),
		PingInterval:      v.GetDuration("broadcast_ping_interval"),
		MapboxToken:       v.GetString("mapbox_token"),
		MapboxTimeout:     v.GetDuration("mapbox_timeout"),
		GeminiAPIKey:      v.GetString("gemini_api_key"),
		GeminiTimeout:     v.GetDuration("gemini_timeout"),
		SocialFeedURL:     v.GetString("social_feed_url"),
		SocialFeedToken:   v.GetString("social_feed_token"),
		SocialFeedTimeout: v.GetDuration("social_feed_timeout"),
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("HTTP_ADDR is required")
	}
	if cfg.DatabasePath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	for name, d := range map[string]time.Duration{
		"SHUTDOWN_TIMEOUT":        cfg.ShutdownTimeout,
		"CACHE_TTL":               cfg.CacheTTL,
		"SOCIAL_CACHE_TTL":        cfg.SocialCacheTTL,
		"BROADCAST_PING_INTERVAL": cfg.PingInterval,
		"MAPBOX_TIMEOUT":          cfg.MapboxTimeout,
		"GEMINI_TIMEOUT":          cfg.GeminiTimeout,
		"SOCIAL_FEED_TIMEOUT":     cfg.SocialFeedTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive duration", name)
		}
	}

	return cfg, nil
}
