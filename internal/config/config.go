package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the store API.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	JWTSecret              string
	JWTTTL                 time.Duration
	PasswordResetTTL       time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	AdminEmail             string
	GoogleClientID         string
	AnalyticsCacheTTL      time.Duration
	VisitSalt              string
	ChatRatePerSecond      float64
	ChatBurst              int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MITC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "MITC Store API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "mitc")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("password_reset.ttl", "30m")
	v.SetDefault("cloudinary.folder", "mitc/products")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("admin.email", "admin@mitcstore.com")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("chat.rate_per_sec", 5)
	v.SetDefault("chat.burst", 10)

	jwtTTL, err := parseDuration(v, "jwt.ttl", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	resetTTL, err := parseDuration(v, "password_reset.ttl", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	analyticsTTL, err := parseDuration(v, "analytics.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 jwtTTL,
		PasswordResetTTL:       resetTTL,
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		AdminEmail:             strings.ToLower(strings.TrimSpace(v.GetString("admin.email"))),
		GoogleClientID:         v.GetString("google.client_id"),
		AnalyticsCacheTTL:      analyticsTTL,
		VisitSalt:              v.GetString("visit.salt"),
		ChatRatePerSecond:      v.GetFloat64("chat.rate_per_sec"),
		ChatBurst:              v.GetInt("chat.burst"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}
	if cfg.ChatRatePerSecond <= 0 {
		cfg.ChatRatePerSecond = 5
	}
	if cfg.ChatBurst <= 0 {
		cfg.ChatBurst = 10
	}
	if cfg.VisitSalt == "" {
		cfg.VisitSalt = cfg.JWTSecret
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}
