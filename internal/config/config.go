package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"timeline-editor/internal/playback"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Storage
	StorageType     string // "local" | "s3"
	UploadDir       string
	BaseURL         string
	AWSBucket       string
	AWSRegion       string
	AWSEndpoint     string
	AWSAccessKeyID  string
	AWSSecretKey    string
	AWSUsePathStyle bool

	// Redis snapshot cache, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Live sessions
	MaxLiveSessions int

	// CORS
	AllowedOrigins []string

	// Editor
	FallbackDuration float64
	Tuning           playback.Tuning
	FFprobePath      string
	ProbeTimeout     time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Overlay is the optional TOML file named by EDITOR_CONFIG. Only editor
// tuning lives there; infrastructure stays in the environment.
type Overlay struct {
	FallbackDuration *float64        `toml:"fallback_duration"`
	Playback         playback.Tuning `toml:"playback"`
	FFprobePath      string          `toml:"ffprobe_path"`
}

func New() *Config {
	defaults := playback.DefaultTuning()
	return &Config{
		Port: getEnv("PORT", "8083"),
		Env:  getEnv("APP_ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StorageType:     getEnv("STORAGE_TYPE", "local"),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8083"),
		AWSBucket:       getEnv("AWS_BUCKET", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:     getEnv("AWS_ENDPOINT", ""),
		AWSAccessKeyID:  getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSUsePathStyle: getEnv("AWS_USE_PATH_STYLE", "false") == "true",

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", "24h"),

		MaxLiveSessions: getEnvAsInt("MAX_LIVE_SESSIONS", 256),

		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		FallbackDuration: getEnvAsFloat("FALLBACK_DURATION", 60),
		Tuning: playback.Tuning{
			EndTolerance:   getEnvAsFloat("END_TOLERANCE", defaults.EndTolerance),
			DriftTolerance: getEnvAsFloat("DRIFT_TOLERANCE", defaults.DriftTolerance),
		},
		FFprobePath:  getEnv("FFPROBE_PATH", "ffprobe"),
		ProbeTimeout: getEnvAsDuration("PROBE_TIMEOUT", "15s"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Load builds the config from the environment and applies the TOML overlay
// named by EDITOR_CONFIG, if any.
func Load() (*Config, error) {
	cfg := New()
	path := os.Getenv("EDITOR_CONFIG")
	if path == "" {
		return cfg, nil
	}
	if err := cfg.ApplyFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyFile(path string) error {
	var o Overlay
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if o.FallbackDuration != nil {
		c.FallbackDuration = *o.FallbackDuration
	}
	if o.Playback.EndTolerance > 0 {
		c.Tuning.EndTolerance = o.Playback.EndTolerance
	}
	if o.Playback.DriftTolerance > 0 {
		c.Tuning.DriftTolerance = o.Playback.DriftTolerance
	}
	if o.FFprobePath != "" {
		c.FFprobePath = o.FFprobePath
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.FallbackDuration < 0 {
		return fmt.Errorf("fallback duration must not be negative, got %v", c.FallbackDuration)
	}
	if c.Tuning.EndTolerance <= 0 || c.Tuning.DriftTolerance <= 0 {
		return fmt.Errorf("playback tolerances must be positive")
	}
	if c.StorageType != "local" && c.StorageType != "s3" {
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
