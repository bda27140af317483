package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Realtime RealtimeConfig
	AI       AIConfig
	Places   PlacesConfig
	Upload   UploadConfig
	Jobs     JobsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port             string   `env:"PORT,default=8080"`
	GinMode          string   `env:"GIN_MODE,default=debug"`
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000;http://localhost:5173"`
	RateLimitEnabled bool     `env:"RATE_LIMIT_ENABLED,default=true"`
	AuthRequired     bool     `env:"AUTH_REQUIRED,default=false"`
	SeedEnabled      bool     `env:"SEED_ENABLED,default=true"`
}

type DatabaseConfig struct {
	URL             string        `env:"DB_URL"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`
	SlowThreshold   time.Duration `env:"DB_SLOW_THRESHOLD,default=1s"`
}

type JWTConfig struct {
	Secret      string `env:"JWT_SECRET,default=your-super-secret-jwt-key-change-this-in-production"`
	ExpiryHours int    `env:"JWT_EXPIRY_HOURS,default=24"`
}

// RealtimeConfig selects how notification events reach open streams.
// Backend is one of memory, postgres or redis.
type RealtimeConfig struct {
	Backend         string        `env:"REALTIME_BACKEND,default=memory"`
	Channel         string        `env:"REALTIME_CHANNEL,default=food_notifications"`
	RedisAddr       string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB,default=0"`
	StreamKeepAlive time.Duration `env:"STREAM_KEEPALIVE,default=30s"`
	RecentLimit     int           `env:"STREAM_RECENT_LIMIT,default=5"`
}

type AIConfig struct {
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiModel   string        `env:"GEMINI_MODEL,default=gemini-1.5-flash"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL,default=https://generativelanguage.googleapis.com/v1beta"`
	Timeout       time.Duration `env:"GEMINI_TIMEOUT,default=30s"`
}

type PlacesConfig struct {
	NominatimURL string        `env:"NOMINATIM_URL,default=https://nominatim.openstreetmap.org"`
	UserAgent    string        `env:"NOMINATIM_USER_AGENT,default=food-share-server/1.0"`
	CountryCodes string        `env:"NOMINATIM_COUNTRY_CODES"`
	Timeout      time.Duration `env:"NOMINATIM_TIMEOUT,default=10s"`
}

type UploadConfig struct {
	CloudinaryURL string `env:"CLOUDINARY_URL"`
	Folder        string `env:"UPLOAD_FOLDER,default=food-listings"`
	MaxBytes      int    `env:"UPLOAD_MAX_BYTES,default=5242880"`
}

type JobsConfig struct {
	ExpirationSchedule string        `env:"EXPIRATION_SCHEDULE,default=@every 1m"`
	ReminderSchedule   string        `env:"REMINDER_SCHEDULE,default=@every 5m"`
	ReminderLead       time.Duration `env:"PICKUP_REMINDER_LEAD,default=1h"`
	NearbyRadiusKm     float64       `env:"NEARBY_RADIUS_KM,default=10"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

var AppConfig *Config

// Load decodes the process environment into AppConfig.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

// Validate checks values envdecode cannot express as tags.
func (c *Config) Validate() error {
	switch c.Realtime.Backend {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("unsupported REALTIME_BACKEND %q", c.Realtime.Backend)
	}
	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	if c.Realtime.RecentLimit <= 0 {
		c.Realtime.RecentLimit = 5
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS must list at least one origin")
	}
	return nil
}
