package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gogotex/newsdesk/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	Content   ContentConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
	LogLevel    string
	ReadTimeout time.Duration
}

// MongoDBConfig is optional: without a URI the service runs on the
// in-memory store.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
	// Insecure skips signature checks. Local development only.
	Insecure bool
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
	// RevocationTTL is how long a revoked token stays blocked.
	RevocationTTL  time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	UseRedis bool
	RPS      float64
	Burst    int
	Window   time.Duration
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	Bucket     string
	PresignTTL time.Duration
}

type ContentConfig struct {
	CanonicalCollection string
	LegacyCollection    string
	TitleSanitizeMax    int
	EligibilityCacheTTL time.Duration
	RequireIndexes      bool
}

// LoadConfig loads configuration from environment variables and an optional
// .env file. ENV_FILE overrides the .env location.
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5002")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGODB_DATABASE", "newsdesk")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KEYCLOAK_REALM", "community")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REVOCATION_TTL", 1440)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("MINIO_BUCKET", "newsdesk")
	v.SetDefault("MINIO_PRESIGN_MINUTES", 60)
	v.SetDefault("CONTENT_COLLECTION", "content")
	v.SetDefault("CONTENT_LEGACY_COLLECTION", "content_submissions")
	v.SetDefault("CONTENT_TITLE_SANITIZE_MAX", 500)
	v.SetDefault("CONTENT_ELIGIBLE_CACHE_TTL_SECONDS", 300)
	v.SetDefault("CONTENT_REQUIRE_INDEXES", false)

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("SERVER_PORT"),
			Host:        v.GetString("SERVER_HOST"),
			Environment: v.GetString("SERVER_ENVIRONMENT"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			ReadTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:      v.GetString("KEYCLOAK_URL"),
			Realm:    v.GetString("KEYCLOAK_REALM"),
			ClientID: v.GetString("KEYCLOAK_CLIENT_ID"),
			Insecure: v.GetBool("AUTH_INSECURE"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RevocationTTL:  time.Duration(v.GetInt("JWT_REVOCATION_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis: v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:      v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    v.GetInt("RATE_LIMIT_BURST"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:   v.GetString("MINIO_ENDPOINT"),
			AccessKey:  v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:  v.GetString("MINIO_SECRET_KEY"),
			UseSSL:     v.GetBool("MINIO_USE_SSL"),
			Bucket:     v.GetString("MINIO_BUCKET"),
			PresignTTL: time.Duration(v.GetInt("MINIO_PRESIGN_MINUTES")) * time.Minute,
		},
		Content: ContentConfig{
			CanonicalCollection: v.GetString("CONTENT_COLLECTION"),
			LegacyCollection:    v.GetString("CONTENT_LEGACY_COLLECTION"),
			TitleSanitizeMax:    v.GetInt("CONTENT_TITLE_SANITIZE_MAX"),
			EligibilityCacheTTL: time.Duration(v.GetInt("CONTENT_ELIGIBLE_CACHE_TTL_SECONDS")) * time.Second,
			RequireIndexes:      v.GetBool("CONTENT_REQUIRE_INDEXES"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI is not set; content is kept in memory and lost on restart")
	}
	if cfg.JWT.Secret == "" && cfg.Keycloak.URL == "" && !cfg.Keycloak.Insecure {
		logger.Warnf("neither KEYCLOAK_URL nor JWT_SECRET is set; every API request will be rejected")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Content.CanonicalCollection == "" || c.Content.LegacyCollection == "" {
		return fmt.Errorf("content collection names must not be empty")
	}
	if c.Content.CanonicalCollection == c.Content.LegacyCollection {
		return fmt.Errorf("CONTENT_COLLECTION and CONTENT_LEGACY_COLLECTION must differ (both %q)", c.Content.CanonicalCollection)
	}
	if c.Content.TitleSanitizeMax <= 0 {
		return fmt.Errorf("CONTENT_TITLE_SANITIZE_MAX must be positive, got %d", c.Content.TitleSanitizeMax)
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	if c.Server.Environment == "production" && c.Keycloak.Insecure {
		return fmt.Errorf("AUTH_INSECURE cannot be used in production")
	}
	return nil
}
