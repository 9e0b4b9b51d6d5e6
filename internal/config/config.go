package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Signing   SigningConfig
	RateLimit RateLimitConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// MongoDBConfig is optional; without a URI the service keeps state in memory.
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

// Addr returns "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
}

// SigningConfig controls the PDF engine and the verification gate.
type SigningConfig struct {
	VerifyBaseURL  string
	SealCertPath   string
	SealKeyPath    string
	SealCommonName string
	SealLocation   string
	RequirePIN     bool
	BcryptCost     int
	LockTTL        time.Duration
	UnlockTTL      time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	UseRedis bool
	RPS      float64
	Burst    int
	Window   time.Duration
	// VerifyRPS limits the public verification routes per client.
	VerifyRPS   float64
	VerifyBurst int
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

// Issuer is the realm issuer URL used for OIDC discovery.
func (k KeycloakConfig) Issuer() string {
	if k.URL == "" || k.Realm == "" {
		return ""
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

// JWTConfig enables HS256 bearer tokens when Keycloak is not configured.
type JWTConfig struct {
	Secret string
	Issuer string
}

// LoadConfig loads configuration from environment variables and an optional
// .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGODB_DATABASE", "tandatangan")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_BUCKET", "documents")
	v.SetDefault("SIGNING_VERIFY_BASE_URL", "http://localhost:5001/api")
	v.SetDefault("SIGNING_SEAL_COMMON_NAME", "Tandatangan Digital Seal")
	v.SetDefault("SIGNING_SEAL_LOCATION", "Indonesia")
	v.SetDefault("SIGNING_REQUIRE_PIN", true)
	v.SetDefault("SIGNING_BCRYPT_COST", 10)
	v.SetDefault("SIGNING_LOCK_TTL_SECONDS", 120)
	v.SetDefault("SIGNING_UNLOCK_TTL_MINUTES", 15)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("RATE_LIMIT_VERIFY_RPS", 1)
	v.SetDefault("RATE_LIMIT_VERIFY_BURST", 5)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
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
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},
		Signing: SigningConfig{
			VerifyBaseURL:  v.GetString("SIGNING_VERIFY_BASE_URL"),
			SealCertPath:   v.GetString("SIGNING_SEAL_CERT_PATH"),
			SealKeyPath:    v.GetString("SIGNING_SEAL_KEY_PATH"),
			SealCommonName: v.GetString("SIGNING_SEAL_COMMON_NAME"),
			SealLocation:   v.GetString("SIGNING_SEAL_LOCATION"),
			RequirePIN:     v.GetBool("SIGNING_REQUIRE_PIN"),
			BcryptCost:     v.GetInt("SIGNING_BCRYPT_COST"),
			LockTTL:        time.Duration(v.GetInt("SIGNING_LOCK_TTL_SECONDS")) * time.Second,
			UnlockTTL:      time.Duration(v.GetInt("SIGNING_UNLOCK_TTL_MINUTES")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:     v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:    v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:         v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:       v.GetInt("RATE_LIMIT_BURST"),
			Window:      time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
			VerifyRPS:   v.GetFloat64("RATE_LIMIT_VERIFY_RPS"),
			VerifyBurst: v.GetInt("RATE_LIMIT_VERIFY_BURST"),
		},
		Keycloak: KeycloakConfig{
			URL:      v.GetString("KEYCLOAK_URL"),
			Realm:    v.GetString("KEYCLOAK_REALM"),
			ClientID: v.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Keycloak.Issuer() == "" && c.JWT.Secret == "" {
		return fmt.Errorf("either KEYCLOAK_URL/KEYCLOAK_REALM or JWT_SECRET must be set")
	}
	if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
		logger.Warnf("JWT_SECRET is shorter than 32 bytes; set a secure value in production")
	}
	if (c.Signing.SealCertPath == "") != (c.Signing.SealKeyPath == "") {
		return fmt.Errorf("SIGNING_SEAL_CERT_PATH and SIGNING_SEAL_KEY_PATH must be set together")
	}
	if c.Signing.BcryptCost < 4 || c.Signing.BcryptCost > 31 {
		return fmt.Errorf("SIGNING_BCRYPT_COST must be between 4 and 31, got %d", c.Signing.BcryptCost)
	}
	if c.Signing.LockTTL <= 0 {
		return fmt.Errorf("SIGNING_LOCK_TTL_SECONDS must be positive")
	}
	if c.MinIO.Endpoint != "" && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}
	if c.RateLimit.UseRedis && c.Redis.Addr() == "" {
		return fmt.Errorf("RATE_LIMIT_USE_REDIS requires REDIS_HOST")
	}
	return nil
}
