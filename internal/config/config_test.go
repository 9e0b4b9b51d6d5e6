package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MONGODB_DATABASE", "tandatangan_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("SIGNING_REQUIRE_PIN", "false")
	t.Setenv("SIGNING_LOCK_TTL_SECONDS", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "tandatangan_test", cfg.MongoDB.Database)
	assert.Equal(t, 10*time.Second, cfg.MongoDB.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.False(t, cfg.Signing.RequirePIN)
	assert.Equal(t, 30*time.Second, cfg.Signing.LockTTL)
	assert.Equal(t, 10, cfg.Signing.BcryptCost)
	assert.Equal(t, "0.0.0.0:5001", cfg.Server.Addr())
	assert.Equal(t, "documents", cfg.MinIO.Bucket)
	assert.Equal(t, "", cfg.Keycloak.Issuer())
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.MongoDB.URI)
	assert.Empty(t, cfg.Redis.Addr())
	assert.True(t, cfg.Signing.RequirePIN)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 1.0, cfg.RateLimit.VerifyRPS)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
}

func TestLoadConfig_KeycloakIssuer(t *testing.T) {
	t.Setenv("KEYCLOAK_URL", "https://sso.example.com/")
	t.Setenv("KEYCLOAK_REALM", "tandatangan")
	t.Setenv("KEYCLOAK_CLIENT_ID", "web")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://sso.example.com/realms/tandatangan", cfg.Keycloak.Issuer())
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"no auth":       {},
		"half seal":     {"JWT_SECRET": "s", "SIGNING_SEAL_CERT_PATH": "/tmp/cert.pem"},
		"bcrypt cost":   {"JWT_SECRET": "s", "SIGNING_BCRYPT_COST": "2"},
		"lock ttl":      {"JWT_SECRET": "s", "SIGNING_LOCK_TTL_SECONDS": "0"},
		"minio keys":    {"JWT_SECRET": "s", "MINIO_ENDPOINT": "localhost:9000"},
		"redis limiter": {"JWT_SECRET": "s", "RATE_LIMIT_USE_REDIS": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
